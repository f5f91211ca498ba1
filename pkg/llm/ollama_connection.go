// Package llm provides LLM connection implementations for local model runtimes.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/ptr"
)

// ErrEmptyResponse is returned when a backend answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// OllamaConnection implements the LLMConnection interface for Ollama.
type OllamaConnection struct {
	baseURL    string
	httpClient *http.Client
	model      string
	config     *OllamaConfig
}

// OllamaConfig contains configuration options for Ollama connections.
type OllamaConfig struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model" yaml:"model"`
	Temperature *float32      `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	TopP        *float32      `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK        *int          `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Stream      bool          `json:"stream" yaml:"stream"`
}

// DefaultOllamaConfig returns a default configuration for Ollama.
func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		BaseURL:     "http://localhost:11434",
		Model:       "phi4:latest",
		Temperature: ptr.Float32(0.7),
		Timeout:     120 * time.Second,
		Stream:      false,
	}
}

// NewOllamaConnection creates a new Ollama connection with the given configuration.
func NewOllamaConnection(config *OllamaConfig) *OllamaConnection {
	if config == nil {
		config = DefaultOllamaConfig()
	}

	// Ensure BaseURL doesn't end with slash
	baseURL := strings.TrimSuffix(config.BaseURL, "/")

	return &OllamaConnection{
		baseURL: baseURL,
		model:   config.Model,
		config:  config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// NewOllamaConnectionFromEnv creates a new Ollama connection using environment variables.
// Supports OLLAMA_API_BASE for base URL and OLLAMA_MODEL for model name.
func NewOllamaConnectionFromEnv() *OllamaConnection {
	config := DefaultOllamaConfig()

	if baseURL := getEnvOrDefault("OLLAMA_API_BASE", ""); baseURL != "" {
		config.BaseURL = baseURL
	}
	if model := getEnvOrDefault("OLLAMA_MODEL", ""); model != "" {
		config.Model = model
	}

	return NewOllamaConnection(config)
}

// GenerateContent sends a request to Ollama and returns the response.
func (c *OllamaConnection) GenerateContent(ctx context.Context, request *core.LLMRequest) (*core.LLMResponse, error) {
	ollamaReq, err := c.convertToOllamaRequest(request, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}

	resp, err := c.makeHTTPRequest(ctx, http.MethodPost, "/api/chat", ollamaReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ollamaResp OllamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	slog.Debug("ollama chat completed",
		"model", ollamaResp.Model,
		"eval_count", ollamaResp.EvalCount,
		"total_duration", time.Duration(ollamaResp.TotalDuration))

	return c.convertFromOllamaResponse(&ollamaResp), nil
}

// GenerateContentStream sends a request and returns a streaming response.
// Every value on the channel carries the text accumulated so far.
func (c *OllamaConnection) GenerateContentStream(ctx context.Context, request *core.LLMRequest) (<-chan *core.LLMResponse, error) {
	ollamaReq, err := c.convertToOllamaRequest(request, true)
	if err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}

	resp, err := c.makeHTTPRequest(ctx, http.MethodPost, "/api/chat", ollamaReq)
	if err != nil {
		return nil, err
	}

	responseChan := make(chan *core.LLMResponse, 10)

	go func() {
		defer close(responseChan)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		var accumulated strings.Builder

		for {
			var chunk OllamaChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err == io.EOF {
					return
				}
				errorResp := &core.LLMResponse{
					Content:  &core.Content{Role: "assistant"},
					Partial:  ptr.Ptr(false),
					Metadata: map[string]any{"error": err.Error()},
				}
				select {
				case responseChan <- errorResp:
				case <-ctx.Done():
				}
				return
			}

			accumulated.WriteString(chunk.Message.Content)

			partial := c.convertFromOllamaResponse(&chunk)
			partial.Content = &core.Content{
				Role:  "assistant",
				Parts: []core.Part{{Type: "text", Text: ptr.Ptr(accumulated.String())}},
			}

			select {
			case responseChan <- partial:
			case <-ctx.Done():
				return
			}

			if chunk.Done {
				return
			}
		}
	}()

	return responseChan, nil
}

// ListModels returns the models installed in the local Ollama runtime.
func (c *OllamaConnection) ListModels(ctx context.Context) ([]core.ModelInfo, error) {
	resp, err := c.makeHTTPRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags OllamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}
	return tags.Models, nil
}

// Embed returns one embedding vector per input.
func (c *OllamaConnection) Embed(ctx context.Context, model string, inputs []string) ([][]float64, error) {
	if model == "" {
		model = c.model
	}
	resp, err := c.makeHTTPRequest(ctx, http.MethodPost, "/api/embed", OllamaEmbedRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

// Close closes the connection (no-op for HTTP-based connections).
func (c *OllamaConnection) Close(ctx context.Context) error {
	return nil
}

// convertToOllamaRequest converts an LLMRequest to Ollama format.
func (c *OllamaConnection) convertToOllamaRequest(request *core.LLMRequest, stream bool) (*OllamaChatRequest, error) {
	if request == nil {
		return nil, errors.New("nil request")
	}

	ollamaReq := &OllamaChatRequest{
		Model:    c.model,
		Messages: make([]OllamaMessage, 0, len(request.Contents)+1),
		Stream:   stream,
		Options:  make(map[string]interface{}),
	}

	if cfg := request.Config; cfg != nil {
		if cfg.Model != "" {
			ollamaReq.Model = cfg.Model
		}
		if cfg.Temperature != nil {
			ollamaReq.Options["temperature"] = *cfg.Temperature
		}
		if cfg.Seed != nil {
			ollamaReq.Options["seed"] = *cfg.Seed
		}
		if cfg.MaxTokens != nil {
			ollamaReq.Options["num_predict"] = *cfg.MaxTokens
		}
		if cfg.TopP != nil {
			ollamaReq.Options["top_p"] = *cfg.TopP
		}
		if cfg.TopK != nil {
			ollamaReq.Options["top_k"] = *cfg.TopK
		}
		if cfg.MinP != nil {
			ollamaReq.Options["min_p"] = *cfg.MinP
		}
		if cfg.RepeatPenalty != nil {
			ollamaReq.Options["repeat_penalty"] = *cfg.RepeatPenalty
		}
		if cfg.NumCtx != nil {
			ollamaReq.Options["num_ctx"] = *cfg.NumCtx
		}
		if cfg.Format != nil {
			raw, err := json.Marshal(cfg.Format)
			if err != nil {
				return nil, fmt.Errorf("invalid format: %w", err)
			}
			ollamaReq.Format = raw
		}
		if cfg.SystemInstruction != "" {
			ollamaReq.Messages = append(ollamaReq.Messages, OllamaMessage{
				Role:    "system",
				Content: cfg.SystemInstruction,
			})
		}
	}

	// Apply default config values if not overridden
	if c.config.Temperature != nil && ollamaReq.Options["temperature"] == nil {
		ollamaReq.Options["temperature"] = *c.config.Temperature
	}
	if c.config.TopP != nil && ollamaReq.Options["top_p"] == nil {
		ollamaReq.Options["top_p"] = *c.config.TopP
	}
	if c.config.TopK != nil && ollamaReq.Options["top_k"] == nil {
		ollamaReq.Options["top_k"] = *c.config.TopK
	}
	if c.config.MaxTokens != nil && ollamaReq.Options["num_predict"] == nil {
		ollamaReq.Options["num_predict"] = *c.config.MaxTokens
	}

	for _, content := range request.Contents {
		msg := OllamaMessage{Role: c.mapRole(content.Role)}

		var textParts []string
		for _, part := range content.Parts {
			switch part.Type {
			case "text", "":
				if part.Text != nil {
					textParts = append(textParts, *part.Text)
				}
			case "image":
				if part.InlineData != nil {
					msg.Images = append(msg.Images, base64.StdEncoding.EncodeToString(part.InlineData.Data))
				}
			}
		}
		msg.Content = strings.Join(textParts, "\n")

		ollamaReq.Messages = append(ollamaReq.Messages, msg)
	}

	if len(ollamaReq.Messages) == 0 {
		return nil, errors.New("request has no messages")
	}

	return ollamaReq, nil
}

// convertFromOllamaResponse converts an Ollama response to the shared response type.
func (c *OllamaConnection) convertFromOllamaResponse(resp *OllamaChatResponse) *core.LLMResponse {
	response := &core.LLMResponse{
		Partial: ptr.Ptr(!resp.Done),
		Metadata: map[string]any{
			"model":         resp.Model,
			"created_at":    resp.CreatedAt,
			"eval_count":    resp.EvalCount,
			"prompt_tokens": resp.PromptEvalCount,
		},
	}

	if resp.Message.Content != "" {
		text := resp.Message.Content
		response.Content = &core.Content{
			Role:  c.mapRoleFromOllama(resp.Message.Role),
			Parts: []core.Part{{Type: "text", Text: &text}},
		}
	}

	return response
}

// makeHTTPRequest makes an HTTP request to the Ollama API. A nil payload sends no body.
func (c *OllamaConnection) makeHTTPRequest(ctx context.Context, method, endpoint string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// mapRole maps message roles to Ollama roles.
func (c *OllamaConnection) mapRole(role string) string {
	switch role {
	case "agent", "model", "assistant":
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}

// mapRoleFromOllama maps Ollama roles to message roles.
func (c *OllamaConnection) mapRoleFromOllama(role string) string {
	switch role {
	case "user", "system":
		return role
	default:
		return "assistant"
	}
}

// Ollama API types

// OllamaChatRequest represents a request to the Ollama chat API.
type OllamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []OllamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   json.RawMessage        `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// OllamaMessage represents a message in the Ollama format.
type OllamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// OllamaChatResponse represents a response from the Ollama chat API.
type OllamaChatResponse struct {
	Model              string        `json:"model"`
	CreatedAt          string        `json:"created_at"`
	Message            OllamaMessage `json:"message"`
	Done               bool          `json:"done"`
	TotalDuration      int64         `json:"total_duration,omitempty"`
	LoadDuration       int64         `json:"load_duration,omitempty"`
	PromptEvalCount    int           `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64         `json:"prompt_eval_duration,omitempty"`
	EvalCount          int           `json:"eval_count,omitempty"`
	EvalDuration       int64         `json:"eval_duration,omitempty"`
}

// OllamaTagsResponse is the body of GET /api/tags.
type OllamaTagsResponse struct {
	Models []core.ModelInfo `json:"models"`
}

// OllamaEmbedRequest is the body of POST /api/embed.
type OllamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// OllamaEmbedResponse is the reply of POST /api/embed.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}
