package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/ptr"
)

// OpenAIConnection talks to an OpenAI-compatible chat completions endpoint,
// such as the /v1 API exposed by Ollama.
type OpenAIConnection struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures an OpenAI-compatible backend.
type OpenAIConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
}

// DefaultOpenAIConfig points at Ollama's OpenAI-compatible endpoint.
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		BaseURL: getEnvOrDefault("OPENAI_BASE_URL", "http://localhost:11434/v1"),
		APIKey:  getEnvOrDefault("OPENAI_API_KEY", "ollama"),
		Model:   getEnvOrDefault("OLLAMA_MODEL", "phi4:latest"),
	}
}

// NewOpenAIConnection creates a connection from config.
func NewOpenAIConnection(config *OpenAIConfig) *OpenAIConnection {
	if config == nil {
		config = DefaultOpenAIConfig()
	}
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}
	return &OpenAIConnection{
		client: ptr.Ptr(openai.NewClient(opts...)),
		model:  config.Model,
	}
}

// GenerateContent sends a chat completion request.
func (c *OpenAIConnection) GenerateContent(ctx context.Context, request *core.LLMRequest) (*core.LLMResponse, error) {
	params, err := c.buildParams(request)
	if err != nil {
		return nil, err
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	text := completion.Choices[0].Message.Content
	return &core.LLMResponse{
		Content: &core.Content{
			Role:  "assistant",
			Parts: []core.Part{{Type: "text", Text: &text}},
		},
		Partial: ptr.Ptr(false),
		Metadata: map[string]any{
			"model":             completion.Model,
			"completion_tokens": completion.Usage.CompletionTokens,
			"prompt_tokens":     completion.Usage.PromptTokens,
		},
	}, nil
}

// Close is a no-op.
func (c *OpenAIConnection) Close(ctx context.Context) error {
	return nil
}

func (c *OpenAIConnection) buildParams(request *core.LLMRequest) (openai.ChatCompletionNewParams, error) {
	var params openai.ChatCompletionNewParams
	if request == nil {
		return params, fmt.Errorf("nil request")
	}

	model := c.model
	var messages []openai.ChatCompletionMessageParamUnion
	if cfg := request.Config; cfg != nil {
		if cfg.Model != "" {
			model = cfg.Model
		}
		if cfg.Temperature != nil {
			params.Temperature = openai.Float(float64(*cfg.Temperature))
		}
		if cfg.Seed != nil {
			params.Seed = openai.Int(int64(*cfg.Seed))
		}
		if cfg.TopP != nil {
			params.TopP = openai.Float(float64(*cfg.TopP))
		}
		if cfg.MaxTokens != nil {
			params.MaxTokens = openai.Int(int64(*cfg.MaxTokens))
		}
		if cfg.Format != nil {
			// Schemas degrade to JSON mode; the prompt still names the expected keys.
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
			}
		}
		if cfg.SystemInstruction != "" {
			messages = append(messages, openai.SystemMessage(cfg.SystemInstruction))
		}
	}

	for _, content := range request.Contents {
		var texts []string
		for _, part := range content.Parts {
			if part.Text != nil {
				texts = append(texts, *part.Text)
			}
		}
		text := strings.Join(texts, "\n")
		switch content.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "assistant", "model", "agent":
			messages = append(messages, openai.AssistantMessage(text))
		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}
	if len(messages) == 0 {
		return params, fmt.Errorf("request has no messages")
	}

	params.Model = openai.ChatModel(model)
	params.Messages = messages
	return params, nil
}
