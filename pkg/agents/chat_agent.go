// Package agents provides the single-call chat agents used by the conversational demos.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/llm"
)

// ChatAgentConfig contains configuration options for chat agents.
type ChatAgentConfig struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	Seed        int     `json:"seed" yaml:"seed"`

	// Tuned applies the long-context sampling defaults of llm.TunedConfig.
	Tuned bool `json:"tuned,omitempty" yaml:"tuned,omitempty"`
}

// ChatAgent wraps one LLM call per turn behind a fixed system prompt.
type ChatAgent struct {
	Name         string
	SystemPrompt string
	config       ChatAgentConfig
	conn         core.LLMConnection
}

// NewChatAgent creates a chat agent bound to conn.
func NewChatAgent(name, systemPrompt string, conn core.LLMConnection, config ChatAgentConfig) *ChatAgent {
	return &ChatAgent{
		Name:         name,
		SystemPrompt: systemPrompt,
		config:       config,
		conn:         conn,
	}
}

// Model returns the model name the agent uses.
func (a *ChatAgent) Model() string { return a.config.Model }

// Seed returns the agent's base seed.
func (a *ChatAgent) Seed() int { return a.config.Seed }

// Temperature returns the agent's sampling temperature.
func (a *ChatAgent) Temperature() float32 { return a.config.Temperature }

// Respond sends the prompt (after any history) with the agent's base seed.
func (a *ChatAgent) Respond(ctx context.Context, prompt string, history ...core.Content) (string, error) {
	return a.RespondWith(ctx, prompt, a.config.Seed, nil, history...)
}

// RespondWith sends the prompt using an explicit seed and optional output format.
func (a *ChatAgent) RespondWith(ctx context.Context, prompt string, seed int, format any, history ...core.Content) (string, error) {
	var cfg *core.LLMConfig
	if a.config.Tuned {
		cfg = llm.TunedConfig(a.config.Model, a.config.Temperature, seed)
	} else {
		t := a.config.Temperature
		s := seed
		cfg = &core.LLMConfig{Model: a.config.Model, Temperature: &t, Seed: &s}
	}
	cfg.SystemInstruction = a.SystemPrompt
	cfg.Format = format

	contents := make([]core.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, core.NewTextContent("user", prompt))

	resp, err := a.conn.GenerateContent(ctx, &core.LLMRequest{Contents: contents, Config: cfg})
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.Name, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("agent %s: %w", a.Name, llm.ErrEmptyResponse)
	}
	return text, nil
}

// RespondWithRetry tries the base seed, then seed+1, and returns fallback
// when both attempts fail. The boolean reports whether the model answered.
func (a *ChatAgent) RespondWithRetry(ctx context.Context, prompt, fallback string, history ...core.Content) (string, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		text, err := a.RespondWith(ctx, prompt, a.config.Seed+attempt, nil, history...)
		if err == nil {
			return text, true
		}
		if ctx.Err() != nil {
			break
		}
		slog.Warn("agent call failed", "agent", a.Name, "model", a.config.Model, "attempt", attempt+1, "error", err)
	}
	return fallback, false
}
