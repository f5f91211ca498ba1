package llm

import (
	"fmt"
	"strings"

	"github.com/agent-protocol/agent-arena/pkg/core"
)

// Backend names accepted by NewConnection.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// ConnectionOptions selects and configures a backend.
type ConnectionOptions struct {
	Backend string
	BaseURL string
	Model   string
	APIKey  string
}

// NewConnection builds the connection named by opts.Backend.
// Empty fields fall back to the environment defaults of each backend.
func NewConnection(opts ConnectionOptions) (core.LLMConnection, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendOllama:
		conn := NewOllamaConnectionFromEnv()
		if opts.BaseURL != "" || opts.Model != "" {
			cfg := *conn.config
			if opts.BaseURL != "" {
				cfg.BaseURL = opts.BaseURL
			}
			if opts.Model != "" {
				cfg.Model = opts.Model
			}
			conn = NewOllamaConnection(&cfg)
		}
		return conn, nil
	case BackendOpenAI:
		cfg := DefaultOpenAIConfig()
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.APIKey != "" {
			cfg.APIKey = opts.APIKey
		}
		return NewOpenAIConnection(cfg), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected %s or %s)", opts.Backend, BackendOllama, BackendOpenAI)
	}
}
