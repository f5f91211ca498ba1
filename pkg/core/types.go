// Package core defines the message types and LLM interfaces shared by every demo.
package core

import (
	"strings"
)

// Content represents one message in a conversation.
type Content struct {
	Role  string `json:"role"`  // "system", "user" or "assistant"
	Parts []Part `json:"parts"` // Message parts (text, images)
}

// Part represents a component of a message.
// This is a union type that can be text or inline binary data.
type Part struct {
	Type       string         `json:"type,omitempty"`
	Text       *string        `json:"text,omitempty"`
	InlineData *Blob          `json:"inline_data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Blob is raw data attached to a message, such as an image for a vision model.
type Blob struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// LLMConfig contains per-request generation settings.
type LLMConfig struct {
	Model             string   `json:"model,omitempty"`
	Temperature       *float32 `json:"temperature,omitempty"`
	Seed              *int     `json:"seed,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	TopP              *float32 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	MinP              *float32 `json:"min_p,omitempty"`
	RepeatPenalty     *float32 `json:"repeat_penalty,omitempty"`
	NumCtx            *int     `json:"num_ctx,omitempty"`
	SystemInstruction string   `json:"system_instruction,omitempty"`

	// Format is either the string "json" or a JSON schema object.
	Format any `json:"format,omitempty"`
}

// LLMRequest is a single chat request.
type LLMRequest struct {
	Contents []Content `json:"contents"`
	Config   *LLMConfig `json:"config,omitempty"`
}

// LLMResponse is the reply of a chat request.
type LLMResponse struct {
	Content  *Content       `json:"content,omitempty"`
	Partial  *bool          `json:"partial,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text concatenates the text parts of the response.
func (r *LLMResponse) Text() string {
	if r == nil || r.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Content.Parts {
		if part.Text != nil {
			sb.WriteString(*part.Text)
		}
	}
	return sb.String()
}

// NewTextContent builds a single text message.
func NewTextContent(role, text string) Content {
	return Content{
		Role:  role,
		Parts: []Part{{Type: "text", Text: &text}},
	}
}

// NewImageContent builds a user message carrying a prompt and one image.
func NewImageContent(text, mimeType string, data []byte) Content {
	return Content{
		Role: "user",
		Parts: []Part{
			{Type: "text", Text: &text},
			{Type: "image", InlineData: &Blob{MIMEType: mimeType, Data: data}},
		},
	}
}

// ModelInfo describes a locally installed model.
type ModelInfo struct {
	Name    string       `json:"name"`
	Size    int64        `json:"size"`
	Details ModelDetails `json:"details"`
}

// ModelDetails holds the descriptive fields reported for a model.
type ModelDetails struct {
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// SizeGB returns the model size in gigabytes.
func (m ModelInfo) SizeGB() float64 {
	return float64(m.Size) / (1024 * 1024 * 1024)
}
