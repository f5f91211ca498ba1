// Package llmtest provides an in-memory LLM connection for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/agent-protocol/agent-arena/pkg/core"
)

// ErrScriptExhausted is returned once every scripted reply has been used
// and no Default is set.
var ErrScriptExhausted = errors.New("llmtest: no scripted replies left")

// Connection replays scripted replies in order and records every request.
type Connection struct {
	mu       sync.Mutex
	replies  []Reply
	Default  *Reply
	Requests []*core.LLMRequest
}

// Reply is one scripted answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// New returns a connection that answers with texts in order.
func New(texts ...string) *Connection {
	c := &Connection{}
	for _, t := range texts {
		c.replies = append(c.replies, Reply{Text: t})
	}
	return c
}

// Push appends replies to the script.
func (c *Connection) Push(replies ...Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, replies...)
}

// GenerateContent returns the next scripted reply.
func (c *Connection) GenerateContent(ctx context.Context, request *core.LLMRequest) (*core.LLMResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, request)

	var next Reply
	switch {
	case len(c.replies) > 0:
		next = c.replies[0]
		c.replies = c.replies[1:]
	case c.Default != nil:
		next = *c.Default
	default:
		return nil, ErrScriptExhausted
	}
	if next.Err != nil {
		return nil, next.Err
	}
	text := next.Text
	return &core.LLMResponse{
		Content: &core.Content{
			Role:  "assistant",
			Parts: []core.Part{{Type: "text", Text: &text}},
		},
	}, nil
}

// Close is a no-op.
func (c *Connection) Close(ctx context.Context) error { return nil }

// Calls returns the number of requests seen so far.
func (c *Connection) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// LastPrompt returns the text of the last user message of the last request.
func (c *Connection) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Requests) == 0 {
		return ""
	}
	req := c.Requests[len(c.Requests)-1]
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if req.Contents[i].Role != "user" {
			continue
		}
		for _, p := range req.Contents[i].Parts {
			if p.Text != nil {
				return *p.Text
			}
		}
	}
	return ""
}
