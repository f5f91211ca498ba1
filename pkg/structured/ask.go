package structured

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/llm"
)

// Answer is a free-form reply to a single prompt.
type Answer struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	Path     string `json:"path,omitempty"`
}

// Ask sends one prompt with the tuned sampling defaults and saves the
// exchange as {model}_{timestamp}.txt under Dir.
func (r *Runner) Ask(ctx context.Context, model, prompt string, temperature float32, seed int) (*Answer, error) {
	fmt.Fprintf(r.out, "\nQuerying model '%s' with prompt: '%s'\n", model, prompt)

	resp, err := r.conn.GenerateContent(ctx, &core.LLMRequest{
		Contents: []core.Content{core.NewTextContent("user", prompt)},
		Config:   llm.TunedConfig(model, temperature, seed),
	})
	if err != nil {
		return nil, fmt.Errorf("query model %s: %w", model, err)
	}

	ans := &Answer{Model: model, Prompt: prompt, Response: resp.Text()}
	fmt.Fprintf(r.out, "\n--- Response ---\n%s\n--- End Response ---\n", ans.Response)

	if r.Dir == "" {
		return ans, nil
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return ans, fmt.Errorf("create results dir: %w", err)
	}
	ans.Path = filepath.Join(r.Dir, fmt.Sprintf("%s_%s.txt", SafeModelName(model), r.now().Format("20060102_150405")))
	body := fmt.Sprintf("Model: %s\nPrompt:\n%s\n\nResponse:\n%s\n", model, prompt, ans.Response)
	if err := os.WriteFile(ans.Path, []byte(body), 0o644); err != nil {
		return ans, fmt.Errorf("save response: %w", err)
	}
	fmt.Fprintf(r.out, "Response saved to %s\n", ans.Path)
	return ans, nil
}
