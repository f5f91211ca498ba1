// Package structured runs single-prompt demos that ask a model for JSON
// constrained by a schema and check the reply against it.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/llm"
	"github.com/agent-protocol/agent-arena/pkg/ptr"
)

// ErrUnknownExample is returned by Lookup for names outside Examples.
var ErrUnknownExample = errors.New("unknown structured example")

// Example is one prompt with the schema its answer must satisfy.
type Example struct {
	Name   string
	Prompt string
	Schema map[string]any

	// check decodes the answer field and reports whether it is allowed.
	check func(raw json.RawMessage) (any, error)
}

// Examples lists the built-in demos in display order.
var Examples = []Example{
	{
		Name:   "yes_no",
		Prompt: "Is Python a compiled language? Respond with either Yes or No.",
		Schema: llm.YesNoSchema,
		check:  oneOf("Yes", "No"),
	},
	{
		Name:   "true_false",
		Prompt: "The Eiffel Tower is located in Berlin. True or False?",
		Schema: llm.TrueFalseSchema,
		check:  boolean,
	},
	{
		Name: "abcd",
		Prompt: `What is the primary function of a CPU in a computer?
A) Store data long-term
B) Execute instructions and perform calculations
C) Display images on the monitor
D) Connect to the internet`,
		Schema: llm.ABCDSchema,
		check:  oneOf("A", "B", "C", "D"),
	},
}

// Lookup finds an example by name.
func Lookup(name string) (Example, error) {
	for _, ex := range Examples {
		if ex.Name == name {
			return ex, nil
		}
	}
	return Example{}, fmt.Errorf("%w: %q", ErrUnknownExample, name)
}

// Names returns the example names.
func Names() []string {
	names := make([]string, len(Examples))
	for i, ex := range Examples {
		names[i] = ex.Name
	}
	return names
}

// Validate decodes raw model output and checks the answer against the example.
func (e Example) Validate(raw string) (any, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &body); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	answer, ok := body["answer"]
	if !ok {
		return nil, errors.New(`missing "answer" field`)
	}
	return e.check(answer)
}

func oneOf(allowed ...string) func(json.RawMessage) (any, error) {
	return func(raw json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("answer must be a string: %w", err)
		}
		if !slices.Contains(allowed, s) {
			return nil, fmt.Errorf("answer %q not in %v", s, allowed)
		}
		return s, nil
	}
}

func boolean(raw json.RawMessage) (any, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("answer must be a boolean: %w", err)
	}
	return b, nil
}

// SystemPrompt tells the model to reply with JSON matching schema.
func SystemPrompt(schema map[string]any) string {
	raw, _ := json.MarshalIndent(schema, "", "  ")
	return "You must respond in a valid JSON format.\n" +
		"The JSON object must strictly adhere to the following JSON schema:\n" + string(raw)
}

// Result is the outcome of one example run.
type Result struct {
	Example string `json:"example"`
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Raw     string `json:"raw"`
	Answer  any    `json:"answer,omitempty"`
	Valid   bool   `json:"valid"`
	Problem string `json:"problem,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Runner queries a model and saves each exchange under Dir.
type Runner struct {
	conn core.LLMConnection
	out  io.Writer
	now  func() time.Time

	// Dir receives one text file per run; empty disables saving.
	Dir string
}

// NewRunner creates a runner writing progress to out (nil discards it).
func NewRunner(conn core.LLMConnection, out io.Writer, dir string) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{conn: conn, out: out, now: time.Now, Dir: dir}
}

// Run asks model the example prompt at temperature 0. A reply that fails
// validation is not an error; it is reported in the result.
func (r *Runner) Run(ctx context.Context, ex Example, model string) (*Result, error) {
	fmt.Fprintf(r.out, "\n--- Running %s example with model: %s ---\n", ex.Name, model)

	resp, err := r.conn.GenerateContent(ctx, &core.LLMRequest{
		Contents: []core.Content{core.NewTextContent("user", ex.Prompt)},
		Config: &core.LLMConfig{
			Model:             model,
			Temperature:       ptr.Float32(0),
			Format:            ex.Schema,
			SystemInstruction: SystemPrompt(ex.Schema),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ex.Name, err)
	}

	res := &Result{Example: ex.Name, Model: model, Prompt: ex.Prompt, Raw: resp.Text()}
	if answer, err := ex.Validate(res.Raw); err != nil {
		res.Problem = err.Error()
	} else {
		res.Answer = answer
		res.Valid = true
	}

	fmt.Fprintf(r.out, "Prompt: %s\n\n--- Raw LLM Output ---\n%s\n", ex.Prompt, res.Raw)
	if res.Valid {
		fmt.Fprintf(r.out, "\n--- Validated Response ---\nanswer=%v\n", res.Answer)
	} else {
		fmt.Fprintf(r.out, "\n--- Validation Failed ---\n%s\n", res.Problem)
	}

	if r.Dir != "" {
		path, err := r.save(res)
		if err != nil {
			return res, err
		}
		res.Path = path
		fmt.Fprintf(r.out, "Conversation saved to %s\n", path)
	}
	return res, nil
}

// SafeModelName makes a model name usable in a file name.
func SafeModelName(model string) string {
	return strings.NewReplacer("/", "_", ":", "-").Replace(model)
}

func (r *Runner) save(res *Result) (string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s.txt", res.Example, SafeModelName(res.Model), r.now().Format("20060102_150405"))
	path := filepath.Join(r.Dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "--- Prompt ---\nModel: %s\nExample: %s\n\n%s\n\n", res.Model, res.Example, strings.TrimSpace(res.Prompt))
	fmt.Fprintf(&b, "--- Raw LLM Output ---\n%s\n\n", res.Raw)
	b.WriteString("--- Validated Response ---\n")
	if res.Valid {
		raw, _ := json.MarshalIndent(map[string]any{"answer": res.Answer}, "", "  ")
		b.Write(raw)
	} else {
		b.WriteString("Validation Failed.")
	}
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return path, nil
}
