package debate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/agent-protocol/agent-arena/pkg/llm/llmtest"
	"github.com/agent-protocol/agent-arena/pkg/records"
)

func TestDefaultTopics(t *testing.T) {
	topics := DefaultTopics()
	if topics.Len() != 56 {
		t.Errorf("Expected 56 topics, got %d", topics.Len())
	}
	q, err := topics.Get("pineapple_pizza")
	if err != nil || q != "Should pineapple be an acceptable pizza topping?" {
		t.Errorf("Get = %q, %v", q, err)
	}
	if _, err := topics.Get("flat_earth"); !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("Expected ErrUnknownTopic, got %v", err)
	}
	if got := topics.Categories()[0].Name; got != "technology" {
		t.Errorf("Expected technology first, got %s", got)
	}
	if got := topics.Keys()[0]; got != "ai_education" {
		t.Errorf("Expected ai_education first, got %s", got)
	}
	if got := topics.Resolve("Is tea better than coffee?"); got != "Is tea better than coffee?" {
		t.Errorf("Expected free text to pass through, got %q", got)
	}
}

func TestParseTopics_Duplicate(t *testing.T) {
	data := "- category: a\n  topics:\n    - key: x\n      question: q?\n- category: b\n  topics:\n    - key: x\n      question: r?\n"
	if _, err := ParseTopics([]byte(data)); err == nil {
		t.Error("Expected duplicate key error")
	}
}

func TestParseVerdict(t *testing.T) {
	tests := map[string]string{
		`{"answer": "C"}`:        "C",
		`{"other": 1}`:           "Unknown",
		"b) Agent B argued best": "B",
		"   ":                    "A",
	}
	for in, want := range tests {
		if got := ParseVerdict(in); got != want {
			t.Errorf("ParseVerdict(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJudgePrompt(t *testing.T) {
	prompt, ids := JudgePrompt([]Statement{
		{Round: 0, Agent: 0, Message: "old"},
		{Round: 0, Agent: 1, Message: "one"},
		{Round: 1, Agent: 0, Message: "zero"},
	})
	if diff := cmp.Diff([]int{0, 1}, ids); diff != "" {
		t.Errorf("Ids mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"\nA (Agent 0): zero", "\nB (Agent 1): one", "Which agent (A/B) made the strongest case?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q:\n%s", want, prompt)
		}
	}
}

func debateConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.NumAgents = 2
	cfg.Rounds = 1
	cfg.Output = filepath.Join(t.TempDir(), "debate.jsonl")
	return cfg
}

func TestDebate_Run(t *testing.T) {
	conn := llmtest.New("Opening zero", "Opening one", "Reply zero", "Reply one", `{"answer": "B"}`)
	cfg := debateConfig(t)

	res, err := New(conn, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Verdict.Winner != "B" || res.Verdict.WinnerAgent != 1 {
		t.Errorf("Unexpected verdict %+v", res.Verdict)
	}

	prompts := make([]string, 0, len(conn.Requests))
	for _, r := range conn.Requests {
		prompts = append(prompts, *r.Contents[len(r.Contents)-1].Parts[0].Text)
	}
	if !strings.Contains(prompts[2], "Round 1: Respond to these statements from other agents:\n\nAgent 1: Opening one") {
		t.Errorf("Agent 0 should answer agent 1's opening:\n%s", prompts[2])
	}
	if !strings.Contains(prompts[3], "Agent 0: Reply zero") {
		t.Errorf("Agent 1 should answer agent 0's latest reply:\n%s", prompts[3])
	}
	if !strings.Contains(prompts[4], "A (Agent 0): Reply zero") {
		t.Errorf("Judge should see final arguments:\n%s", prompts[4])
	}

	judgeReq := conn.Requests[4]
	if *judgeReq.Config.Seed != 1042 {
		t.Errorf("Expected judge seed 1042, got %d", *judgeReq.Config.Seed)
	}
	if judgeReq.Config.Format == nil {
		t.Error("Expected letter schema format")
	}
	if *conn.Requests[1].Config.Seed != 43 {
		t.Errorf("Expected agent 1 seed 43, got %d", *conn.Requests[1].Config.Seed)
	}

	entries, err := LoadTranscript(cfg.Output)
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(entries) != 6 || entries[0].Event != EventStart || entries[5].Event != EventVerdict {
		t.Errorf("Unexpected transcript %+v", entries)
	}
	if entries[3].Type != TypeResponse || *entries[3].Round != 1 || *entries[3].Agent != 0 {
		t.Errorf("Unexpected response entry %+v", entries[3])
	}

	var meta Metadata
	if err := records.LoadJSON(MetadataPath(cfg.Output), &meta); err != nil {
		t.Fatalf("LoadJSON failed: %v", err)
	}
	if meta.Statements != 4 || meta.Verdict.Winner != "B" || meta.RunID != res.RunID {
		t.Errorf("Unexpected metadata %+v", meta)
	}
}

func TestDebate_Fallbacks(t *testing.T) {
	conn := &llmtest.Connection{}
	down := errors.New("timeout")
	conn.Push(
		llmtest.Reply{Err: down},
		llmtest.Reply{Err: down},
		llmtest.Reply{Text: "Opening one"},
		llmtest.Reply{Err: down},
		llmtest.Reply{Err: down},
	)
	cfg := debateConfig(t)
	cfg.Rounds = 0

	res, err := New(conn, nil).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Statements[0].Message != "Agent 0 encountered an error and cannot respond." {
		t.Errorf("Unexpected fallback %q", res.Statements[0].Message)
	}
	want := Verdict{Winner: "A", WinnerAgent: 0, Justification: "Judge encountered an error and defaulted to Agent A.", Defaulted: true}
	if diff := cmp.Diff(want, res.Verdict); diff != "" {
		t.Errorf("Verdict mismatch (-want +got):\n%s", diff)
	}
	if res.Metadata.FailedResponses != 1 {
		t.Errorf("Expected 1 failed response, got %d", res.Metadata.FailedResponses)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumAgents = 9
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for 9 agents")
	}
	cfg = DefaultConfig()
	cfg.Topic = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty topic")
	}
	if got := MetadataPath("out/debate_log.jsonl"); got != "out/debate_log_metadata.json" {
		t.Errorf("Unexpected metadata path %s", got)
	}
}
