package llm

import (
	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/ptr"
)

// JSONFormat asks the model for any JSON object.
const JSONFormat = "json"

// YesNoSchema constrains the answer to Yes or No.
var YesNoSchema = enumSchema("Yes", "No")

// TrueFalseSchema constrains the answer to a JSON boolean.
var TrueFalseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer": map[string]any{"type": "boolean"},
	},
	"required": []string{"answer"},
}

// ABCDSchema constrains the answer to a multiple choice letter.
var ABCDSchema = enumSchema("A", "B", "C", "D")

// LetterSchema builds an answer schema over the first n letters of the alphabet.
// n is clamped to 1..26.
func LetterSchema(n int) map[string]any {
	if n < 1 {
		n = 1
	}
	if n > 26 {
		n = 26
	}
	letters := make([]string, n)
	for i := range letters {
		letters[i] = string(rune('A' + i))
	}
	return enumSchema(letters...)
}

func enumSchema(values ...string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{
				"type": "string",
				"enum": values,
			},
		},
		"required": []string{"answer"},
	}
}

// TunedConfig returns generation settings used by the conversational demos:
// a 4096 token context, top_k 40, top_p 0.9, min_p 0.05 and repeat_penalty 1.1.
func TunedConfig(model string, temperature float32, seed int) *core.LLMConfig {
	return &core.LLMConfig{
		Model:         model,
		Temperature:   ptr.Float32(temperature),
		Seed:          ptr.Int(seed),
		NumCtx:        ptr.Int(4096),
		TopK:          ptr.Int(40),
		TopP:          ptr.Float32(0.9),
		MinP:          ptr.Float32(0.05),
		RepeatPenalty: ptr.Float32(1.1),
	}
}
