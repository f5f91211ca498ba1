// Package vision extracts structured data from images with a vision model:
// invoice fields, detected objects and facial emotion scores.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agent-protocol/agent-arena/pkg/core"
	"github.com/agent-protocol/agent-arena/pkg/llm"
	"github.com/agent-protocol/agent-arena/pkg/ptr"
)

// Task names accepted by Analyzer.Run.
const (
	TaskInvoice  = "invoice"
	TaskObjects  = "objects"
	TaskEmotions = "emotions"
)

// Default models per task.
const (
	DefaultModel        = "llama3.2-vision"
	DefaultEmotionModel = "gemma3:4b"
)

var (
	ErrUnknownTask      = errors.New("unknown vision task")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// Item is one invoice line.
type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Invoice holds fields read from an invoice or receipt.
type Invoice struct {
	InvoiceNumber string  `json:"invoice_number"`
	Date          string  `json:"date"`
	VendorName    string  `json:"vendor_name"`
	Items         []Item  `json:"items"`
	Total         float64 `json:"total"`
}

// Object is one kind of object seen in an image.
type Object struct {
	Name  string   `json:"name"`
	Color []string `json:"color"`
	Count int      `json:"count"`
}

// Detection lists the objects found in an image.
type Detection struct {
	Objects []Object `json:"objects"`
}

// Emotion is a score between 0 and 1.
type Emotion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// EmotionReport lists emotion intensities for a face.
type EmotionReport struct {
	Emotions []Emotion `json:"emotions"`
}

const invoicePrompt = `Given an invoice image, Your task is to use OCR to detect and extract text, categorize it into predefined fields.
Invoice/Receipt Number: The unique identifier of the document.
Date: The issue or transaction date.
Vendor Name: The business or entity issuing the document.
Items: A list of purchased products or services with Name, Quantity and price.
Total: The total amount of the document.`

const objectsPrompt = `Your task is to perform object detection on the image and return a structured output in JSON format. For each detected object, include the following attributes:
Name: The name of the detected object (e.g., 'cat', 'car', 'person').
Count: The total number of detected instances of this object type in the image.
Color: The dominant color or primary colors of the object.`

var emotionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"emotions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"score": map[string]any{"type": "number"},
				},
				"required": []string{"name", "score"},
			},
		},
	},
	"required": []string{"emotions"},
}

func emotionsPrompt() string {
	raw, _ := json.MarshalIndent(emotionSchema, "", "  ")
	return `Analyze the facial expression in this image and provide the intensity of the following
emotions as scores between 0 and 1: happiness, sadness, anger, fear, surprise, disgust, and neutral.

Respond with ONLY a JSON object that follows this schema:
` + string(raw)
}

// Result is what one analysis produced. Exactly one of the typed fields is
// set when Raw decoded cleanly.
type Result struct {
	Task      string         `json:"task"`
	Model     string         `json:"model"`
	Image     string         `json:"image"`
	Raw       string         `json:"raw"`
	Invoice   *Invoice       `json:"invoice,omitempty"`
	Detection *Detection     `json:"detection,omitempty"`
	Emotions  *EmotionReport `json:"emotions,omitempty"`
	Path      string         `json:"-"`
}

// Analyzer runs vision tasks and saves results as JSON under Dir.
type Analyzer struct {
	conn core.LLMConnection
	now  func() time.Time

	// Dir receives {task}_{image}_{timestamp}.json; empty disables saving.
	Dir string
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(conn core.LLMConnection, dir string) *Analyzer {
	return &Analyzer{conn: conn, now: time.Now, Dir: dir}
}

// ModelFor returns the default model of task.
func ModelFor(task string) string {
	if task == TaskEmotions {
		return DefaultEmotionModel
	}
	return DefaultModel
}

// Run reads imagePath and asks model to perform task at temperature 0.
// An empty model selects ModelFor(task).
func (a *Analyzer) Run(ctx context.Context, task, model, imagePath string) (*Result, error) {
	var prompt string
	switch task {
	case TaskInvoice:
		prompt = invoicePrompt
	case TaskObjects:
		prompt = objectsPrompt
	case TaskEmotions:
		prompt = emotionsPrompt()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, task)
	}
	if model == "" {
		model = ModelFor(task)
	}

	mimeType, err := imageType(imagePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	resp, err := a.conn.GenerateContent(ctx, &core.LLMRequest{
		Contents: []core.Content{core.NewImageContent(prompt, mimeType, data)},
		Config: &core.LLMConfig{
			Model:       model,
			Temperature: ptr.Float32(0),
			Format:      llm.JSONFormat,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", task, err)
	}

	res := &Result{Task: task, Model: model, Image: filepath.Base(imagePath), Raw: resp.Text()}
	if err := res.decode(); err != nil {
		return res, err
	}

	if a.Dir != "" {
		if err := a.save(res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (r *Result) decode() error {
	var target any
	switch r.Task {
	case TaskInvoice:
		r.Invoice = &Invoice{}
		target = r.Invoice
	case TaskObjects:
		r.Detection = &Detection{}
		target = r.Detection
	case TaskEmotions:
		r.Emotions = &EmotionReport{}
		target = r.Emotions
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(r.Raw)), target); err != nil {
		r.Invoice, r.Detection, r.Emotions = nil, nil, nil
		return fmt.Errorf("decode %s response: %w", r.Task, err)
	}
	return nil
}

func (a *Analyzer) save(res *Result) error {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	stem := strings.TrimSuffix(res.Image, filepath.Ext(res.Image))
	res.Path = filepath.Join(a.Dir, fmt.Sprintf("%s_%s_%s.json", res.Task, stem, a.now().Format("20060102_150405")))
	raw, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(res.Path, raw, 0o644)
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

func imageType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := imageTypes[ext]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (expected jpg, jpeg or png)", ErrUnsupportedImage, ext)
}
