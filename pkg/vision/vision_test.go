package vision

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/agent-protocol/agent-arena/pkg/llm/llmtest"
)

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzer_Invoice(t *testing.T) {
	img := writeImage(t, "receipt.png")
	out := t.TempDir()
	conn := llmtest.New(`{"invoice_number":"INV-7","date":"2024-01-02","vendor_name":"Acme","items":[{"name":"Bolt","quantity":3,"price":1.5}],"total":4.5}`)
	a := NewAnalyzer(conn, out)
	a.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	res, err := a.Run(context.Background(), TaskInvoice, "", img)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := &Invoice{
		InvoiceNumber: "INV-7",
		Date:          "2024-01-02",
		VendorName:    "Acme",
		Items:         []Item{{Name: "Bolt", Quantity: 3, Price: 1.5}},
		Total:         4.5,
	}
	if diff := cmp.Diff(want, res.Invoice); diff != "" {
		t.Errorf("Invoice mismatch (-want +got):\n%s", diff)
	}

	req := conn.Requests[0]
	if req.Config.Model != DefaultModel || *req.Config.Temperature != 0 || req.Config.Format != "json" {
		t.Errorf("Unexpected config %+v", req.Config)
	}
	blob := req.Contents[0].Parts[1].InlineData
	if blob == nil || blob.MIMEType != "image/png" || string(blob.Data) != "\x89PNG fake" {
		t.Errorf("Expected inline png, got %+v", req.Contents[0].Parts)
	}

	if filepath.Base(res.Path) != "invoice_receipt_20240102_030405.json" {
		t.Errorf("Unexpected path %s", res.Path)
	}
	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var saved Result
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("Saved result is not JSON: %v", err)
	}
	if saved.Invoice == nil || saved.Invoice.Total != 4.5 || saved.Detection != nil {
		t.Errorf("Unexpected saved result %+v", saved)
	}
}

func TestAnalyzer_EmotionsUsesOwnModel(t *testing.T) {
	conn := llmtest.New(`{"emotions":[{"name":"happiness","score":0.8},{"name":"neutral","score":0.1}]}`)
	a := NewAnalyzer(conn, "")

	res, err := a.Run(context.Background(), TaskEmotions, "", writeImage(t, "face.JPG"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if conn.Requests[0].Config.Model != DefaultEmotionModel {
		t.Errorf("Expected %s, got %s", DefaultEmotionModel, conn.Requests[0].Config.Model)
	}
	if !strings.Contains(conn.LastPrompt(), `"score"`) {
		t.Error("Emotion prompt should embed the schema")
	}
	if len(res.Emotions.Emotions) != 2 || res.Emotions.Emotions[0].Score != 0.8 {
		t.Errorf("Unexpected emotions %+v", res.Emotions)
	}
	if res.Path != "" {
		t.Errorf("Expected no file without a results dir, got %s", res.Path)
	}
}

func TestAnalyzer_Objects(t *testing.T) {
	conn := llmtest.New(`{"objects":[{"name":"cat","color":["black","white"],"count":2}]}`)
	res, err := NewAnalyzer(conn, "").Run(context.Background(), TaskObjects, "llava", writeImage(t, "pets.jpeg"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := &Detection{Objects: []Object{{Name: "cat", Color: []string{"black", "white"}, Count: 2}}}
	if diff := cmp.Diff(want, res.Detection); diff != "" {
		t.Errorf("Detection mismatch (-want +got):\n%s", diff)
	}
	if conn.Requests[0].Config.Model != "llava" {
		t.Errorf("Expected explicit model, got %s", conn.Requests[0].Config.Model)
	}
}

func TestAnalyzer_Errors(t *testing.T) {
	ctx := context.Background()
	a := NewAnalyzer(llmtest.New("not json"), "")

	if _, err := a.Run(ctx, "ocr", "", writeImage(t, "a.png")); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Expected ErrUnknownTask, got %v", err)
	}
	if _, err := a.Run(ctx, TaskInvoice, "", writeImage(t, "a.gif")); !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("Expected ErrUnsupportedImage, got %v", err)
	}
	if _, err := a.Run(ctx, TaskInvoice, "", filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected error for missing file")
	}

	res, err := a.Run(ctx, TaskInvoice, "", writeImage(t, "b.png"))
	if err == nil {
		t.Fatal("Expected decode error")
	}
	if res == nil || res.Raw != "not json" || res.Invoice != nil {
		t.Errorf("Expected raw text kept without typed data, got %+v", res)
	}
}
