// Package rag answers questions over local text and markdown files with a
// hybrid retriever: embeddings and BM25 keyword search fused by reciprocal
// rank fusion.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agent-protocol/agent-arena/pkg/core"
)

// DefaultModel is used for both generation and embeddings unless overridden.
const DefaultModel = "phi4:latest"

// ErrNoDocuments is returned when an index is built from empty input.
var ErrNoDocuments = errors.New("no document content to index")

const qaTemplate = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know. Use three sentences maximum and keep the answer concise.
Question: %s
Context: %s
Answer:`

// QAPrompt fills the question-answering template with the retrieved documents.
func QAPrompt(question string, docs []Document) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Content
	}
	return fmt.Sprintf(qaTemplate, question, strings.Join(parts, "\n\n"))
}

// Config selects models and retrieval weights.
type Config struct {
	Model        string    `json:"model" yaml:"model"`
	EmbedModel   string    `json:"embed_model" yaml:"embed_model"`
	ChunkSize    int       `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap" yaml:"chunk_overlap"`
	K            int       `json:"k" yaml:"k"`
	Weights      []float64 `json:"weights" yaml:"weights"`
}

// DefaultConfig returns phi4 for both roles, 1000/200 chunks, k=4 and
// equal weights for the semantic and keyword retrievers.
func DefaultConfig() Config {
	return Config{
		Model:        DefaultModel,
		EmbedModel:   DefaultModel,
		ChunkSize:    1000,
		ChunkOverlap: 200,
		K:            4,
		Weights:      []float64{0.5, 0.5},
	}
}

// Backend is a chat connection that can also embed.
type Backend interface {
	core.LLMConnection
	core.Embedder
}

// Index is a built hybrid retriever over a set of chunks.
type Index struct {
	cfg      Config
	conn     core.LLMConnection
	Chunks   []Document
	Semantic *VectorStore
	Keyword  *BM25
	Hybrid   *Ensemble
}

// Build splits docs, embeds the chunks and assembles the hybrid retriever.
func Build(ctx context.Context, backend Backend, cfg Config, docs []Document) (*Index, error) {
	splitter := NewSplitter()
	if cfg.ChunkSize > 0 {
		splitter.ChunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap >= 0 && cfg.ChunkOverlap < splitter.ChunkSize {
		splitter.ChunkOverlap = cfg.ChunkOverlap
	}
	chunks := splitter.SplitDocuments(docs)
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}

	semantic := NewVectorStore(backend, cfg.EmbedModel)
	keyword := NewBM25(chunks)
	if cfg.K > 0 {
		semantic.K = cfg.K
		keyword.K = cfg.K
	}
	if err := semantic.AddDocuments(ctx, chunks); err != nil {
		return nil, err
	}
	hybrid, err := NewEnsemble([]Retriever{semantic, keyword}, cfg.Weights)
	if err != nil {
		return nil, err
	}
	return &Index{cfg: cfg, conn: backend, Chunks: chunks, Semantic: semantic, Keyword: keyword, Hybrid: hybrid}, nil
}

// Answer is a generated reply with the context it was grounded on.
type Answer struct {
	Question string     `json:"question"`
	Text     string     `json:"answer"`
	Sources  []Document `json:"sources"`
}

// Ask retrieves context for question and asks the model to answer it.
func (ix *Index) Ask(ctx context.Context, question string) (*Answer, error) {
	docs, err := ix.Hybrid.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	resp, err := ix.conn.GenerateContent(ctx, &core.LLMRequest{
		Contents: []core.Content{core.NewTextContent("user", QAPrompt(question, docs))},
		Config:   &core.LLMConfig{Model: ix.cfg.Model},
	})
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	return &Answer{Question: question, Text: strings.TrimSpace(resp.Text()), Sources: docs}, nil
}
