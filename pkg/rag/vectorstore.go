package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/agent-protocol/agent-arena/pkg/core"
)

// ErrDimensionMismatch is returned when embeddings of different sizes meet.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// VectorStore keeps documents with their embeddings in memory.
type VectorStore struct {
	embedder core.Embedder
	model    string

	// BatchSize is the number of texts per Embed call; Workers caps the
	// number of calls in flight.
	BatchSize int
	Workers   int
	K         int

	docs    []Document
	vectors [][]float64
}

// NewVectorStore creates an empty store embedding with model.
func NewVectorStore(embedder core.Embedder, model string) *VectorStore {
	return &VectorStore{embedder: embedder, model: model, BatchSize: 16, Workers: 4, K: 4}
}

// Len returns the number of stored documents.
func (s *VectorStore) Len() int { return len(s.docs) }

// AddDocuments embeds docs in batches and appends them to the store.
// Nothing is added if any batch fails.
func (s *VectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	batch := max(1, s.BatchSize)
	vectors := make([][]float64, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Workers))
	for start := 0; start < len(docs); start += batch {
		end := min(start+batch, len(docs))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, d := range docs[start:end] {
				texts = append(texts, d.Content)
			}
			out, err := s.embedder.Embed(ctx, s.model, texts)
			if err != nil {
				return fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embed documents %d-%d: got %d vectors", start, end-1, len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.docs = append(s.docs, docs...)
	s.vectors = append(s.vectors, vectors...)
	return nil
}

// Scored pairs a document with its similarity to a query.
type Scored struct {
	Document
	Score float64
}

// Search returns the k documents most similar to query by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, query string, k int) ([]Scored, error) {
	if len(s.docs) == 0 {
		return nil, nil
	}
	q, err := s.embedder.Embed(ctx, s.model, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(q))
	}

	hits := make([]Scored, len(s.docs))
	for i, v := range s.vectors {
		sim, err := Cosine(q[0], v)
		if err != nil {
			return nil, err
		}
		hits[i] = Scored{Document: s.docs[i], Score: sim}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Retrieve returns the K nearest documents.
func (s *VectorStore) Retrieve(ctx context.Context, query string) ([]Document, error) {
	hits, err := s.Search(ctx, query, s.K)
	if err != nil {
		return nil, err
	}
	out := make([]Document, len(hits))
	for i, h := range hits {
		out[i] = h.Document
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b; zero vectors score 0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
