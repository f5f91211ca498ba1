package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Retriever returns documents relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// RRFConstant damps the contribution of lower ranks in reciprocal rank fusion.
const RRFConstant = 60

// Ensemble fuses several retrievers with weighted reciprocal rank fusion.
// Documents with the same content are merged.
type Ensemble struct {
	retrievers []Retriever
	weights    []float64
}

// NewEnsemble pairs retrievers with weights; nil weights mean equal weights.
func NewEnsemble(retrievers []Retriever, weights []float64) (*Ensemble, error) {
	if len(retrievers) == 0 {
		return nil, errors.New("ensemble needs at least one retriever")
	}
	if weights == nil {
		weights = make([]float64, len(retrievers))
		for i := range weights {
			weights[i] = 1 / float64(len(retrievers))
		}
	}
	if len(weights) != len(retrievers) {
		return nil, fmt.Errorf("got %d weights for %d retrievers", len(weights), len(retrievers))
	}
	return &Ensemble{retrievers: retrievers, weights: weights}, nil
}

// Retrieve runs every retriever and orders the union by fused score.
func (e *Ensemble) Retrieve(ctx context.Context, query string) ([]Document, error) {
	type entry struct {
		doc   Document
		score float64
	}
	var order []*entry
	seen := map[string]*entry{}

	for i, r := range e.retrievers {
		docs, err := r.Retrieve(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("retriever %d: %w", i, err)
		}
		for rank, d := range docs {
			en, ok := seen[d.Content]
			if !ok {
				en = &entry{doc: d}
				seen[d.Content] = en
				order = append(order, en)
			}
			en.score += e.weights[i] / float64(rank+1+RRFConstant)
		}
	}

	sort.SliceStable(order, func(a, b int) bool { return order[a].score > order[b].score })
	out := make([]Document, len(order))
	for i, en := range order {
		out[i] = en.doc
	}
	return out, nil
}
