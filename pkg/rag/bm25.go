package rag

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)?`)

// Tokenize lowercases text and splits it into words.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// BM25 ranks documents by Okapi BM25 keyword relevance.
type BM25 struct {
	K  int
	K1 float64
	B  float64

	docs    []Document
	freqs   []map[string]int
	lengths []int
	avgLen  float64
	idf     map[string]float64
}

// NewBM25 indexes docs with k1=1.5, b=0.75 and returns the top 4 by default.
func NewBM25(docs []Document) *BM25 {
	r := &BM25{K: 4, K1: 1.5, B: 0.75, docs: docs, idf: map[string]float64{}}

	df := map[string]int{}
	total := 0
	for _, d := range docs {
		tokens := Tokenize(d.Content)
		f := map[string]int{}
		for _, tok := range tokens {
			f[tok]++
		}
		for tok := range f {
			df[tok]++
		}
		r.freqs = append(r.freqs, f)
		r.lengths = append(r.lengths, len(tokens))
		total += len(tokens)
	}
	if len(docs) > 0 {
		r.avgLen = float64(total) / float64(len(docs))
	}

	// Negative idf of very common terms is floored to a quarter of the mean.
	n := float64(len(docs))
	sum := 0.0
	var negative []string
	for tok, c := range df {
		v := math.Log((n - float64(c) + 0.5) / (float64(c) + 0.5))
		r.idf[tok] = v
		sum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(df) > 0 {
		floor := 0.25 * sum / float64(len(df))
		for _, tok := range negative {
			r.idf[tok] = floor
		}
	}
	return r
}

// Scores returns the BM25 score of every indexed document for query.
func (r *BM25) Scores(query string) []float64 {
	scores := make([]float64, len(r.docs))
	for _, tok := range Tokenize(query) {
		idf, ok := r.idf[tok]
		if !ok {
			continue
		}
		for i, f := range r.freqs {
			tf := float64(f[tok])
			if tf == 0 {
				continue
			}
			norm := 1 - r.B + r.B*float64(r.lengths[i])/r.avgLen
			scores[i] += idf * tf * (r.K1 + 1) / (tf + r.K1*norm)
		}
	}
	return scores
}

// Retrieve returns the K best documents. Ties keep index order.
func (r *BM25) Retrieve(_ context.Context, query string) ([]Document, error) {
	scores := r.Scores(query)
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if len(order) > r.K {
		order = order[:r.K]
	}
	out := make([]Document, len(order))
	for i, idx := range order {
		out[i] = r.docs[idx]
	}
	return out, nil
}
