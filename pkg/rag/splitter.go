package rag

import (
	"strings"
	"unicode/utf8"
)

// Document is a piece of text with free-form metadata.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata keys set by this package.
const (
	MetaSource     = "source"
	MetaStartIndex = "start_index"
)

// DefaultSeparators are tried in order, from paragraphs down to characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into overlapping chunks, preferring the coarsest
// separator that keeps pieces under ChunkSize. Sizes count runes.
type Splitter struct {
	ChunkSize     int
	ChunkOverlap  int
	Separators    []string
	AddStartIndex bool
}

// NewSplitter returns the 1000/200 splitter with start indexes.
func NewSplitter() *Splitter {
	return &Splitter{ChunkSize: 1000, ChunkOverlap: 200, Separators: DefaultSeparators, AddStartIndex: true}
}

// SplitDocuments splits every document and copies its metadata onto the
// chunks. With AddStartIndex each chunk records its byte offset in the source.
func (s *Splitter) SplitDocuments(docs []Document) []Document {
	var out []Document
	for _, doc := range docs {
		index, prevLen := 0, 0
		for _, chunk := range s.SplitText(doc.Content) {
			meta := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			if s.AddStartIndex {
				from := max(0, index+prevLen-s.ChunkOverlap)
				if from > len(doc.Content) {
					from = 0
				}
				found := strings.Index(doc.Content[from:], chunk)
				if found < 0 {
					from, found = 0, strings.Index(doc.Content, chunk)
				}
				index = from + found
				prevLen = len(chunk)
				meta[MetaStartIndex] = index
			}
			out = append(out, Document{Content: chunk, Metadata: meta})
		}
	}
	return out
}

// SplitText returns the chunks of text.
func (s *Splitter) SplitText(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = ""
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeep(text, separator) {
		if utf8.RuneCountInString(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// splitKeep splits on sep and keeps the separator at the start of each
// following piece. An empty sep splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

// merge packs pieces into chunks no longer than ChunkSize, carrying up to
// ChunkOverlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	emit := func() {
		if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
			docs = append(docs, doc)
		}
	}
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > s.ChunkSize && len(current) > 0 {
			emit()
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	emit()
	return docs
}
