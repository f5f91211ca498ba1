package rag

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFile is returned for inputs other than text or markdown.
var ErrUnsupportedFile = errors.New("unsupported file type")

var textExtensions = map[string]bool{".txt": true, ".md": true, ".markdown": true}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

// LoadFile reads one text or markdown file.
func LoadFile(path string) (Document, error) {
	if !Supported(path) {
		return Document{}, fmt.Errorf("%w: %s (expected .txt, .md or .markdown)", ErrUnsupportedFile, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("load %s: %w", path, err)
	}
	return Document{Content: string(data), Metadata: map[string]any{MetaSource: path}}, nil
}

// Load reads every path. Directories are walked and their supported files
// loaded in lexical order; unsupported files inside directories are skipped.
func Load(paths ...string) ([]Document, error) {
	var docs []Document
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		if !info.IsDir() {
			doc, err := LoadFile(p)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !Supported(path) {
				return nil
			}
			doc, err := LoadFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}
