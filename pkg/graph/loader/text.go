package loader

import (
	"context"

	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/metrics"
)

// TextLoader handles plain-text and markdown documents.
type TextLoader struct{}

// NewTextLoader creates a plain-text loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load implements the graph.Loader interface.
func (l *TextLoader) Load(ctx context.Context, content []byte) (*graph.LoadResult, error) {
	metrics.DocumentsLoaded.WithLabelValues("text").Inc()
	return cleanText(string(content)), nil
}

// SupportedExtensions implements the graph.Loader interface.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md"}
}
