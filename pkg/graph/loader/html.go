package loader

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/metrics"
)

// HTMLLoader extracts the text content of an HTML document's body.
type HTMLLoader struct{}

// NewHTMLLoader creates an HTML loader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// Load implements the graph.Loader interface.
func (l *HTMLLoader) Load(ctx context.Context, content []byte) (*graph.LoadResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrap(err, "parsing html")
	}

	metrics.DocumentsLoaded.WithLabelValues("html").Inc()
	return cleanText(doc.Find("body").Text()), nil
}

// SupportedExtensions implements the graph.Loader interface.
func (l *HTMLLoader) SupportedExtensions() []string {
	return []string{".html", ".htm"}
}
