package loader

import (
	"bytes"
	"context"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"

	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/metrics"
)

// PDFLoader extracts plain text from PDF documents page by page.
type PDFLoader struct{}

// NewPDFLoader creates a PDF loader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Load implements the graph.Loader interface. Pages whose text cannot be
// decoded are skipped.
func (l *PDFLoader) Load(ctx context.Context, content []byte) (*graph.LoadResult, error) {
	reader := bytes.NewReader(content)

	r, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return nil, errors.Wrap(err, "opening pdf")
	}

	var textContent string
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		textContent += text
	}

	metrics.DocumentsLoaded.WithLabelValues("pdf").Inc()
	return cleanText(textContent), nil
}

// SupportedExtensions implements the graph.Loader interface.
func (l *PDFLoader) SupportedExtensions() []string {
	return []string{".pdf"}
}
