package loader

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/athapong/papergraph/pkg/graph"
)

// ErrUnsupportedFormat is returned when no loader is registered for a file's
// extension.
var ErrUnsupportedFormat = errors.New("unsupported document format")

var (
	citationPattern  = regexp.MustCompile(`\[[a-zA-Z.\s]+,[\s\d]+\]`)
	bracketedPattern = regexp.MustCompile(`\[[\w,.\s?]+\]`)
	strayLinePattern = regexp.MustCompile(`\n{2}.+\n{2}`)
)

// Registry dispatches documents to a loader by filename extension.
type Registry struct {
	loaders map[string]graph.Loader
}

// NewRegistry creates a registry with the given loaders. Each loader is
// registered for all of its supported extensions.
func NewRegistry(loaders ...graph.Loader) *Registry {
	r := &Registry{loaders: make(map[string]graph.Loader)}
	for _, l := range loaders {
		for _, ext := range l.SupportedExtensions() {
			r.loaders[ext] = l
		}
	}
	return r
}

// DefaultRegistry returns a registry covering PDF, HTML and plain-text input.
func DefaultRegistry() *Registry {
	return NewRegistry(NewPDFLoader(), NewHTMLLoader(), NewTextLoader())
}

// ForName returns the loader responsible for the given filename.
func (r *Registry) ForName(name string) (graph.Loader, error) {
	ext := strings.ToLower(filepath.Ext(name))
	l, ok := r.loaders[ext]
	if !ok {
		return nil, errors.Wrap(ErrUnsupportedFormat, name)
	}
	return l, nil
}

// cleanText normalizes raw extracted text: hyphenated line wraps are joined,
// line breaks flattened, bracketed citation markers harvested as references
// and then stripped, and whitespace collapsed.
func cleanText(text string) *graph.LoadResult {
	text = strings.ToValidUTF8(text, "")
	text = strayLinePattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "-\n", "")
	text = strings.ReplaceAll(text, "\n", " ")

	references := citationPattern.FindAllString(text, -1)
	text = bracketedPattern.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")

	return &graph.LoadResult{Text: text, References: references}
}
