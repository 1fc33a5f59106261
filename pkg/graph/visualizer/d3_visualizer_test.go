package visualizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/papergraph/pkg/graph"
)

func TestRenderEmbedsGraphData(t *testing.T) {
	b := graph.NewBuilder()
	b.Add(graph.ExtractedTriple{
		Subject:     "Alice",
		SubjectType: "person",
		Relation:    "works for",
		Object:      "Acme Corp.",
		Provenance:  graph.Provenance{DocumentID: "doc1.txt", Sentence: "Alice works for Acme Corp."},
	})

	page, err := NewD3Visualizer().Render(b.Graph())
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "d3js.org")
	assert.Contains(t, html, `"id":"alice"`)
	assert.Contains(t, html, `"works_for"`)
	assert.Contains(t, html, "Entities: 2, Triples: 1")
	// Node labels keep the original surface form.
	assert.Contains(t, html, `"label":"Alice"`)
}

func TestRenderEmptyGraph(t *testing.T) {
	page, err := NewD3Visualizer().Render(graph.NewBuilder().Graph())
	require.NoError(t, err)
	assert.Contains(t, string(page), "Entities: 0, Triples: 0")
}
