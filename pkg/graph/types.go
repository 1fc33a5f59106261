package graph

import (
	"context"
	"time"
)

// Entity represents a canonical node in the knowledge graph. The ID is the
// normalized form of the first mention, so it is stable regardless of the
// order documents were ingested in.
type Entity struct {
	ID      string   `json:"id"`
	Type    string   `json:"type,omitempty"`
	Aliases []string `json:"aliases"`
	Sources []string `json:"sources,omitempty"`
}

// Provenance records where a triple was extracted from.
type Provenance struct {
	DocumentID string `json:"document_id"`
	Sentence   string `json:"sentence"`
}

// Triple is a directed labeled edge between two entities. Parallel edges with
// identical (subject, relation, object) are merged and their provenance lists
// concatenated.
type Triple struct {
	Subject    string       `json:"subject"`
	Relation   string       `json:"relation"`
	Object     string       `json:"object"`
	Provenance []Provenance `json:"provenance"`
}

// Graph is the merged result of all documents in a collection. Entities,
// Relations and Triples keep first-seen order so encoding is deterministic.
type Graph struct {
	Entities    []Entity  `json:"entities"`
	Relations   []string  `json:"relations"`
	Triples     []Triple  `json:"triples"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Size returns the number of triples in the graph.
func (g *Graph) Size() int {
	return len(g.Triples)
}

// Entity returns the entity with the given canonical id, if present.
func (g *Graph) Entity(id string) (*Entity, bool) {
	for i := range g.Entities {
		if g.Entities[i].ID == id {
			return &g.Entities[i], true
		}
	}
	return nil, false
}

// Mention is an entity mention recognized in a single sentence. Start and End
// are token offsets within the sentence.
type Mention struct {
	Text  string
	Type  string
	Start int
	End   int
}

// ExtractedTriple is a candidate triple produced by the extractor before
// canonicalization and merging.
type ExtractedTriple struct {
	Subject     string
	SubjectType string
	Relation    string
	Object      string
	ObjectType  string
	Provenance  Provenance
}

// Analyzer is the language-analysis capability set behind the extractor.
// Alternative NLP backends can be swapped in without touching the graph
// builder or anything downstream.
type Analyzer interface {
	Segment(text string) ([]string, error)
	RecognizeEntities(sentence string) ([]Mention, error)
	ExtractRelations(sentence string, mentions []Mention) ([]ExtractedTriple, error)
}

// Extractor turns raw text into candidate triples.
type Extractor interface {
	// Extract runs the full pipeline over a document's text.
	Extract(ctx context.Context, text string, documentID string) ([]ExtractedTriple, error)
	// ExtractOne runs the pipeline on a single statement and returns the
	// best candidate triple, or nil if none could be extracted.
	ExtractOne(ctx context.Context, statement string) (*ExtractedTriple, error)
}

// LoadResult is the output of a document loader: normalized plain text plus
// any citation markers harvested during cleanup.
type LoadResult struct {
	Text       string
	References []string
}

// Loader extracts normalized text from one input document format.
type Loader interface {
	Load(ctx context.Context, content []byte) (*LoadResult, error)
	SupportedExtensions() []string
}
