package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extracted(subject, relation, object, doc, sentence string) ExtractedTriple {
	return ExtractedTriple{
		Subject:    subject,
		Relation:   relation,
		Object:     object,
		Provenance: Provenance{DocumentID: doc, Sentence: sentence},
	}
}

func TestBuilderMergesAcrossDocuments(t *testing.T) {
	b := NewBuilder()
	b.Add(extracted("Alice", "works for", "Acme", "doc1.txt", "Alice works for Acme."))
	b.Add(extracted("Alice", "works for", "Acme Corp.", "doc2.txt", "Alice works for Acme Corp."))

	g := b.Graph()
	require.Len(t, g.Entities, 2)
	require.Equal(t, []string{"works_for"}, g.Relations)
	require.Len(t, g.Triples, 1)

	triple := g.Triples[0]
	assert.Equal(t, "alice", triple.Subject)
	assert.Equal(t, "works_for", triple.Relation)
	assert.Equal(t, "acme", triple.Object)
	assert.Len(t, triple.Provenance, 2)

	acme, ok := g.Entity("acme")
	require.True(t, ok)
	assert.Contains(t, acme.Aliases, "Acme")
	assert.Contains(t, acme.Aliases, "Acme Corp.")
	assert.ElementsMatch(t, []string{"doc1.txt", "doc2.txt"}, acme.Sources)
}

func TestBuilderIdempotentMerge(t *testing.T) {
	triples := []ExtractedTriple{
		extracted("Alice", "works for", "Acme", "doc1.txt", "Alice works for Acme."),
		extracted("Acme", "is based in", "Berlin", "doc1.txt", "Acme is based in Berlin."),
	}

	once := NewBuilder()
	once.AddAll(triples)
	twice := NewBuilder()
	twice.AddAll(triples)
	twice.AddAll(triples)

	g1, g2 := once.Graph(), twice.Graph()
	assert.Equal(t, len(g1.Entities), len(g2.Entities))
	assert.Equal(t, len(g1.Triples), len(g2.Triples))
	// Identical provenance entries are deduplicated too.
	assert.Len(t, g2.Triples[0].Provenance, 1)
}

func TestBuilderEntityIDStableAcrossOrder(t *testing.T) {
	forward := NewBuilder()
	forward.Add(extracted("IBM Corp.", "acquired", "Acme", "a.txt", "s1"))
	forward.Add(extracted("IBM", "hired", "Alice", "b.txt", "s2"))

	reverse := NewBuilder()
	reverse.Add(extracted("IBM", "hired", "Alice", "b.txt", "s2"))
	reverse.Add(extracted("IBM Corp.", "acquired", "Acme", "a.txt", "s1"))

	fg, rg := forward.Graph(), reverse.Graph()
	f, ok := fg.Entity("ibm")
	require.True(t, ok)
	r, ok := rg.Entity("ibm")
	require.True(t, ok)
	assert.Equal(t, f.ID, r.ID)
	assert.ElementsMatch(t, f.Aliases, r.Aliases)
}

func TestBuilderFirstSeenTypeWins(t *testing.T) {
	b := NewBuilder()
	b.Add(ExtractedTriple{
		Subject: "Mercury", SubjectType: "person",
		Relation: "leads", Object: "Queen",
		Provenance: Provenance{DocumentID: "d1", Sentence: "s1"},
	})
	b.Add(ExtractedTriple{
		Subject: "Mercury", SubjectType: "place",
		Relation: "visits", Object: "London",
		Provenance: Provenance{DocumentID: "d2", Sentence: "s2"},
	})

	g := b.Graph()
	mercury, ok := g.Entity("mercury")
	require.True(t, ok)
	assert.Equal(t, "person", mercury.Type)
}

func TestBuilderDropsIncompleteTriples(t *testing.T) {
	b := NewBuilder()
	b.Add(extracted("", "works for", "Acme", "d", "s"))
	b.Add(extracted("Alice", "", "Acme", "d", "s"))
	b.Add(extracted("Alice", "works for", "...", "d", "s"))
	b.Add(extracted("Alice", "undefined", "Acme", "d", "s"))

	g := b.Graph()
	assert.Empty(t, g.Triples)
}

func TestBuilderAllowsSelfRelations(t *testing.T) {
	b := NewBuilder()
	b.Add(extracted("Acme", "owns", "Acme Corp.", "d", "s"))

	g := b.Graph()
	require.Len(t, g.Triples, 1)
	assert.Equal(t, g.Triples[0].Subject, g.Triples[0].Object)
}
