package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/papergraph/pkg/graph"
)

func trainedModel(t *testing.T) *Model {
	t.Helper()

	encoded, ix := trainingFixture()
	model, err := NewTrainer(Config{Dim: 16, Epochs: 50, Seed: 11}).Train(context.Background(), encoded, ix)
	require.NoError(t, err)
	model.AliasIndex = map[string]int{
		"acme corp.": model.EntityIndex["acme"],
	}
	return model
}

func TestScoreBounded(t *testing.T) {
	s := NewScorer(trainedModel(t))

	score, err := s.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Acme"})
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreMonotoneInDistance(t *testing.T) {
	m := trainedModel(t)
	s := NewScorer(m)

	observed, err := s.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Acme"})
	require.NoError(t, err)
	corrupted, err := s.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Austin"})
	require.NoError(t, err)

	dObserved := m.Distance(m.EntityIndex["alice"], m.RelationIndex["works_for"], m.EntityIndex["acme"])
	dCorrupted := m.Distance(m.EntityIndex["alice"], m.RelationIndex["works_for"], m.EntityIndex["austin"])
	if dObserved < dCorrupted {
		assert.Greater(t, observed, corrupted)
	} else {
		assert.GreaterOrEqual(t, corrupted, observed)
	}
}

func TestScoreOutOfVocabulary(t *testing.T) {
	s := NewScorer(trainedModel(t))

	_, err := s.Score(graph.ExtractedTriple{Subject: "Zaphod", Relation: "works for", Object: "Acme"})
	assert.ErrorIs(t, err, ErrOutOfVocabulary)

	_, err = s.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "teleports to", Object: "Acme"})
	assert.ErrorIs(t, err, ErrOutOfVocabulary)
}

func TestScoreResolvesAliases(t *testing.T) {
	m := trainedModel(t)
	s := NewScorer(m)

	direct, err := s.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Acme"})
	require.NoError(t, err)

	// "Acme Corp." hits the alias index built at training time.
	viaAlias, err := s.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Acme Corp."})
	require.NoError(t, err)
	assert.Equal(t, direct, viaAlias)
}

func TestScoreNormalizationFallback(t *testing.T) {
	m := trainedModel(t)

	// "Initech GmbH" is not an alias, but normalization maps it to the
	// canonical id "initech".
	fallback := NewScorer(m)
	_, err := fallback.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Initech GmbH"})
	require.NoError(t, err)

	strict := NewScorer(m, WithAliasFallback(false))
	_, err = strict.Score(graph.ExtractedTriple{Subject: "Alice", Relation: "works for", Object: "Initech GmbH"})
	assert.ErrorIs(t, err, ErrOutOfVocabulary)
}
