package collection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/papergraph/pkg/embedding"
	"github.com/athapong/papergraph/pkg/graph"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newTestStore(t), WithTrainingConfig(embedding.Config{
		Dim:    16,
		Epochs: 30,
		Seed:   42,
	}))
}

func aliceDocs() []Document {
	return []Document{
		{Name: "doc1.txt", Content: []byte("Alice works for Acme.")},
		{Name: "doc2.txt", Content: []byte("Alice works for Acme Corp.")},
	}
}

func TestCreateMergesDocuments(t *testing.T) {
	svc := newTestService(t)

	g, err := svc.Create(context.Background(), "papers", aliceDocs(), false)
	require.NoError(t, err)

	// Both sentences describe the same fact, so the graph collapses to one
	// triple between two entities with provenance from both documents.
	assert.Len(t, g.Entities, 2)
	assert.Equal(t, []string{"works_for"}, g.Relations)
	require.Len(t, g.Triples, 1)
	assert.Len(t, g.Triples[0].Provenance, 2)

	detail, err := svc.Get(context.Background(), "papers")
	require.NoError(t, err)
	assert.Equal(t, "papers", detail.KID)
	assert.Equal(t, []string{"doc1.txt", "doc2.txt"}, detail.KnowledgeBase)
	assert.Equal(t, 1, detail.Size)
	assert.Equal(t, "none", detail.AIModels)
	assert.Len(t, detail.Graph.Triples, 1)

	page, err := svc.Visualization(context.Background(), "papers")
	require.NoError(t, err)
	assert.Contains(t, string(page), "d3")
}

func TestCreateRejectsEmptyDocumentSet(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "papers", nil, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateRejectsUnsupportedDocument(t *testing.T) {
	svc := newTestService(t)

	docs := []Document{{Name: "image.png", Content: []byte("not text")}}
	_, err := svc.Create(context.Background(), "papers", docs, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateWithoutOverwriteRefusesExisting(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "papers", aliceDocs(), false)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "papers", aliceDocs(), false)
	assert.ErrorIs(t, err, ErrExists)
}

func TestCreateOverwriteReplacesGraphAndModel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "papers", aliceDocs(), false)
	require.NoError(t, err)
	_, err = svc.Train(ctx, "papers")
	require.NoError(t, err)

	docs := []Document{{Name: "doc3.txt", Content: []byte("Bob lives in Berlin.")}}
	g, err := svc.Create(ctx, "papers", docs, true)
	require.NoError(t, err)
	require.Len(t, g.Triples, 1)
	assert.Equal(t, "bob", g.Triples[0].Subject)

	// The model belonged to the replaced graph and is gone with it.
	_, err = svc.Score(ctx, "papers", "Bob lives in Berlin.")
	assert.ErrorIs(t, err, ErrNoModel)

	detail, err := svc.Get(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, "none", detail.AIModels)
}

func TestCreateWhileBusy(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)

	release, err := store.Begin("papers")
	require.NoError(t, err)
	defer release()

	_, err = svc.Create(context.Background(), "papers", aliceDocs(), false)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestGetConsistentDuringOverwrite(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	small := sampleGraph()
	b := graph.NewBuilder()
	b.Add(graph.ExtractedTriple{
		Subject:    "Bob",
		Relation:   "lives in",
		Object:     "Berlin",
		Provenance: graph.Provenance{DocumentID: "doc2.txt", Sentence: "s1"},
	})
	b.Add(graph.ExtractedTriple{
		Subject:    "Bob",
		Relation:   "works for",
		Object:     "Initech",
		Provenance: graph.Provenance{DocumentID: "doc2.txt", Sentence: "s2"},
	})
	large := b.Graph()

	require.NoError(t, store.Replace("papers", small, sampleMetadata("papers", small.Size()), nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			g := small
			if i%2 == 1 {
				g = large
			}
			if err := store.Replace("papers", g, sampleMetadata("papers", g.Size()), nil); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	// Metadata and graph must always come from the same collection state,
	// whichever side of an in-flight overwrite that is.
	for {
		select {
		case <-done:
			return
		default:
		}

		detail, err := svc.Get(ctx, "papers")
		require.NoError(t, err)
		require.Equal(t, detail.Size, len(detail.Graph.Triples),
			"metadata size and graph triple count diverged")
	}
}

func TestTrainFailureRestoresMetadata(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Both mentions collapse to one entity, so training fails after the
	// in-progress marker has been written.
	docs := []Document{{Name: "doc1.txt", Content: []byte("Acme owns Acme Corp.")}}
	_, err := svc.Create(ctx, "papers", docs, false)
	require.NoError(t, err)

	_, err = svc.Train(ctx, "papers")
	assert.ErrorIs(t, err, embedding.ErrTooFewEntities)

	detail, err := svc.Get(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, "none", detail.AIModels)
}

func TestCreateHarvestsCitationReferences(t *testing.T) {
	svc := newTestService(t)

	docs := []Document{
		{Name: "doc1.txt", Content: []byte("Alice works for Acme [Smith, 2019].")},
	}
	g, err := svc.Create(context.Background(), "papers", docs, false)
	require.NoError(t, err)

	found := false
	for _, tr := range g.Triples {
		if tr.Relation == "references" && tr.Subject == "paper" {
			found = true
		}
	}
	assert.True(t, found, "expected a references triple for the harvested citation")
}

func TestTrainAndScore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "papers", aliceDocs(), false)
	require.NoError(t, err)

	model, err := svc.Train(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, embedding.ModelName, model.Name)
	assert.Equal(t, 16, model.Dim)

	detail, err := svc.Get(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, embedding.ModelName, detail.AIModels)

	score, err := svc.Score(ctx, "papers", "Alice works for Acme.")
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestTrainMissingCollection(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Train(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTrainEmptyGraph(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	docs := []Document{{Name: "doc1.txt", Content: []byte("Hello.")}}
	_, err := svc.Create(ctx, "papers", docs, false)
	require.NoError(t, err)

	_, err = svc.Train(ctx, "papers")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Failed training leaves the metadata out of the transient marker state.
	detail, err := svc.Get(ctx, "papers")
	require.NoError(t, err)
	assert.Equal(t, "none", detail.AIModels)
}

func TestScoreWithoutModel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "papers", aliceDocs(), false)
	require.NoError(t, err)

	_, err = svc.Score(ctx, "papers", "Alice works for Acme.")
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestScoreUnseenEntity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "papers", aliceDocs(), false)
	require.NoError(t, err)
	_, err = svc.Train(ctx, "papers")
	require.NoError(t, err)

	_, err = svc.Score(ctx, "papers", "Zaphod works for Vogsphere.")
	assert.ErrorIs(t, err, ErrNotScorable)
}

func TestScoreUnparseableStatement(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "papers", aliceDocs(), false)
	require.NoError(t, err)
	_, err = svc.Train(ctx, "papers")
	require.NoError(t, err)

	_, err = svc.Score(ctx, "papers", "Hello.")
	assert.ErrorIs(t, err, ErrNotScorable)
}

func TestListReturnsAllCollections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "beta", aliceDocs(), false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alpha", aliceDocs(), false)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].KID)
	assert.Equal(t, "beta", list[1].KID)
}
