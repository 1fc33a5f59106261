package collection

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/papergraph/pkg/embedding"
	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/extract"
	"github.com/athapong/papergraph/pkg/graph/loader"
	"github.com/athapong/papergraph/pkg/graph/metrics"
	"github.com/athapong/papergraph/pkg/graph/storage"
	"github.com/athapong/papergraph/pkg/graph/visualizer"
)

const trainingMarker = "training..."

// Document is one raw input file submitted for ingestion.
type Document struct {
	Name    string
	Content []byte
}

// Detail combines a collection's metadata with its full graph.
type Detail struct {
	Metadata
	Graph *graph.Graph `json:"graph"`
}

// Service orchestrates the full pipeline: document loading, extraction,
// graph building, embedding training and scoring, on top of the store.
type Service struct {
	store         *Store
	loaders       *loader.Registry
	extractor     graph.Extractor
	visualizer    *visualizer.D3Visualizer
	exporter      storage.GraphExporter
	trainCfg      embedding.Config
	aliasFallback bool
	logger        *logrus.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLoaders replaces the default loader registry.
func WithLoaders(r *loader.Registry) Option {
	return func(s *Service) { s.loaders = r }
}

// WithExtractor replaces the default prose-based extractor.
func WithExtractor(e graph.Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithExporter mirrors every created graph into an external graph backend.
func WithExporter(e storage.GraphExporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithTrainingConfig sets the embedding training hyperparameters.
func WithTrainingConfig(cfg embedding.Config) Option {
	return func(s *Service) { s.trainCfg = cfg }
}

// WithAliasFallback controls normalized-form fallback during score lookups.
func WithAliasFallback(enabled bool) Option {
	return func(s *Service) { s.aliasFallback = enabled }
}

// WithLogger replaces the default logger.
func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service over the given store.
func NewService(store *Store, opts ...Option) *Service {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	s := &Service{
		store:         store,
		loaders:       loader.DefaultRegistry(),
		extractor:     extract.New(),
		visualizer:    visualizer.NewD3Visualizer(),
		aliasFallback: true,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create ingests a document set into a new collection. With overwrite the
// previous collection (graph and model) is replaced atomically; without it
// an occupied identifier is an error. A malformed document aborts the whole
// operation before anything is persisted.
func (s *Service) Create(ctx context.Context, id string, docs []Document, overwrite bool) (*graph.Graph, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "empty document set")
	}

	release, err := s.store.Begin(id)
	if err != nil {
		return nil, err
	}
	defer release()

	if !overwrite && s.store.Exists(id) {
		return nil, errors.Wrapf(ErrExists, "collection %q", id)
	}

	results, err := s.extractAll(ctx, docs)
	if err != nil {
		return nil, err
	}

	builder := graph.NewBuilder()
	names := make([]string, 0, len(docs))
	for i, doc := range docs {
		names = append(names, doc.Name)
		builder.AddAll(results[i].triples)
		for _, ref := range results[i].references {
			builder.Add(graph.ExtractedTriple{
				Subject:    "Paper",
				Relation:   "references",
				Object:     ref,
				Provenance: graph.Provenance{DocumentID: doc.Name},
			})
		}
	}
	g := builder.Graph()

	metrics.GraphEntityCount.WithLabelValues(id).Set(float64(len(g.Entities)))
	metrics.GraphTripleCount.WithLabelValues(id).Set(float64(g.Size()))
	metrics.UpdateSystemMetrics()

	visualization, err := s.visualizer.Render(g)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := Metadata{
		KID:           id,
		KnowledgeBase: names,
		Created:       time.Now(),
		Size:          g.Size(),
		AIModels:      "none",
	}
	if err := s.store.Replace(id, g, meta, visualization); err != nil {
		return nil, err
	}

	if s.exporter != nil {
		if err := s.exporter.Export(ctx, id, g); err != nil {
			s.logger.WithError(err).WithField("kid", id).Warn("Graph export failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"kid":      id,
		"entities": len(g.Entities),
		"triples":  g.Size(),
	}).Info("Collection created")
	return g, nil
}

type documentResult struct {
	triples    []graph.ExtractedTriple
	references []string
}

// extractAll loads and extracts every document concurrently, keeping results
// in submission order so the merged graph is deterministic.
func (s *Service) extractAll(ctx context.Context, docs []Document) ([]documentResult, error) {
	results := make([]documentResult, len(docs))
	errs := make(chan error, len(docs))
	var wg sync.WaitGroup

	for i, doc := range docs {
		wg.Add(1)
		go func(i int, doc Document) {
			defer wg.Done()

			l, err := s.loaders.ForName(doc.Name)
			if err != nil {
				errs <- errors.Wrapf(ErrInvalidInput, "document %q: %v", doc.Name, err)
				return
			}

			loaded, err := l.Load(ctx, doc.Content)
			if err != nil {
				errs <- errors.Wrapf(ErrInvalidInput, "document %q: %v", doc.Name, err)
				return
			}

			triples, err := s.extractor.Extract(ctx, loaded.Text, doc.Name)
			if err != nil {
				errs <- errors.Wrapf(ErrInvalidInput, "document %q: %v", doc.Name, err)
				return
			}

			results[i] = documentResult{triples: triples, references: loaded.References}
		}(i, doc)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Train encodes the collection's graph and fits a fresh embedding model.
// The previously persisted model stays untouched if training fails.
func (s *Service) Train(ctx context.Context, id string) (*embedding.Model, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	release, err := s.store.Begin(id)
	if err != nil {
		return nil, err
	}
	defer release()

	meta, err := s.store.ReadMetadata(id)
	if err != nil {
		return nil, err
	}
	g, err := s.store.ReadGraph(id)
	if err != nil {
		return nil, err
	}
	if g.Size() == 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "collection %q has no triples to train on", id)
	}

	previous := meta.AIModels
	meta.AIModels = trainingMarker
	if err := s.store.WriteMetadata(id, meta); err != nil {
		return nil, err
	}

	// The marker must not outlive the operation, whichever step below fails.
	finalized := false
	defer func() {
		if finalized {
			return
		}
		meta.AIModels = previous
		if err := s.store.WriteMetadata(id, meta); err != nil {
			s.logger.WithError(err).WithField("kid", id).Error("Restoring metadata failed")
		}
	}()

	ix, encoded := graph.Encode(g)
	trainer := embedding.NewTrainer(s.trainCfg, embedding.WithTrainerLogger(s.logger))
	model, err := trainer.Train(ctx, encoded, ix)
	if err != nil {
		return nil, err
	}
	model.AliasIndex = aliasIndex(g, ix)

	if err := s.store.WriteModel(id, model); err != nil {
		return nil, err
	}

	meta.AIModels = model.Name
	if err := s.store.WriteMetadata(id, meta); err != nil {
		return nil, err
	}
	finalized = true
	metrics.UpdateSystemMetrics()

	s.logger.WithFields(logrus.Fields{
		"kid":   id,
		"model": model.Name,
		"dim":   model.Dim,
	}).Info("Model trained")
	return model, nil
}

// Score extracts a triple from a natural-language statement and returns its
// plausibility under the collection's trained model. Statements that yield
// no triple or reference unseen vocabulary map to ErrNotScorable.
func (s *Service) Score(ctx context.Context, id, statement string) (float64, error) {
	if err := ValidateID(id); err != nil {
		return 0, err
	}

	model, err := s.store.ReadModel(id)
	if err != nil {
		return 0, err
	}

	triple, err := s.extractor.ExtractOne(ctx, statement)
	if err != nil {
		return 0, err
	}
	if triple == nil {
		metrics.ScoreRequests.WithLabelValues("no_triple").Inc()
		return 0, errors.Wrapf(ErrNotScorable, "no triple extractable from %q", statement)
	}

	scorer := embedding.NewScorer(model,
		embedding.WithAliasFallback(s.aliasFallback),
		embedding.WithScorerLogger(s.logger),
	)
	score, err := scorer.Score(*triple)
	if errors.Is(err, embedding.ErrOutOfVocabulary) {
		return 0, errors.Wrapf(ErrNotScorable, "%v", err)
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

// Get returns a collection's metadata and graph. Both come from the same
// store snapshot, so a concurrent overwrite never yields metadata from one
// collection state paired with the graph of another.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	meta, g, err := s.store.ReadCollection(id)
	if err != nil {
		return nil, err
	}
	if meta.AIModels == "" {
		meta.AIModels = "none"
	}
	return &Detail{Metadata: meta, Graph: g}, nil
}

// List returns the metadata of all collections.
func (s *Service) List(ctx context.Context) ([]Metadata, error) {
	return s.store.List()
}

// Visualization returns the rendered HTML page for a collection graph.
func (s *Service) Visualization(ctx context.Context, id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return s.store.ReadVisualization(id)
}

// aliasIndex maps every lower-cased alias of every entity to its embedding
// row, for query-time mention resolution.
func aliasIndex(g *graph.Graph, ix *graph.Index) map[string]int {
	index := make(map[string]int)
	for _, e := range g.Entities {
		id, ok := ix.EntityID(e.ID)
		if !ok {
			continue
		}
		for _, alias := range e.Aliases {
			index[strings.ToLower(alias)] = id
		}
	}
	return index
}
