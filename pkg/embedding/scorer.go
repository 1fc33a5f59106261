package embedding

import (
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/metrics"
)

// ErrOutOfVocabulary is returned when a statement references entities or a
// relation the model never saw during training. Callers are expected to treat
// it as a "not scorable" outcome rather than a failure.
var ErrOutOfVocabulary = errors.New("entity or relation not in training vocabulary")

// Scorer maps an extracted triple to a bounded plausibility value using a
// trained model. The mapping exp(-distance) is monotone decreasing in the
// translational distance, so lower distance always means a higher score.
type Scorer struct {
	model         *Model
	aliasFallback bool
	logger        *logrus.Logger
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithAliasFallback controls whether a failed exact alias lookup is retried
// with the graph's canonical normalization. Enabled by default.
func WithAliasFallback(enabled bool) ScorerOption {
	return func(s *Scorer) { s.aliasFallback = enabled }
}

// WithScorerLogger replaces the default logger.
func WithScorerLogger(l *logrus.Logger) ScorerOption {
	return func(s *Scorer) { s.logger = l }
}

// NewScorer creates a scorer over a trained model.
func NewScorer(model *Model, opts ...ScorerOption) *Scorer {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	s := &Scorer{model: model, aliasFallback: true, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the plausibility of an extracted triple in (0, 1].
func (s *Scorer) Score(t graph.ExtractedTriple) (float64, error) {
	subject, ok := s.lookupEntity(t.Subject)
	if !ok {
		metrics.ScoreRequests.WithLabelValues("oov").Inc()
		return 0, errors.Wrapf(ErrOutOfVocabulary, "subject %q", t.Subject)
	}
	object, ok := s.lookupEntity(t.Object)
	if !ok {
		metrics.ScoreRequests.WithLabelValues("oov").Inc()
		return 0, errors.Wrapf(ErrOutOfVocabulary, "object %q", t.Object)
	}
	relation, ok := s.model.RelationIndex[graph.NormalizeRelation(t.Relation)]
	if !ok {
		metrics.ScoreRequests.WithLabelValues("oov").Inc()
		return 0, errors.Wrapf(ErrOutOfVocabulary, "relation %q", t.Relation)
	}

	distance := s.model.Distance(subject, relation, object)
	score := math.Exp(-distance)

	s.logger.WithFields(logrus.Fields{
		"subject":  t.Subject,
		"relation": t.Relation,
		"object":   t.Object,
		"distance": distance,
		"score":    score,
	}).Debug("Scored triple")

	metrics.ScoreRequests.WithLabelValues("scored").Inc()
	return score, nil
}

// lookupEntity resolves a mention to an embedding row: exact (lower-cased)
// alias match first, then the normalized form when fallback is enabled.
func (s *Scorer) lookupEntity(mention string) (int, bool) {
	exact := strings.ToLower(strings.TrimSpace(mention))
	if id, ok := s.model.AliasIndex[exact]; ok {
		return id, true
	}
	if id, ok := s.model.EntityIndex[exact]; ok {
		return id, true
	}
	if s.aliasFallback {
		if id, ok := s.model.EntityIndex[graph.Normalize(mention)]; ok {
			return id, true
		}
	}
	return 0, false
}
