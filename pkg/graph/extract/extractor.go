package extract

import (
	"context"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/metrics"
)

var pronouns = mapset.NewSet[string](
	"i", "you", "he", "she", "it", "we", "they",
	"me", "him", "her", "us", "them",
	"his", "hers", "its", "their", "theirs", "our", "ours", "your", "yours", "my", "mine",
	"this", "that", "these", "those", "who", "which", "what",
)

var stopWords = mapset.NewSet[string](
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "as", "is", "are", "was", "were", "be", "been",
)

var auxiliaryVerbs = mapset.NewSet[string](
	"be", "am", "is", "are", "was", "were", "been", "being",
	"have", "has", "had", "do", "does", "did",
	"will", "would", "shall", "should", "can", "could", "may", "might", "must",
)

// Extractor runs sentence segmentation, entity recognition and relation
// extraction over raw text. The language analysis itself is delegated to an
// Analyzer so other NLP backends can be plugged in.
type Extractor struct {
	analyzer graph.Analyzer
	logger   *logrus.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithAnalyzer replaces the default prose-based analyzer.
func WithAnalyzer(a graph.Analyzer) Option {
	return func(e *Extractor) { e.analyzer = a }
}

// WithLogger replaces the default logger.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an extractor backed by the prose analyzer unless overridden.
func New(opts ...Option) *Extractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	e := &Extractor{
		analyzer: NewProseAnalyzer(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract segments the text and extracts candidate triples sentence by
// sentence. Per-sentence failures are logged and skipped; only a failure to
// segment the document at all is fatal.
func (e *Extractor) Extract(ctx context.Context, text string, documentID string) ([]graph.ExtractedTriple, error) {
	sentences, err := e.analyzer.Segment(text)
	if err != nil {
		return nil, errors.Wrap(err, "segmenting document")
	}

	triples := make([]graph.ExtractedTriple, 0)
	for _, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		extracted, err := e.extractSentence(sentence)
		if err != nil {
			e.logger.WithError(err).WithField("sentence", sentence).Warn("Skipping sentence")
			continue
		}

		for i := range extracted {
			extracted[i].Provenance.DocumentID = documentID
		}
		triples = append(triples, extracted...)
	}

	e.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"sentences":   len(sentences),
		"triples":     len(triples),
	}).Info("Extraction completed")

	return triples, nil
}

// ExtractOne runs the pipeline on a single statement and returns the best
// candidate triple, or nil when nothing could be extracted. Candidates whose
// subject and object both carry a recognized entity type are preferred.
func (e *Extractor) ExtractOne(ctx context.Context, statement string) (*graph.ExtractedTriple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	statement = strings.TrimSpace(statement)
	if statement == "" {
		return nil, nil
	}

	triples, err := e.extractSentence(statement)
	if err != nil {
		return nil, errors.Wrap(err, "analyzing statement")
	}
	if len(triples) == 0 {
		return nil, nil
	}

	best := triples[0]
	for _, t := range triples[1:] {
		if t.SubjectType != "" && t.ObjectType != "" && (best.SubjectType == "" || best.ObjectType == "") {
			best = t
		}
	}
	return &best, nil
}

func (e *Extractor) extractSentence(sentence string) ([]graph.ExtractedTriple, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil, nil
	}

	metrics.SentencesAnalyzed.Inc()

	mentions, err := e.analyzer.RecognizeEntities(sentence)
	if err != nil {
		metrics.ExtractionFailures.WithLabelValues("entities").Inc()
		return nil, err
	}

	// A sentence with fewer than two entity mentions yields no triple.
	if len(mentions) < 2 {
		return nil, nil
	}

	triples, err := e.analyzer.ExtractRelations(sentence, mentions)
	if err != nil {
		metrics.ExtractionFailures.WithLabelValues("relations").Inc()
		return nil, err
	}

	metrics.TriplesExtracted.Add(float64(len(triples)))
	return triples, nil
}
