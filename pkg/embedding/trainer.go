package embedding

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/athapong/papergraph/pkg/graph"
	"github.com/athapong/papergraph/pkg/graph/metrics"
)

var (
	// ErrNoTriples is returned when training is requested on a graph with
	// zero triples.
	ErrNoTriples = errors.New("cannot train on an empty triple set")

	// ErrTooFewEntities is returned when negative sampling is impossible.
	ErrTooFewEntities = errors.New("need at least two entities for negative sampling")

	// ErrNonFiniteLoss is returned when training diverges numerically.
	ErrNonFiniteLoss = errors.New("training aborted: non-finite loss")
)

// Config holds the training hyperparameters. The zero value of any field is
// replaced by its default.
type Config struct {
	Dim          int
	Margin       float64
	Negatives    int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Norm         Norm
	// Seed pins the random source for reproducible training. Zero means a
	// time-based seed; results then vary run to run, which is acceptable for
	// an advisory model.
	Seed int64
}

func (c Config) withDefaults() Config {
	if c.Dim <= 0 {
		c.Dim = 50
	}
	if c.Margin <= 0 {
		c.Margin = 1.0
	}
	if c.Negatives <= 0 {
		c.Negatives = 1
	}
	if c.Epochs <= 0 {
		c.Epochs = 100
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 128
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.01
	}
	if c.Norm != NormL1 && c.Norm != NormL2 {
		c.Norm = NormL1
	}
	return c
}

// Trainer learns translational embeddings by minimizing a margin-based
// ranking loss over positive triples versus corrupted negatives.
type Trainer struct {
	cfg    Config
	logger *logrus.Logger
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithTrainerLogger replaces the default logger.
func WithTrainerLogger(l *logrus.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = l }
}

// NewTrainer creates a trainer with the given configuration.
func NewTrainer(cfg Config, opts ...TrainerOption) *Trainer {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	t := &Trainer{cfg: cfg.withDefaults(), logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train runs stochastic gradient descent over shuffled mini-batches. Each
// positive triple is contrasted against negatives produced by corrupting the
// subject or object (chosen uniformly) with a random other entity. Vectors
// are renormalized to unit norm after every update; without that step the
// loss could be minimized trivially by scaling.
func (t *Trainer) Train(ctx context.Context, triples []graph.EncodedTriple, ix *graph.Index) (*Model, error) {
	if len(triples) == 0 {
		return nil, ErrNoTriples
	}
	entityCount := ix.EntityCount()
	if entityCount < 2 {
		return nil, ErrTooFewEntities
	}

	timer := prometheus.NewTimer(metrics.TrainingDuration)
	defer timer.ObserveDuration()

	seed := t.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	model := &Model{
		Name:          ModelName,
		Dim:           t.cfg.Dim,
		Norm:          t.cfg.Norm,
		Entities:      initVectors(rng, entityCount, t.cfg.Dim),
		Relations:     initVectors(rng, ix.RelationCount(), t.cfg.Dim),
		EntityIndex:   ix.Entities,
		RelationIndex: ix.Relations,
	}

	grad := make([]float64, t.cfg.Dim)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		epochLoss := 0.0
		perm := rng.Perm(len(triples))

		for start := 0; start < len(perm); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(perm) {
				end = len(perm)
			}

			for _, pi := range perm[start:end] {
				pos := triples[pi]
				for k := 0; k < t.cfg.Negatives; k++ {
					neg := corrupt(rng, pos, entityCount)

					dPos := model.Distance(pos.Subject, pos.Relation, pos.Object)
					dNeg := model.Distance(neg.Subject, neg.Relation, neg.Object)

					violation := dPos + t.cfg.Margin - dNeg
					if violation <= 0 {
						continue
					}
					epochLoss += violation

					t.step(model, grad, pos, -1)
					t.step(model, grad, neg, +1)
					t.renormalize(model, pos, neg)
				}
			}
		}

		if math.IsNaN(epochLoss) || math.IsInf(epochLoss, 0) {
			return nil, ErrNonFiniteLoss
		}

		metrics.TrainingLoss.Set(epochLoss)
		if (epoch+1)%10 == 0 {
			t.logger.WithFields(logrus.Fields{
				"epoch": epoch + 1,
				"loss":  epochLoss,
			}).Debug("Training progress")
		}
	}

	for i := range model.Entities {
		normalize(model.Entities[i])
	}
	for i := range model.Relations {
		normalize(model.Relations[i])
	}

	model.TrainedAt = time.Now()
	t.logger.WithFields(logrus.Fields{
		"entities":  entityCount,
		"relations": ix.RelationCount(),
		"triples":   len(triples),
		"dim":       t.cfg.Dim,
		"epochs":    t.cfg.Epochs,
	}).Info("Training completed")

	return model, nil
}

// step applies one gradient update for a triple. direction is -1 for
// positives (pull the distance down) and +1 for negatives (push it up).
func (t *Trainer) step(m *Model, grad []float64, tr graph.EncodedTriple, direction float64) {
	floats.AddTo(grad, m.Entities[tr.Subject], m.Relations[tr.Relation])
	floats.Sub(grad, m.Entities[tr.Object])

	if t.cfg.Norm == NormL1 {
		for i, v := range grad {
			if v > 0 {
				grad[i] = 1
			} else if v < 0 {
				grad[i] = -1
			}
		}
	}

	lr := t.cfg.LearningRate * direction
	floats.AddScaled(m.Entities[tr.Subject], lr, grad)
	floats.AddScaled(m.Relations[tr.Relation], lr, grad)
	floats.AddScaled(m.Entities[tr.Object], -lr, grad)
}

func (t *Trainer) renormalize(m *Model, pos, neg graph.EncodedTriple) {
	normalize(m.Entities[pos.Subject])
	normalize(m.Entities[pos.Object])
	normalize(m.Entities[neg.Subject])
	normalize(m.Entities[neg.Object])
	normalize(m.Relations[pos.Relation])
}

// corrupt replaces the subject or object, with equal probability, by a
// random entity different from the original.
func corrupt(rng *rand.Rand, pos graph.EncodedTriple, entityCount int) graph.EncodedTriple {
	neg := pos
	if rng.Intn(2) == 0 {
		neg.Subject = randomOther(rng, pos.Subject, entityCount)
	} else {
		neg.Object = randomOther(rng, pos.Object, entityCount)
	}
	return neg
}

func randomOther(rng *rand.Rand, exclude, n int) int {
	for {
		if c := rng.Intn(n); c != exclude {
			return c
		}
	}
}

func initVectors(rng *rand.Rand, count, dim int) [][]float64 {
	bound := 6.0 / math.Sqrt(float64(dim))
	vectors := make([][]float64, count)
	for i := range vectors {
		v := make([]float64, dim)
		for j := range v {
			v[j] = (rng.Float64()*2 - 1) * bound
		}
		normalize(v)
		vectors[i] = v
	}
	return vectors
}

func normalize(v []float64) {
	n := floats.Norm(v, 2)
	if n > 0 {
		floats.Scale(1/n, v)
	}
}
