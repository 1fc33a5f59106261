package embedding

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Norm selects the distance norm used by the translational scoring function.
type Norm string

const (
	NormL1 Norm = "L1"
	NormL2 Norm = "L2"
)

// ModelName identifies the embedding model family in collection metadata.
const ModelName = "TransE"

// Model holds one trained embedding per entity and per relation type,
// together with the index that maps canonical ids to embedding rows. A model
// is only valid for the exact graph it was trained on.
type Model struct {
	Name          string         `json:"name"`
	Dim           int            `json:"dim"`
	Norm          Norm           `json:"norm"`
	Entities      [][]float64    `json:"entities"`
	Relations     [][]float64    `json:"relations"`
	EntityIndex   map[string]int `json:"entity_index"`
	RelationIndex map[string]int `json:"relation_index"`
	AliasIndex    map[string]int `json:"alias_index,omitempty"`
	TrainedAt     time.Time      `json:"trained_at"`
}

// Distance computes the translational distance ||e_s + e_r - e_o|| under the
// model's norm. Lower distance means higher plausibility.
func (m *Model) Distance(subject, relation, object int) float64 {
	v := make([]float64, m.Dim)
	floats.AddTo(v, m.Entities[subject], m.Relations[relation])
	floats.Sub(v, m.Entities[object])

	if m.Norm == NormL1 {
		return floats.Norm(v, 1)
	}
	return floats.Norm(v, 2)
}

// Marshal serializes the model for persistence.
func (m *Model) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encoding model")
	}
	return data, nil
}

// Unmarshal deserializes a persisted model.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "decoding model")
	}
	return &m, nil
}
