package graph

// EncodedTriple is a (subject, relation, object) triple mapped to dense
// integer ids.
type EncodedTriple struct {
	Subject  int `json:"s"`
	Relation int `json:"r"`
	Object   int `json:"o"`
}

// Index maps canonical entity ids and relation labels to dense zero-based
// integer ids assigned in first-seen order. Encoding the same graph twice
// yields identical indexes.
type Index struct {
	Entities  map[string]int `json:"entities"`
	Relations map[string]int `json:"relations"`
}

// Encode assigns dense ids to every entity and relation type in the graph and
// returns the index together with the encoded triple list.
func Encode(g *Graph) (*Index, []EncodedTriple) {
	ix := &Index{
		Entities:  make(map[string]int, len(g.Entities)),
		Relations: make(map[string]int, len(g.Relations)),
	}

	for i, e := range g.Entities {
		ix.Entities[e.ID] = i
	}
	for i, r := range g.Relations {
		ix.Relations[r] = i
	}

	encoded := make([]EncodedTriple, 0, len(g.Triples))
	for _, t := range g.Triples {
		encoded = append(encoded, EncodedTriple{
			Subject:  ix.Entities[t.Subject],
			Relation: ix.Relations[t.Relation],
			Object:   ix.Entities[t.Object],
		})
	}

	return ix, encoded
}

// EntityID looks up the dense id for a canonical entity id.
func (ix *Index) EntityID(canonical string) (int, bool) {
	id, ok := ix.Entities[canonical]
	return id, ok
}

// RelationID looks up the dense id for a relation label.
func (ix *Index) RelationID(label string) (int, bool) {
	id, ok := ix.Relations[label]
	return id, ok
}

// EntityCount returns the number of indexed entities.
func (ix *Index) EntityCount() int { return len(ix.Entities) }

// RelationCount returns the number of indexed relation types.
func (ix *Index) RelationCount() int { return len(ix.Relations) }
