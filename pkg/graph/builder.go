package graph

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type tripleKey struct {
	subject  string
	relation string
	object   string
}

// Builder merges extracted triples from any number of documents into a single
// graph. Mentions are resolved against existing entities by exact alias match
// first, then by normalized form; unmatched mentions create new entities.
type Builder struct {
	entities  []Entity
	entityIdx map[string]int // canonical id -> index into entities
	aliasIdx  map[string]int // lower-cased alias or normalized form -> index
	relations []string
	relIdx    map[string]struct{}
	triples   []Triple
	tripleIdx map[tripleKey]int
	logger    *logrus.Logger
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Builder{
		entityIdx: make(map[string]int),
		aliasIdx:  make(map[string]int),
		relIdx:    make(map[string]struct{}),
		tripleIdx: make(map[tripleKey]int),
		logger:    logger,
	}
}

// Add merges one extracted triple into the graph under construction.
// Candidates with an empty subject, relation or object after normalization
// are dropped.
func (b *Builder) Add(t ExtractedTriple) {
	relation := NormalizeRelation(t.Relation)
	if relation == "undefined" {
		relation = ""
	}
	subjectID := ""
	objectID := ""
	if relation != "" {
		subjectID = b.resolve(t.Subject, t.SubjectType, t.Provenance.DocumentID)
		objectID = b.resolve(t.Object, t.ObjectType, t.Provenance.DocumentID)
	}

	if subjectID == "" || objectID == "" || relation == "" {
		b.logger.WithFields(logrus.Fields{
			"subject":  t.Subject,
			"relation": t.Relation,
			"object":   t.Object,
		}).Debug("Dropping incomplete triple")
		return
	}

	if _, seen := b.relIdx[relation]; !seen {
		b.relIdx[relation] = struct{}{}
		b.relations = append(b.relations, relation)
	}

	key := tripleKey{subject: subjectID, relation: relation, object: objectID}
	idx, exists := b.tripleIdx[key]
	if !exists {
		b.triples = append(b.triples, Triple{
			Subject:    subjectID,
			Relation:   relation,
			Object:     objectID,
			Provenance: []Provenance{t.Provenance},
		})
		b.tripleIdx[key] = len(b.triples) - 1
		return
	}

	// Merged edge: concatenate provenance, skipping identical entries.
	for _, p := range b.triples[idx].Provenance {
		if p == t.Provenance {
			return
		}
	}
	b.triples[idx].Provenance = append(b.triples[idx].Provenance, t.Provenance)
}

// AddAll merges a batch of extracted triples in order.
func (b *Builder) AddAll(triples []ExtractedTriple) {
	for _, t := range triples {
		b.Add(t)
	}
}

// resolve maps a mention to a canonical entity id, creating the entity on
// first sight and accumulating aliases and sources on later ones. The
// first-seen type tag wins; conflicting tags are ignored.
func (b *Builder) resolve(mention, typeTag, documentID string) string {
	surface := strings.Join(strings.Fields(strings.TrimSpace(mention)), " ")
	exact := strings.ToLower(surface)
	normalized := Normalize(surface)
	if normalized == "" {
		return ""
	}

	idx, ok := b.aliasIdx[exact]
	if !ok {
		idx, ok = b.aliasIdx[normalized]
	}

	if !ok {
		b.entities = append(b.entities, Entity{
			ID:      normalized,
			Type:    typeTag,
			Aliases: []string{surface},
			Sources: []string{documentID},
		})
		idx = len(b.entities) - 1
		b.entityIdx[normalized] = idx
		b.aliasIdx[exact] = idx
		b.aliasIdx[normalized] = idx
		return normalized
	}

	entity := &b.entities[idx]
	if !containsString(entity.Aliases, surface) {
		entity.Aliases = append(entity.Aliases, surface)
	}
	b.aliasIdx[exact] = idx
	if entity.Type == "" {
		entity.Type = typeTag
	}
	if documentID != "" && !containsString(entity.Sources, documentID) {
		entity.Sources = append(entity.Sources, documentID)
	}
	return entity.ID
}

// Graph freezes the builder state into an immutable graph.
func (b *Builder) Graph() *Graph {
	entities := make([]Entity, len(b.entities))
	copy(entities, b.entities)
	relations := make([]string, len(b.relations))
	copy(relations, b.relations)
	triples := make([]Triple, len(b.triples))
	copy(triples, b.triples)

	return &Graph{
		Entities:    entities,
		Relations:   relations,
		Triples:     triples,
		GeneratedAt: time.Now(),
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
