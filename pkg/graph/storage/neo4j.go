package storage

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"

	"github.com/athapong/papergraph/pkg/graph"
)

// GraphExporter mirrors a finalized collection graph into an external graph
// backend. Export replaces any previously exported state for the same
// collection id.
type GraphExporter interface {
	Export(ctx context.Context, collectionID string, g *graph.Graph) error
	Close() error
}

// Neo4jExporter implements GraphExporter using Neo4j.
type Neo4jExporter struct {
	driver neo4j.Driver
}

// NewNeo4jExporter creates a Neo4j exporter.
func NewNeo4jExporter(uri, username, password string) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "creating neo4j driver")
	}
	return &Neo4jExporter{driver: driver}, nil
}

// Close releases the underlying driver.
func (e *Neo4jExporter) Close() error {
	if e.driver != nil {
		return e.driver.Close()
	}
	return nil
}

// Export writes all entities and triples of a collection graph in a single
// transaction, replacing the previous export of that collection.
func (e *Neo4jExporter) Export(ctx context.Context, collectionID string, g *graph.Graph) error {
	session := e.driver.NewSession(neo4j.SessionConfig{})
	defer session.Close()

	_, err := session.WriteTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		_, err := tx.Run(`
			MATCH (e:Entity {collection: $collection})
			DETACH DELETE e
		`, map[string]interface{}{"collection": collectionID})
		if err != nil {
			return nil, err
		}

		for _, entity := range g.Entities {
			_, err := tx.Run(`
				CREATE (e:Entity {
					id: $id,
					collection: $collection,
					type: $type,
					aliases: $aliases,
					sources: $sources
				})
			`, map[string]interface{}{
				"id":         entity.ID,
				"collection": collectionID,
				"type":       entity.Type,
				"aliases":    entity.Aliases,
				"sources":    entity.Sources,
			})
			if err != nil {
				return nil, err
			}
		}

		for _, triple := range g.Triples {
			_, err := tx.Run(`
				MATCH (s:Entity {id: $subject, collection: $collection})
				MATCH (o:Entity {id: $object, collection: $collection})
				CREATE (s)-[r:RELATES {
					type: $relation,
					provenance_count: $provenanceCount
				}]->(o)
			`, map[string]interface{}{
				"subject":         triple.Subject,
				"object":          triple.Object,
				"collection":      collectionID,
				"relation":        triple.Relation,
				"provenanceCount": len(triple.Provenance),
			})
			if err != nil {
				return nil, err
			}
		}

		return nil, nil
	})

	return errors.Wrap(err, "exporting graph to neo4j")
}
