package collection

import "github.com/pkg/errors"

var (
	// ErrInvalidInput covers malformed documents, empty document sets and
	// invalid collection identifiers. Nothing is persisted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExists is returned by create without overwrite when the identifier
	// is already occupied.
	ErrExists = errors.New("collection already exists")

	// ErrNotFound is returned for operations against an unknown identifier.
	ErrNotFound = errors.New("collection not found")

	// ErrNoModel is returned by score when the collection exists but has no
	// trained model.
	ErrNoModel = errors.New("no trained model for collection")

	// ErrBusy is returned when a create or train is already in flight for
	// the same identifier. Concurrent requests are rejected, not queued.
	ErrBusy = errors.New("collection is busy")

	// ErrNotScorable is the sentinel for statements that yield no triple or
	// reference out-of-vocabulary entities or relations.
	ErrNotScorable = errors.New("statement not scorable")
)
