package collection

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/papergraph/pkg/embedding"
	"github.com/athapong/papergraph/pkg/graph"
)

const (
	graphFile         = "graph.json"
	metadataFile      = "metadata.json"
	modelFile         = "model.json"
	visualizationFile = "graph.html"
)

var validIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Metadata is the per-collection record exposed by list and detail
// operations.
type Metadata struct {
	KID           string    `json:"kid"`
	KnowledgeBase []string  `json:"knowledge_base"`
	Created       time.Time `json:"created"`
	Size          int       `json:"size"`
	AIModels      string    `json:"ai_models"`
}

// Store persists collections under a root directory, one subdirectory per
// collection id holding the serialized graph, metadata, trained model and
// visualization page. Overwrites are atomic: the new directory is fully
// built before it is swapped in, so readers observe either the old or the
// new collection, never a mix.
type Store struct {
	root   string
	mu     sync.Mutex
	ops    map[string]*sync.Mutex
	states map[string]*sync.RWMutex
	logger *logrus.Logger
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(err, "creating store root")
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Store{
		root:   root,
		ops:    make(map[string]*sync.Mutex),
		states: make(map[string]*sync.RWMutex),
		logger: logger,
	}, nil
}

// ValidateID checks that an identifier is usable as a collection name.
func ValidateID(id string) error {
	if !validIDPattern.MatchString(id) {
		return errors.Wrapf(ErrInvalidInput, "invalid collection id %q", id)
	}
	return nil
}

func (s *Store) opLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ops[id]
	if !ok {
		l = &sync.Mutex{}
		s.ops[id] = l
	}
	return l
}

func (s *Store) stateLock(id string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.states[id]
	if !ok {
		l = &sync.RWMutex{}
		s.states[id] = l
	}
	return l
}

// Begin acquires the long-running-operation lock for a collection. It
// returns ErrBusy when a create or train is already in flight for the id.
func (s *Store) Begin(id string) (func(), error) {
	l := s.opLock(id)
	if !l.TryLock() {
		return nil, errors.Wrapf(ErrBusy, "collection %q", id)
	}
	return l.Unlock, nil
}

// Exists reports whether a collection directory is present.
func (s *Store) Exists(id string) bool {
	info, err := os.Stat(filepath.Join(s.root, id))
	return err == nil && info.IsDir()
}

// Replace atomically installs a collection: graph, metadata and
// visualization are written to a staging directory which is swapped in under
// the collection's state lock. Any previous state is discarded only after
// the new directory is complete.
func (s *Store) Replace(id string, g *graph.Graph, meta Metadata, visualization []byte) error {
	staging := filepath.Join(s.root, ".staging-"+id+"-"+uuid.New().String())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return errors.Wrap(err, "creating staging directory")
	}
	defer os.RemoveAll(staging)

	graphData, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding graph")
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding metadata")
	}

	files := map[string][]byte{
		graphFile:         graphData,
		metadataFile:      metaData,
		visualizationFile: visualization,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(staging, name), data, 0644); err != nil {
			return errors.Wrapf(err, "writing %s", name)
		}
	}

	final := filepath.Join(s.root, id)
	trash := filepath.Join(s.root, ".trash-"+id+"-"+uuid.New().String())

	lock := s.stateLock(id)
	lock.Lock()
	replaced := false
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, trash); err != nil {
			lock.Unlock()
			return errors.Wrap(err, "retiring previous collection")
		}
		replaced = true
	}
	if err := os.Rename(staging, final); err != nil {
		if replaced {
			// Best effort rollback of the retired directory.
			if rbErr := os.Rename(trash, final); rbErr != nil {
				s.logger.WithError(rbErr).WithField("kid", id).Error("Rollback failed")
			}
		}
		lock.Unlock()
		return errors.Wrap(err, "installing collection")
	}
	lock.Unlock()

	if replaced {
		os.RemoveAll(trash)
	}

	s.logger.WithFields(logrus.Fields{
		"kid":  id,
		"size": meta.Size,
	}).Info("Collection stored")
	return nil
}

// ReadMetadata loads a collection's metadata.
func (s *Store) ReadMetadata(id string) (Metadata, error) {
	lock := s.stateLock(id)
	lock.RLock()
	defer lock.RUnlock()
	return s.readMetadataLocked(id)
}

func (s *Store) readMetadataLocked(id string) (Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id, metadataFile))
	if os.IsNotExist(err) {
		return Metadata{}, errors.Wrapf(ErrNotFound, "collection %q", id)
	}
	if err != nil {
		return Metadata{}, errors.Wrap(err, "reading metadata")
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, errors.Wrap(err, "decoding metadata")
	}
	return meta, nil
}

// WriteMetadata replaces a collection's metadata file in place.
func (s *Store) WriteMetadata(id string, meta Metadata) error {
	lock := s.stateLock(id)
	lock.Lock()
	defer lock.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding metadata")
	}
	return s.writeFileAtomic(id, metadataFile, data)
}

// ReadGraph loads a collection's graph.
func (s *Store) ReadGraph(id string) (*graph.Graph, error) {
	lock := s.stateLock(id)
	lock.RLock()
	defer lock.RUnlock()
	return s.readGraphLocked(id)
}

// ReadCollection loads a collection's metadata and graph as one consistent
// snapshot. Both files are read under the same state lock acquisition, so a
// concurrent Replace can never interleave between them.
func (s *Store) ReadCollection(id string) (Metadata, *graph.Graph, error) {
	lock := s.stateLock(id)
	lock.RLock()
	defer lock.RUnlock()

	meta, err := s.readMetadataLocked(id)
	if err != nil {
		return Metadata{}, nil, err
	}
	g, err := s.readGraphLocked(id)
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, g, nil
}

func (s *Store) readGraphLocked(id string) (*graph.Graph, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id, graphFile))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "collection %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading graph")
	}

	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "decoding graph")
	}
	return &g, nil
}

// WriteModel persists a trained model for the collection.
func (s *Store) WriteModel(id string, model *embedding.Model) error {
	lock := s.stateLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.readMetadataLocked(id); err != nil {
		return err
	}

	data, err := model.Marshal()
	if err != nil {
		return err
	}
	return s.writeFileAtomic(id, modelFile, data)
}

// ReadModel loads the trained model for a collection. It distinguishes a
// missing collection (ErrNotFound) from a collection without a model
// (ErrNoModel).
func (s *Store) ReadModel(id string) (*embedding.Model, error) {
	lock := s.stateLock(id)
	lock.RLock()
	defer lock.RUnlock()

	if _, err := s.readMetadataLocked(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, id, modelFile))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNoModel, "collection %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading model")
	}
	return embedding.Unmarshal(data)
}

// ReadVisualization loads the rendered HTML page for a collection.
func (s *Store) ReadVisualization(id string) ([]byte, error) {
	lock := s.stateLock(id)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.root, id, visualizationFile))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "collection %q", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading visualization")
	}
	return data, nil
}

// List returns the metadata of every stored collection, sorted by id.
// Entries with unreadable metadata are skipped with a warning.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "listing store root")
	}

	results := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		meta, err := s.ReadMetadata(entry.Name())
		if err != nil {
			s.logger.WithError(err).WithField("kid", entry.Name()).Warn("Skipping unreadable collection")
			continue
		}
		results = append(results, meta)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].KID < results[j].KID })
	return results, nil
}

// writeFileAtomic writes a file inside a collection directory via a rename,
// so readers never see a torn file. Callers must hold the state lock.
func (s *Store) writeFileAtomic(id, name string, data []byte) error {
	dir := filepath.Join(s.root, id)
	tmp := filepath.Join(dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", name)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "replacing %s", name)
	}
	return nil
}
