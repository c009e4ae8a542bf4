// Package local implements the on-disk vector store. It is the always
// available fallback: one JSON file per collection under a persist
// directory, guarded by a flock sidecar so concurrent processes never
// observe a torn write.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"

	"faqrag/internal/domain"
)

// Store persists collections under dir. Writes go through a temp file and
// an atomic rename; cross-process exclusion uses a .lock sidecar per
// collection, in-process exclusion a single RWMutex.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates the persist directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("persist directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Name identifies this backend in logs.
func (s *Store) Name() string { return "local" }

type collectionFile struct {
	Dimension int                     `json:"dimension"`
	Records   map[string]storedRecord `json:"records"`
}

type storedRecord struct {
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	StartOffset int       `json:"start_offset"`
	Vector      []float32 `json:"vector"`
}

// EnsureCollection creates the collection file if absent. An existing
// collection with a different dimension is never silently re-created.
func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if err := validateCollection(name); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d for collection %q", dimension, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.lockCollection(ctx, name, true)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.readCollection(name)
	if err == nil {
		if existing.Dimension != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, requested %d",
				domain.ErrDimensionMismatch, name, existing.Dimension, dimension)
		}
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.writeCollection(name, &collectionFile{
		Dimension: dimension,
		Records:   map[string]storedRecord{},
	})
}

// Upsert inserts or replaces records by ID. The whole batch is validated
// against every target collection before the first write, so a rejected
// batch leaves no partial state behind even when it spans collections.
func (s *Store) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	byCollection := make(map[string][]domain.Record)
	for _, r := range records {
		if err := validateCollection(r.Collection); err != nil {
			return err
		}
		if r.ID == "" {
			return errors.New("record is missing an ID")
		}
		byCollection[r.Collection] = append(byCollection[r.Collection], r)
	}
	names := make([]string, 0, len(byCollection))
	for name := range byCollection {
		names = append(names, name)
	}
	// Sorted lock order keeps concurrent multi-collection batches from
	// deadlocking against each other.
	sort.Strings(names)

	s.mu.Lock()
	defer s.mu.Unlock()
	cols := make(map[string]*collectionFile, len(names))
	for _, name := range names {
		unlock, err := s.lockCollection(ctx, name, true)
		if err != nil {
			return err
		}
		defer unlock()

		col, err := s.readCollection(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("collection %q does not exist", name)
			}
			return err
		}
		for _, r := range byCollection[name] {
			if len(r.Vector) != col.Dimension {
				return fmt.Errorf("%w: record %s has dimension %d, collection %q expects %d",
					domain.ErrDimensionMismatch, r.ID, len(r.Vector), name, col.Dimension)
			}
		}
		cols[name] = col
	}
	for _, name := range names {
		col := cols[name]
		for _, r := range byCollection[name] {
			col.Records[r.ID] = storedRecord{
				Text:        r.Text,
				Source:      r.Source,
				StartOffset: r.StartOffset,
				Vector:      r.Vector,
			}
		}
		if err := s.writeCollection(name, col); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the k most similar records by cosine similarity, ordered by
// descending score with ties broken by ascending ID.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int) ([]domain.ScoredRecord, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	unlock, err := s.lockCollection(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	col, err := s.readCollection(collection)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("collection %q does not exist", collection)
		}
		return nil, err
	}
	if len(vector) != col.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %q expects %d",
			domain.ErrDimensionMismatch, len(vector), collection, col.Dimension)
	}

	scored := make([]domain.ScoredRecord, 0, len(col.Records))
	for id, rec := range col.Records {
		scored = append(scored, domain.ScoredRecord{
			Record: domain.Record{
				Chunk: domain.Chunk{
					ID:          id,
					Text:        rec.Text,
					Source:      rec.Source,
					StartOffset: rec.StartOffset,
				},
				Vector:     rec.Vector,
				Collection: collection,
			},
			Score: cosine(vector, rec.Vector),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Store) lockCollection(ctx context.Context, name string, exclusive bool) (func(), error) {
	lock := flock.New(s.lockPath(name))
	var err error
	if exclusive {
		err = lock.Lock()
	} else {
		err = lock.RLock()
	}
	if err != nil {
		return nil, fmt.Errorf("locking collection %q: %w", name, err)
	}
	if ctx.Err() != nil {
		_ = lock.Unlock()
		return nil, ctx.Err()
	}
	return func() { _ = lock.Unlock() }, nil
}

func (s *Store) readCollection(name string) (*collectionFile, error) {
	data, err := os.ReadFile(s.collectionPath(name))
	if err != nil {
		return nil, err
	}
	var col collectionFile
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, fmt.Errorf("corrupt collection file %q: %w", name, err)
	}
	if col.Records == nil {
		col.Records = map[string]storedRecord{}
	}
	return &col, nil
}

func (s *Store) writeCollection(name string, col *collectionFile) error {
	data, err := json.Marshal(col)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.collectionPath(name))
}

func (s *Store) collectionPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) lockPath(name string) string {
	return filepath.Join(s.dir, name+".lock")
}

func validateCollection(name string) error {
	if name == "" {
		return errors.New("collection name is required")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
