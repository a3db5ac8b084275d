package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// DocumentStore is the default Store: a single JSON document file under the
// workspace. Writes go to a temp file first and are renamed into place, so a
// crash mid-write yields the previous document rather than a corrupt one.
type DocumentStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	doc    storeDocument
}

type storeDocument struct {
	NextID  int64    `json:"next_id"`
	Results []Result `json:"results"`
}

// NewDocumentStore creates a store backed by the JSON document at path. The
// file is created lazily on first write.
func NewDocumentStore(path string) *DocumentStore {
	return &DocumentStore{path: path}
}

// Sync loads the document from disk. Reloading is cheap and picks up writes
// from a previous process.
func (s *DocumentStore) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *DocumentStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if !s.loaded {
			s.doc = storeDocument{NextID: 1}
			s.loaded = true
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading store document: %w", err)
	}
	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing store document: %w", err)
	}
	if doc.NextID == 0 {
		doc.NextID = 1
		for _, r := range doc.Results {
			if r.ID >= doc.NextID {
				doc.NextID = r.ID + 1
			}
		}
	}
	s.doc = doc
	s.loaded = true
	return nil
}

func (s *DocumentStore) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling store document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

func (s *DocumentStore) ensure() error {
	if s.loaded {
		return nil
	}
	return s.load()
}

// All returns a copy of every record in insertion order.
func (s *DocumentStore) All(ctx context.Context) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return nil, err
	}
	return slices.Clone(s.doc.Results), nil
}

// Insert assigns the next ID, appends the record, and persists the
// document.
func (s *DocumentStore) Insert(ctx context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return err
	}
	r.ID = s.doc.NextID
	s.doc.NextID++
	s.doc.Results = append(s.doc.Results, *r)
	return s.save()
}

// FindOne returns a copy of the first record matching q, or nil.
func (s *DocumentStore) FindOne(ctx context.Context, q Query) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return nil, err
	}
	for _, r := range s.doc.Results {
		if q.Matches(r) {
			match := r
			return &match, nil
		}
	}
	return nil, nil
}

// RemoveWhere deletes records selected by pred.
func (s *DocumentStore) RemoveWhere(ctx context.Context, pred func(Result) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return 0, err
	}
	kept := s.doc.Results[:0]
	removed := 0
	for _, r := range s.doc.Results {
		if pred(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	if removed == 0 {
		return 0, nil
	}
	s.doc.Results = kept
	return removed, s.save()
}

// RemoveIDs deletes records by ID.
func (s *DocumentStore) RemoveIDs(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	_, err := s.RemoveWhere(ctx, func(r Result) bool {
		_, ok := drop[r.ID]
		return ok
	})
	return err
}
