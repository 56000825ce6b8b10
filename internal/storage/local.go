package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// localDocument is the on-disk shape of one record.
type localDocument struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// localDocumentStore keeps every collection in memory and, when path is set,
// rewrites the whole JSON file after each mutation.
type localDocumentStore struct {
	mu   sync.RWMutex
	path string
	data map[string]map[string]localDocument
	now  func() time.Time
}

// NewLocalBackend returns a Backend backed by the JSON file at path. An empty
// path keeps documents in memory only. An existing file is loaded eagerly.
func NewLocalBackend(path string) (*Backend, error) {
	s, err := newLocalDocumentStore(path)
	if err != nil {
		return nil, err
	}
	return &Backend{Kind: BackendLocal, Store: s}, nil
}

// NewMemoryStore returns a DocumentStore that never touches disk.
func NewMemoryStore() DocumentStore {
	s, _ := newLocalDocumentStore("") //nolint:errcheck // cannot fail without a path
	return s
}

func newLocalDocumentStore(path string) (*localDocumentStore, error) {
	s := &localDocumentStore{
		path: path,
		data: make(map[string]map[string]localDocument),
		now:  time.Now,
	}
	for c := range pgTables {
		s.data[c] = make(map[string]localDocument)
	}
	if path == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: local: read %q: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var loaded map[string]map[string]localDocument
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("storage: local: decode %q: %w", path, err)
	}
	for c, docs := range loaded {
		if _, ok := s.data[c]; !ok {
			continue
		}
		for k, d := range docs {
			s.data[c][k] = d
		}
	}
	return s, nil
}

func (s *localDocumentStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.data[collection]
	if !ok {
		return nil, errUnknownCollection(collection)
	}
	d, ok := docs[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(d.Data))
	copy(out, d.Data)
	return out, nil
}

func (s *localDocumentStore) Put(_ context.Context, collection, key string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("storage: local: Put %s/%s: invalid JSON document", collection, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.data[collection]
	if !ok {
		return errUnknownCollection(collection)
	}
	buf := make(json.RawMessage, len(data))
	copy(buf, data)
	prev, existed := docs[key]
	docs[key] = localDocument{Data: buf, UpdatedAt: s.now().UTC()}
	if err := s.flushLocked(); err != nil {
		if existed {
			docs[key] = prev
		} else {
			delete(docs, key)
		}
		return err
	}
	return nil
}

func (s *localDocumentStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.data[collection]
	if !ok {
		return errUnknownCollection(collection)
	}
	prev, ok := docs[key]
	if !ok {
		return nil
	}
	delete(docs, key)
	if err := s.flushLocked(); err != nil {
		docs[key] = prev
		return err
	}
	return nil
}

func (s *localDocumentStore) List(_ context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.data[collection]
	if !ok {
		return nil, errUnknownCollection(collection)
	}
	out := make([]Document, 0, len(docs))
	for k, d := range docs {
		data := make([]byte, len(d.Data))
		copy(data, d.Data)
		out = append(out, Document{Key: k, Data: data, UpdatedAt: d.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *localDocumentStore) Close() error { return nil }

// flushLocked writes the full snapshot to a temp file and renames it over
// path. Caller must hold s.mu and undo its change when this fails, so memory
// never runs ahead of disk.
func (s *localDocumentStore) flushLocked() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: local: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("storage: local: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("storage: local: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("storage: local: rename: %w", err)
	}
	return nil
}
