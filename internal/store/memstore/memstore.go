// Package memstore is an in-process notes.Store used by tests and by
// `--store=memory` for local development.
package memstore

import (
	"context"
	"sync"

	"github.com/kuitang/notes-backend/internal/notes"
)

// Store keeps documents in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	docs map[string]notes.Note
}

var (
	_ notes.Store              = (*Store)(nil)
	_ notes.ConditionalCreator = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{docs: make(map[string]notes.Note)}
}

func (s *Store) Get(ctx context.Context, id string) (notes.Note, bool, error) {
	if err := ctx.Err(); err != nil {
		return notes.Note{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.docs[id]
	return note, ok, nil
}

func (s *Store) Put(ctx context.Context, note notes.Note, mode notes.PutMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.docs[note.ID]; ok && mode == notes.PutMerge {
		note = notes.MergeInto(stored, note)
	}
	s.docs[note.ID] = note
	return nil
}

func (s *Store) Create(ctx context.Context, note notes.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[note.ID]; ok {
		return notes.ErrAlreadyExists
	}
	s.docs[note.ID] = note
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notes.Note
	for _, note := range s.docs {
		if note.OwnerID == ownerID {
			out = append(out, note)
		}
	}
	return out, nil
}

// Len reports the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
