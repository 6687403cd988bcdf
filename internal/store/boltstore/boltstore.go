// Package boltstore keeps notes in a bbolt file: one JSON document per key in
// the "notes" bucket, plus a per-owner key index.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kuitang/notes-backend/internal/notes"
)

var notesBucket = []byte("notes")

// ownerBucket names the index bucket listing the note ids of owner.
func ownerBucket(owner string) []byte {
	return append([]byte("owners/"), []byte(url.PathEscape(owner))...)
}

// Store is a notes.Store on bbolt. bbolt serializes writers, so every method
// is a single transaction.
type Store struct {
	db *bolt.DB
}

var (
	_ notes.Store              = (*Store)(nil)
	_ notes.ConditionalCreator = (*Store)(nil)
)

// Open opens or creates the bolt file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(notesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize bolt store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, id string) (notes.Note, bool, error) {
	if err := ctx.Err(); err != nil {
		return notes.Note{}, false, err
	}
	var (
		note  notes.Note
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		note, found, err = getNote(tx.Bucket(notesBucket), id)
		return err
	})
	return note, found, err
}

func (s *Store) Put(ctx context.Context, note notes.Note, mode notes.PutMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(notesBucket)
		existing, found, err := getNote(b, note.ID)
		if err != nil {
			return err
		}
		if found && mode == notes.PutMerge {
			note = notes.MergeInto(existing, note)
		}
		if found && existing.OwnerID != note.OwnerID {
			if err := unindex(tx, existing.OwnerID, note.ID); err != nil {
				return err
			}
		}
		return putNote(tx, note)
	})
}

// Create writes note only when its id is free; otherwise it returns
// notes.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, note notes.Note) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(notesBucket).Get([]byte(note.ID)) != nil {
			return notes.ErrAlreadyExists
		}
		return putNote(tx, note)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(notesBucket)
		existing, found, err := getNote(b, id)
		if err != nil || !found {
			return err
		}
		if err := unindex(tx, existing.OwnerID, id); err != nil {
			return err
		}
		return b.Delete([]byte(id))
	})
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []notes.Note
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(ownerBucket(ownerID))
		if index == nil {
			return nil
		}
		b := tx.Bucket(notesBucket)
		return index.ForEach(func(k, _ []byte) error {
			note, found, err := getNote(b, string(k))
			if err != nil {
				return err
			}
			if found {
				out = append(out, note)
			}
			return nil
		})
	})
	return out, err
}

func getNote(b *bolt.Bucket, id string) (notes.Note, bool, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return notes.Note{}, false, nil
	}
	note, err := notes.DecodeDocument(id, data)
	if err != nil {
		return notes.Note{}, false, err
	}
	return note, true, nil
}

func putNote(tx *bolt.Tx, note notes.Note) error {
	if note.ID == "" {
		return errors.New("boltstore: empty note id")
	}
	data, err := notes.EncodeDocument(note)
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	if err := tx.Bucket(notesBucket).Put([]byte(note.ID), data); err != nil {
		return err
	}
	index, err := tx.CreateBucketIfNotExists(ownerBucket(note.OwnerID))
	if err != nil {
		return err
	}
	return index.Put([]byte(note.ID), nil)
}

func unindex(tx *bolt.Tx, owner, id string) error {
	index := tx.Bucket(ownerBucket(owner))
	if index == nil {
		return nil
	}
	return index.Delete([]byte(id))
}
