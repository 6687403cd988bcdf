// Package s3store keeps each note as a JSON object at notes/<id> in an S3
// bucket. Every write touches exactly one object.
package s3store

import (
	"context"
	"errors"
	"strings"

	"github.com/kuitang/notes-backend/internal/notes"
	"github.com/kuitang/notes-backend/internal/s3client"
)

const (
	notePrefix  = "notes/"
	contentType = "application/json"
)

// Store is a notes.Store over an s3client.Client.
type Store struct {
	client *s3client.Client
}

var (
	_ notes.Store              = (*Store)(nil)
	_ notes.ConditionalCreator = (*Store)(nil)
)

func New(client *s3client.Client) *Store {
	return &Store{client: client}
}

// noteKey maps an id to its object key. Ids never contain '/' and are at most
// notes.MaxIDBytes long, so the key stays one path segment under the prefix
// and within the S3 key limit.
func noteKey(id string) string {
	return notePrefix + id
}

func (s *Store) Get(ctx context.Context, id string) (notes.Note, bool, error) {
	data, err := s.client.GetObject(ctx, noteKey(id))
	if errors.Is(err, s3client.ErrObjectNotFound) {
		return notes.Note{}, false, nil
	}
	if err != nil {
		return notes.Note{}, false, err
	}
	note, err := notes.DecodeDocument(id, data)
	if err != nil {
		return notes.Note{}, false, err
	}
	return note, true, nil
}

func (s *Store) Put(ctx context.Context, note notes.Note, mode notes.PutMode) error {
	if mode == notes.PutMerge {
		existing, found, err := s.Get(ctx, note.ID)
		if err != nil {
			return err
		}
		if found {
			note = notes.MergeInto(existing, note)
		}
	}
	data, err := notes.EncodeDocument(note)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, noteKey(note.ID), data, contentType)
}

// Create writes note with If-None-Match: *. A taken id yields
// notes.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, note notes.Note) error {
	data, err := notes.EncodeDocument(note)
	if err != nil {
		return err
	}

	// Some S3-compatible servers ignore If-None-Match on PUT; the HEAD refuses
	// the common case on those. The conditional PUT is what settles races.
	exists, err := s.client.ObjectExists(ctx, noteKey(note.ID))
	if err != nil {
		return err
	}
	if exists {
		return notes.ErrAlreadyExists
	}

	err = s.client.PutObjectIfAbsent(ctx, noteKey(note.ID), data, contentType)
	if errors.Is(err, s3client.ErrPreconditionFailed) {
		return notes.ErrAlreadyExists
	}
	return err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.DeleteObject(ctx, noteKey(id))
}

// ListByOwner scans every note and keeps those owned by ownerID. A note
// deleted between the listing and its read is skipped.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error) {
	keys, err := s.client.ListKeys(ctx, notePrefix)
	if err != nil {
		return nil, err
	}

	out := make([]notes.Note, 0)
	for _, key := range keys {
		note, found, err := s.Get(ctx, strings.TrimPrefix(key, notePrefix))
		if err != nil {
			return nil, err
		}
		if found && note.OwnerID == ownerID {
			out = append(out, note)
		}
	}
	return out, nil
}
