package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrAlreadyExists is returned by ConditionalCreator.Create when a document
// already occupies the key.
var ErrAlreadyExists = errors.New("notes: document already exists")

// PutMode selects how Put treats an existing document.
type PutMode int

const (
	// PutReplace overwrites the whole document.
	PutReplace PutMode = iota
	// PutMerge writes only title, content and updatedAt onto an existing
	// document, leaving userId and createdAt as stored. An absent document is
	// written whole.
	PutMerge
)

// Store is a keyed document collection. Single-document reads and writes must
// be atomic and read-your-writes consistent; no cross-document transactions
// are required.
type Store interface {
	// Get returns the document at id; found is false when absent.
	Get(ctx context.Context, id string) (note Note, found bool, err error)
	// Put upserts note under note.ID.
	Put(ctx context.Context, note Note, mode PutMode) error
	// Delete removes the document at id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// ListByOwner returns every document whose owner is ownerID, in no
	// particular order.
	ListByOwner(ctx context.Context, ownerID string) ([]Note, error)
}

// ConditionalCreator is implemented by stores with a create-if-absent write.
// The service uses it instead of Get+Put to close the create race.
type ConditionalCreator interface {
	Create(ctx context.Context, note Note) error
}

// MergeInto applies the PutMerge field set of update onto stored.
// Backends without a native partial update use it for read-modify-write.
func MergeInto(stored, update Note) Note {
	stored.Title = update.Title
	stored.Content = update.Content
	stored.UpdatedAt = update.UpdatedAt
	return stored
}

// Document is the persisted form of a Note in JSON-document backends. The id
// is the document key and is never stored as a member.
type Document struct {
	OwnerID   string `json:"userId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// DocumentOf returns the stored fields of note.
func DocumentOf(note Note) Document {
	return Document{
		OwnerID:   note.OwnerID,
		Title:     note.Title,
		Content:   note.Content,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}

// Note rebuilds the note stored under key id.
func (d Document) Note(id string) Note {
	return Note{
		ID:        id,
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// EncodeDocument marshals the stored fields of note.
func EncodeDocument(note Note) ([]byte, error) {
	return json.Marshal(DocumentOf(note))
}

// DecodeDocument unmarshals the document stored under key id. An "id" member
// in data, if any, is ignored in favour of the key.
func DecodeDocument(id string, data []byte) (Note, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Note{}, fmt.Errorf("decode note %q: %w", id, err)
	}
	return doc.Note(id), nil
}
