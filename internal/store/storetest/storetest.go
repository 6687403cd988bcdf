// Package storetest is a conformance suite every notes.Store backend runs.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/notes-backend/internal/notes"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) notes.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetAbsent", func(t *testing.T) { testGetAbsent(t, newStore(t)) })
	t.Run("PutReplaceRoundtrip", func(t *testing.T) { testPutReplaceRoundtrip(t, newStore(t)) })
	t.Run("PutMergeKeepsOwnerAndCreatedAt", func(t *testing.T) { testPutMerge(t, newStore(t)) })
	t.Run("PutMergeOnAbsentWritesWhole", func(t *testing.T) { testPutMergeAbsent(t, newStore(t)) })
	t.Run("DeleteIsIdempotent", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ListByOwnerFilters", func(t *testing.T) { testListByOwner(t, newStore(t)) })
	t.Run("UnusualIDs", func(t *testing.T) { testUnusualIDs(t, newStore(t)) })

	t.Run("ConditionalCreate", func(t *testing.T) {
		store := newStore(t)
		creator, ok := store.(notes.ConditionalCreator)
		if !ok {
			t.Skip("store has no conditional create")
		}
		testConditionalCreate(t, store, creator)
	})
	t.Run("ConcurrentCreateSingleWinner", func(t *testing.T) {
		store := newStore(t)
		creator, ok := store.(notes.ConditionalCreator)
		if !ok {
			t.Skip("store has no conditional create")
		}
		testConcurrentCreate(t, store, creator)
	})
}

func sampleNote(id, owner string) notes.Note {
	return notes.Note{
		ID:        id,
		OwnerID:   owner,
		Title:     "title " + id,
		Content:   "content for " + id + ": ünïcödé",
		CreatedAt: "2024-05-01T10:00:00.000000Z",
		UpdatedAt: "2024-05-01T10:00:00.000000Z",
	}
}

func testGetAbsent(t *testing.T, store notes.Store) {
	_, found, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func testPutReplaceRoundtrip(t *testing.T, store notes.Store) {
	ctx := context.Background()
	note := sampleNote("n1", "alice")
	require.NoError(t, store.Put(ctx, note, notes.PutReplace))

	got, found, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, note, got)

	replaced := note
	replaced.Title = "replaced"
	replaced.OwnerID = "bob"
	require.NoError(t, store.Put(ctx, replaced, notes.PutReplace))
	got, _, err = store.Get(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, replaced, got)
}

func testPutMerge(t *testing.T, store notes.Store) {
	ctx := context.Background()
	note := sampleNote("n1", "alice")
	require.NoError(t, store.Put(ctx, note, notes.PutReplace))

	update := notes.Note{
		ID:        "n1",
		OwnerID:   "mallory",
		Title:     "new title",
		Content:   "",
		CreatedAt: "2030-01-01T00:00:00.000000Z",
		UpdatedAt: "2024-05-02T11:00:00.000000Z",
	}
	require.NoError(t, store.Put(ctx, update, notes.PutMerge))

	got, found, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "alice", got.OwnerID)
	require.Equal(t, note.CreatedAt, got.CreatedAt)
	require.Equal(t, "new title", got.Title)
	require.Equal(t, "", got.Content)
	require.Equal(t, update.UpdatedAt, got.UpdatedAt)
}

func testPutMergeAbsent(t *testing.T, store notes.Store) {
	ctx := context.Background()
	note := sampleNote("fresh", "alice")
	require.NoError(t, store.Put(ctx, note, notes.PutMerge))

	got, found, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, note, got)
}

func testDelete(t *testing.T, store notes.Store) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, sampleNote("n1", "alice"), notes.PutReplace))
	require.NoError(t, store.Delete(ctx, "n1"))

	_, found, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Delete(ctx, "n1"))
}

func testListByOwner(t *testing.T, store notes.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Put(ctx, sampleNote(fmt.Sprintf("a%d", i), "alice"), notes.PutReplace))
	}
	require.NoError(t, store.Put(ctx, sampleNote("b0", "bob"), notes.PutReplace))

	got, err := store.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, n := range got {
		require.Equal(t, "alice", n.OwnerID)
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	require.Equal(t, []string{"a0", "a1", "a2"}, ids)

	none, err := store.ListByOwner(ctx, "carol")
	require.NoError(t, err)
	require.Empty(t, none)
}

func testUnusualIDs(t *testing.T, store notes.Store) {
	ctx := context.Background()
	for _, id := range []string{"id with spaces", "ünïcode-id", "dots.in.id", "UPPER_lower-123"} {
		note := sampleNote(id, "alice")
		require.NoError(t, store.Put(ctx, note, notes.PutReplace), "id %q", id)
		got, found, err := store.Get(ctx, id)
		require.NoError(t, err, "id %q", id)
		require.True(t, found, "id %q", id)
		require.Equal(t, note, got)
	}
}

func testConditionalCreate(t *testing.T, store notes.Store, creator notes.ConditionalCreator) {
	ctx := context.Background()
	first := sampleNote("n1", "alice")
	require.NoError(t, creator.Create(ctx, first))

	second := sampleNote("n1", "bob")
	second.Title = "should not land"
	err := creator.Create(ctx, second)
	require.Error(t, err)
	require.True(t, errors.Is(err, notes.ErrAlreadyExists), "got %v", err)

	got, found, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, first, got)
}

func testConcurrentCreate(t *testing.T, store notes.Store, creator notes.ConditionalCreator) {
	ctx := context.Background()
	const racers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	errCh := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := creator.Create(ctx, sampleNote("contended", fmt.Sprintf("owner-%d", i)))
			switch {
			case err == nil:
				wins.Add(1)
			case !errors.Is(err, notes.ErrAlreadyExists):
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, wins.Load())

	_, found, err := store.Get(ctx, "contended")
	require.NoError(t, err)
	require.True(t, found)
}

// RawDocuments reads and writes stored documents by key, bypassing the Store.
// JSON-document backends provide one so the stored shape can be checked.
type RawDocuments interface {
	PutRaw(t *testing.T, id string, doc []byte)
	GetRaw(t *testing.T, id string) []byte
}

// RunDocumentShape checks that store reads documents written by other
// writers in the bare shape (id is the key, never a member) and writes that
// shape back.
func RunDocumentShape(t *testing.T, store notes.Store, raw RawDocuments) {
	ctx := context.Background()
	const seeded = `{"userId":"alice","title":"t","content":"c",` +
		`"createdAt":"2024-05-01T10:00:00.000000Z","updatedAt":"2024-05-01T10:00:00.000000Z"}`
	want := notes.Note{
		ID:        "n1",
		OwnerID:   "alice",
		Title:     "t",
		Content:   "c",
		CreatedAt: "2024-05-01T10:00:00.000000Z",
		UpdatedAt: "2024-05-01T10:00:00.000000Z",
	}
	raw.PutRaw(t, "n1", []byte(seeded))

	got, found, err := store.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)

	listed, err := store.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, []notes.Note{want}, listed)

	require.NoError(t, store.Put(ctx, notes.Note{
		ID:        "n1",
		OwnerID:   "mallory",
		Title:     "new",
		Content:   "c2",
		UpdatedAt: "2024-05-02T10:00:00.000000Z",
	}, notes.PutMerge))

	got, _, err = store.Get(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, "n1", got.ID)
	require.Equal(t, "alice", got.OwnerID)
	require.Equal(t, "new", got.Title)
	require.Equal(t, want.CreatedAt, got.CreatedAt)
	requireBareDocument(t, raw.GetRaw(t, "n1"), map[string]string{
		"userId":    "alice",
		"title":     "new",
		"content":   "c2",
		"createdAt": want.CreatedAt,
		"updatedAt": "2024-05-02T10:00:00.000000Z",
	})

	if creator, ok := store.(notes.ConditionalCreator); ok {
		require.NoError(t, creator.Create(ctx, sampleNote("n2", "bob")))
	} else {
		require.NoError(t, store.Put(ctx, sampleNote("n2", "bob"), notes.PutReplace))
	}
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw.GetRaw(t, "n2"), &doc))
	require.NotContains(t, doc, "id")
	require.Equal(t, "bob", doc["userId"])

	// A stray id member never overrides the key.
	raw.PutRaw(t, "n3", []byte(`{"id":"elsewhere","userId":"carol","title":"t","content":"",`+
		`"createdAt":"2024-05-01T10:00:00.000000Z","updatedAt":"2024-05-01T10:00:00.000000Z"}`))
	got, found, err = store.Get(ctx, "n3")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "n3", got.ID)
}

func requireBareDocument(t *testing.T, data []byte, want map[string]string) {
	t.Helper()
	var doc map[string]string
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, want, doc)
}
