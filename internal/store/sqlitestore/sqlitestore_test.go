package sqlitestore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/notes-backend/internal/crypto"
	"github.com/kuitang/notes-backend/internal/notes"
	"github.com/kuitang/notes-backend/internal/store/storetest"
)

func openTemp(t *testing.T, path string, key []byte) *Store {
	t.Helper()
	store, err := Open(context.Background(), Options{Path: path, Key: key})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConformance_Plain(t *testing.T) {
	storetest.Run(t, func(t *testing.T) notes.Store {
		return openTemp(t, filepath.Join(t.TempDir(), "notes.db"), nil)
	})
}

func TestConformance_Encrypted(t *testing.T) {
	key := crypto.DeriveStoreKey(bytes.Repeat([]byte{7}, crypto.MasterKeySize), "notes", 1)
	storetest.Run(t, func(t *testing.T) notes.Store {
		return openTemp(t, filepath.Join(t.TempDir(), "notes.db"), key)
	})
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "notes.db")
	key := crypto.DeriveStoreKey(bytes.Repeat([]byte{1}, crypto.MasterKeySize), "notes", 1)

	first, err := Open(ctx, Options{Path: path, Key: key})
	require.NoError(t, err)
	note := notes.Note{ID: "n1", OwnerID: "alice", Title: "t", CreatedAt: "c", UpdatedAt: "u"}
	require.NoError(t, first.Put(ctx, note, notes.PutReplace))
	require.NoError(t, first.Close())

	second := openTemp(t, path, key)
	got, found, err := second.Get(ctx, "n1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, note, got)
}

func TestOpen_WrongKeyFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.db")
	master := bytes.Repeat([]byte{2}, crypto.MasterKeySize)

	first, err := Open(ctx, Options{Path: path, Key: crypto.DeriveStoreKey(master, "notes", 1)})
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, notes.Note{ID: "n1", OwnerID: "alice", Title: "t"}, notes.PutReplace))
	require.NoError(t, first.Close())

	_, err = Open(ctx, Options{Path: path, Key: crypto.DeriveStoreKey(master, "notes", 2)})
	require.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	require.Error(t, err)
}
