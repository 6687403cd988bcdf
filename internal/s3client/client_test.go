package s3client

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	c := TestClient(t, "roundtrip")

	require.NoError(t, c.PutObject(ctx, "a/b.json", []byte(`{"x":1}`), "application/json"))
	data, err := c.GetObject(ctx, "a/b.json")
	require.NoError(t, err)
	require.JSONEq(t, `{"x":1}`, string(data))

	exists, err := c.ObjectExists(ctx, "a/b.json")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, c.DeleteObject(ctx, "a/b.json"))
	_, err = c.GetObject(ctx, "a/b.json")
	require.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)

	exists, err = c.ObjectExists(ctx, "a/b.json")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, c.DeleteObject(ctx, "never-existed"))
}

func TestClient_ListKeys(t *testing.T) {
	ctx := context.Background()
	c := TestClient(t, "listing")

	for _, key := range []string{"p/1", "p/2", "q/1"} {
		require.NoError(t, c.PutObject(ctx, key, []byte("x"), "text/plain"))
	}
	keys, err := c.ListKeys(ctx, "p/")
	require.NoError(t, err)
	sort.Strings(keys)
	require.Equal(t, []string{"p/1", "p/2"}, keys)

	none, err := c.ListKeys(ctx, "z/")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestClient_BucketName(t *testing.T) {
	c := TestClient(t, "named")
	require.Equal(t, "named", c.BucketName())
}

func TestClient_EnsureBucketIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := TestClient(t, "ensure")
	require.Equal(t, "ensure", c.BucketName())
	require.NoError(t, c.EnsureBucket(ctx))
	require.NoError(t, c.PutObject(ctx, "k", []byte("v"), "text/plain"))
	require.NoError(t, c.EnsureBucket(ctx))

	data, err := c.GetObject(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(data))
}
