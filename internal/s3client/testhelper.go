package s3client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// TestClient returns a Client for bucketName on a fresh in-memory gofakes3
// server. The server is closed when t finishes.
func TestClient(t testing.TB, bucketName string) *Client {
	t.Helper()
	return TestClientWithMiddleware(t, bucketName, nil)
}

// TestClientWithMiddleware is TestClient with wrap applied around the fake
// server's handler, for injecting faults. A nil wrap leaves it unchanged.
func TestClientWithMiddleware(t testing.TB, bucketName string, wrap func(http.Handler) http.Handler) *Client {
	t.Helper()

	var handler http.Handler = gofakes3.New(s3mem.New()).Server()
	if wrap != nil {
		handler = wrap(handler)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	ctx := context.Background()
	client, err := New(ctx, Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("s3 test client: %v", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		t.Fatalf("s3 test bucket: %v", err)
	}
	return client
}
