package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/notes-backend/internal/auth"
	"github.com/kuitang/notes-backend/internal/notes"
	"github.com/kuitang/notes-backend/internal/store/memstore"
)

// tokenTable verifies tokens by lookup.
type tokenTable map[string]string

func (tt tokenTable) Verify(_ context.Context, credential string) (string, error) {
	if owner, ok := tt[credential]; ok {
		return owner, nil
	}
	return "", &auth.Error{Reason: auth.ReasonInvalid, Err: errors.New("unknown token")}
}

func fakeJWT(label string) string {
	pad := strings.Repeat("x", 40)
	return label + pad + "." + pad + "." + pad
}

var (
	aliceToken = fakeJWT("alice")
	bobToken   = fakeJWT("bob")
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
}

func newTestAPI(t *testing.T, store notes.Store) *testAPI {
	t.Helper()
	router := NewRouter(RouterConfig{
		Service:           notes.NewService(store),
		Verifier:          tokenTable{aliceToken: "alice", bobToken: "bob"},
		ExpectedProjectID: "notes-project",
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testAPI{t: t, server: server}
}

func (a *testAPI) do(method, path, token string, body any) (*http.Response, []byte) {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	return resp, data
}

func decodeNote(t *testing.T, data []byte) notes.Note {
	t.Helper()
	var n notes.Note
	require.NoError(t, json.Unmarshal(data, &n))
	return n
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHealth_NoAuth(t *testing.T) {
	api := newTestAPI(t, memstore.New())
	resp, body := api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestWhoAmI(t *testing.T) {
	api := newTestAPI(t, memstore.New())

	resp, body := api.do(http.MethodGet, "/whoami", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"uid":"alice"}`, string(body))

	resp, body = api.do(http.MethodGet, "/whoami", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.JSONEq(t, `{"error":"invalid_token","reason":"missing_bearer"}`, string(body))

	resp, _ = api.do(http.MethodGet, "/whoami", fakeJWT("mallory"), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnauthenticatedRequestsNeverReachStore(t *testing.T) {
	store := memstore.New()
	api := newTestAPI(t, store)

	resp, _ := api.do(http.MethodPost, "/notes", "short", map[string]string{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = api.do(http.MethodDelete, "/notes/any", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, store.Len())
}

// TestScenario_TwoUsers replays the ownership story over HTTP.
func TestScenario_TwoUsers(t *testing.T) {
	api := newTestAPI(t, memstore.New())

	resp, body := api.do(http.MethodPost, "/notes", aliceToken, map[string]string{"title": "Hello", "content": "World"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeNote(t, body)
	require.Equal(t, "alice", created.OwnerID)
	require.Equal(t, created.CreatedAt, created.UpdatedAt)

	resp, body = api.do(http.MethodGet, "/notes", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(body))

	resp, body = api.do(http.MethodPut, "/notes/"+created.ID, bobToken, map[string]string{"title": "Hacked"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "forbidden", decodeError(t, body).Error)

	resp, _ = api.do(http.MethodDelete, "/notes/"+created.ID, bobToken, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = api.do(http.MethodPut, "/notes/"+created.ID, aliceToken, map[string]string{"title": "Hello again", "content": "World"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeNote(t, body)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.Equal(t, "alice", updated.OwnerID)
	require.GreaterOrEqual(t, updated.UpdatedAt, created.UpdatedAt)

	resp, body = api.do(http.MethodGet, "/notes", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []notes.Note
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Equal(t, []notes.Note{updated}, listed)

	resp, body = api.do(http.MethodDelete, "/notes/"+created.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(body))

	resp, _ = api.do(http.MethodDelete, "/notes/"+created.ID, aliceToken, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreate_ClientIDConflicts(t *testing.T) {
	api := newTestAPI(t, memstore.New())

	resp, body := api.do(http.MethodPost, "/notes", aliceToken, map[string]string{"id": "shared", "title": "one"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "shared", decodeNote(t, body).ID)

	resp, body = api.do(http.MethodPost, "/notes", aliceToken, map[string]string{"id": "shared", "title": "two"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, ErrorResponse{Error: "conflict", Reason: notes.ReasonIDAlreadyExists, Details: "a note with this id already exists"}, decodeError(t, body))

	resp, body = api.do(http.MethodPost, "/notes", bobToken, map[string]string{"id": "shared", "title": "three"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, notes.ReasonIDTakenByOther, decodeError(t, body).Reason)
}

func TestBadRequests(t *testing.T) {
	store := memstore.New()
	api := newTestAPI(t, store)

	cases := map[string]any{
		"not json":       "{nope",
		"array":          "[]",
		"missing title":  map[string]string{"content": "x"},
		"empty title":    map[string]string{"title": ""},
		"long title":     map[string]string{"title": strings.Repeat("t", notes.MaxTitleLength+1)},
		"long content":   map[string]string{"title": "t", "content": strings.Repeat("c", notes.MaxContentLength+1)},
		"numeric title":  `{"title": 3}`,
		"slash in id":    map[string]string{"id": "a/b", "title": "t"},
		"oversized body": bytes.Repeat([]byte(" "), MaxBodyBytes+1),
	}
	for name, body := range cases {
		resp, data := api.do(http.MethodPost, "/notes", aliceToken, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		require.Equal(t, "bad_request", decodeError(t, data).Error, name)
	}
	require.Zero(t, store.Len())
}

func TestUpdate_Missing(t *testing.T) {
	api := newTestAPI(t, memstore.New())
	resp, body := api.do(http.MethodPut, "/notes/ghost", aliceToken, map[string]string{"title": "t"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "not_found", decodeError(t, body).Error)
}

type brokenStore struct{}

var errBroken = errors.New("connection refused: 10.0.0.7:5432")

func (brokenStore) Get(context.Context, string) (notes.Note, bool, error) {
	return notes.Note{}, false, errBroken
}
func (brokenStore) Put(context.Context, notes.Note, notes.PutMode) error { return errBroken }
func (brokenStore) Delete(context.Context, string) error              { return errBroken }
func (brokenStore) ListByOwner(context.Context, string) ([]notes.Note, error) {
	return nil, errBroken
}

func TestStoreFailure_IsInternalWithoutLeaks(t *testing.T) {
	api := newTestAPI(t, brokenStore{})

	resp, body := api.do(http.MethodGet, "/notes", aliceToken, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	e := decodeError(t, body)
	require.Equal(t, "internal", e.Error)
	require.Equal(t, "other", e.Reason)
	require.NotContains(t, string(body), "10.0.0.7")
}

func TestCORS_Preflight(t *testing.T) {
	api := newTestAPI(t, memstore.New())

	req, err := http.NewRequest(http.MethodOptions, api.server.URL+"/notes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Less(t, resp.StatusCode, 300)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORS_SimpleRequest(t *testing.T) {
	api := newTestAPI(t, memstore.New())

	req, err := http.NewRequest(http.MethodGet, api.server.URL+"/notes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "X-Request-Id")
}
