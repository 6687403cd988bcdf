// Package client is a Go client for the notes HTTP API. Bearer tokens come
// from an oauth2.TokenSource, so a refreshing identity token source can be
// plugged in directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/kuitang/notes-backend/internal/notes"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Kind    string `json:"error"`
	Reason  string `json:"reason"`
	Details string `json:"details"`
	Detail  string `json:"detail"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("notes api: %d %s", e.Status, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if d := e.Details + e.Detail; d != "" {
		msg += ": " + d
	}
	return msg
}

// Client talks to one API base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for baseURL. A nil tokens source sends no
// Authorization header, which only /health accepts.
func New(ctx context.Context, baseURL string, tokens oauth2.TokenSource) *Client {
	httpClient := http.DefaultClient
	if tokens != nil {
		httpClient = oauth2.NewClient(ctx, tokens)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// StaticToken wraps a fixed bearer credential.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("notes api: unhealthy status %q", out.Status)
	}
	return nil
}

// WhoAmI returns the owner id the server derived from the token.
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var out struct {
		UID string `json:"uid"`
	}
	err := c.do(ctx, http.MethodGet, "/whoami", nil, &out)
	return out.UID, err
}

func (c *Client) List(ctx context.Context) ([]notes.Note, error) {
	var out []notes.Note
	err := c.do(ctx, http.MethodGet, "/notes", nil, &out)
	return out, err
}

// Create creates a note. An empty id lets the server generate one.
func (c *Client) Create(ctx context.Context, id, title, content string) (notes.Note, error) {
	body := map[string]string{"title": title, "content": content}
	if id != "" {
		body["id"] = id
	}
	var out notes.Note
	err := c.do(ctx, http.MethodPost, "/notes", body, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id, title, content string) (notes.Note, error) {
	var out notes.Note
	err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(id),
		map[string]string{"title": title, "content": content}, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
