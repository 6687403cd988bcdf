package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kuitang/notes-backend/internal/auth"
	"github.com/kuitang/notes-backend/internal/errs"
	"github.com/kuitang/notes-backend/internal/notes"
	"github.com/kuitang/notes-backend/internal/obs"
)

// MaxBodyBytes caps create and update request bodies.
const MaxBodyBytes = 1 << 20

// Handler wraps the notes service and provides HTTP handlers
type Handler struct {
	notesService *notes.Service
}

// NewHandler creates a new API handler with the given notes service
func NewHandler(notesService *notes.Service) *Handler {
	return &Handler{notesService: notesService}
}

// RegisterRoutes registers the API on mux. Every route except /health is
// wrapped in requireAuth.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /health", h.Health)

	mux.Handle("GET /whoami", requireAuth(http.HandlerFunc(h.WhoAmI)))
	mux.Handle("GET /notes", requireAuth(http.HandlerFunc(h.ListNotes)))
	mux.Handle("POST /notes", requireAuth(http.HandlerFunc(h.CreateNote)))
	mux.Handle("PUT /notes/{id}", requireAuth(http.HandlerFunc(h.UpdateNote)))
	mux.Handle("DELETE /notes/{id}", requireAuth(http.HandlerFunc(h.DeleteNote)))
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WhoAmI handles GET /whoami - echoes the verified owner id
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"uid": auth.OwnerID(r.Context())})
}

// ListNotes handles GET /notes - returns the caller's notes, newest first
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	result, err := h.notesService.List(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateNote handles POST /notes - creates a new note
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := notes.DecodeCreateInput(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notesService.Create(r.Context(), auth.OwnerID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/{id} - replaces title and content
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := notes.DecodeNoteInput(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notesService.Update(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id} - deletes a note
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.notesService.Delete(r.Context(), auth.OwnerID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errs.New(errs.BadRequest, "request body exceeds 1 MiB")
		}
		return nil, errs.Wrap(errs.BadRequest, "failed to read request body", err)
	}
	return body, nil
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Details string `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err to its status and error body
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).With("pkg", "api").Error("request_failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   string(code),
		Reason:  errs.ReasonOf(err),
		Details: errs.MessageOf(err),
	})
}
