package api

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/kuitang/notes-backend/internal/auth"
	"github.com/kuitang/notes-backend/internal/notes"
	"github.com/kuitang/notes-backend/internal/obs"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service           *notes.Service
	Verifier          auth.TokenVerifier
	ExpectedProjectID string
	// CORSOrigins defaults to any origin.
	CORSOrigins []string
}

// NewRouter returns the full handler chain:
// correlation ids -> access log -> CORS -> routes (auth per route).
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	NewHandler(cfg.Service).RegisterRoutes(mux, auth.RequireAuth(cfg.Verifier, cfg.ExpectedProjectID))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
	}).Handler(mux)

	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("api", corsHandler))
}
