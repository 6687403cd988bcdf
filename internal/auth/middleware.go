// Package auth verifies bearer identity tokens and guards HTTP handlers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kuitang/notes-backend/internal/logutil"
	"github.com/kuitang/notes-backend/internal/obs"
)

type ownerIDKey struct{}

// WithOwnerID returns ctx carrying an authenticated owner id.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey{}, ownerID)
}

// OwnerID returns the owner id placed on ctx by RequireAuth, or "".
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(ownerIDKey{}).(string)
	return id
}

var errMissingBearer = errors.New("authorization header must use the Bearer scheme")

// ExtractBearerToken returns the credential from an Authorization header.
// Surrounding whitespace and quotes pasted along with the token are removed.
func ExtractBearerToken(header string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", errMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	token = strings.Trim(token, `"`)
	token = strings.Trim(token, `'`)
	return token, nil
}

// unauthorizedBody is the 401 response shape.
type unauthorizedBody struct {
	Error  string          `json:"error"`
	Reason string          `json:"reason"`
	Detail string          `json:"detail,omitempty"`
	Debug  *invalidDetails `json:"debug,omitempty"`
}

type invalidDetails struct {
	ExpectedProjectID string   `json:"expected_project_id"`
	Issuer            *string  `json:"iss"`
	Audience          []string `json:"aud"`
}

// RequireAuth returns middleware that admits only requests with a verified
// bearer token and places the owner id on the request context.
//
// Behavior:
// 1. Header must start with "Bearer " (reason missing_bearer)
// 2. Credential must look like a compact JWT (reason not_jwt_like)
// 3. verifier decides; failures answer 401 with the verifier's reason
// 4. For reason invalid, the body carries unverified iss/aud next to the
//    expected project id so misconfigured clients can tell which side is wrong
func RequireAuth(verifier TokenVerifier, expectedProjectID string) func(http.Handler) http.Handler {
	logger := obs.Pkg("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := r.Header.Get("Authorization")

			token, err := ExtractBearerToken(header)
			if err != nil {
				logger.InfoContext(ctx, "auth_rejected",
					"reason", HTTPReasonMissingBearer,
					"scheme", logutil.TruncateForLog(strings.SplitN(header, " ", 2)[0], 16),
					"headers", logutil.FormatHeadersForLog(r.Header))
				writeUnauthorized(w, unauthorizedBody{Reason: HTTPReasonMissingBearer})
				return
			}
			if !LooksLikeJWT(token) {
				logger.InfoContext(ctx, "auth_rejected", "reason", HTTPReasonNotJWTLike, "token_len", len(token))
				writeUnauthorized(w, unauthorizedBody{Reason: HTTPReasonNotJWTLike})
				return
			}

			ownerID, err := verifier.Verify(ctx, token)
			if err != nil {
				reason := ReasonOf(err)
				body := unauthorizedBody{Reason: HTTPReason(reason), Detail: err.Error()}
				if reason == ReasonInvalid {
					body.Debug = invalidDebug(expectedProjectID, token)
				}
				obs.From(ctx).With("pkg", "auth").Info("auth_rejected",
					"reason", body.Reason,
					"token", logutil.TokenFingerprint(token),
					"error", err)
				writeUnauthorized(w, body)
				return
			}

			obs.SetSubject(ctx, ownerID)
			next.ServeHTTP(w, r.WithContext(WithOwnerID(ctx, ownerID)))
		})
	}
}

func invalidDebug(expectedProjectID, token string) *invalidDetails {
	debug := &invalidDetails{ExpectedProjectID: expectedProjectID}
	if details, ok := InspectUnverified(token); ok {
		if details.Issuer != "" {
			iss := details.Issuer
			debug.Issuer = &iss
		}
		debug.Audience = details.Audience
	}
	return debug
}

func writeUnauthorized(w http.ResponseWriter, body unauthorizedBody) {
	body.Error = "invalid_token"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}
