package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	// FirebaseIssuerPrefix prefixes the per-project Firebase token issuer.
	FirebaseIssuerPrefix = "https://securetoken.google.com/"

	// FirebaseJWKSURL serves the keys Firebase ID tokens are signed with.
	FirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

	// MinTokenLength is the shortest credential treated as a possible JWT.
	MinTokenLength = 100
)

// TokenVerifier turns a bearer credential into an owner id.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (ownerID string, err error)
}

// Clock supplies the verification time.
type Clock interface {
	Now() time.Time
}

// VerifierConfig configures NewVerifier.
type VerifierConfig struct {
	// Issuer is the exact expected "iss" claim.
	Issuer string
	// Audience is the expected "aud" claim (the project id).
	Audience string
	// JWKSURL, when set, skips OIDC discovery and fetches keys directly.
	JWKSURL string
	// Revocations is consulted after the signature checks pass. Optional.
	Revocations RevocationChecker
	// Clock overrides time.Now. Optional.
	Clock Clock
}

// Verifier checks signed identity tokens against a remote key set.
// It is built once at startup and is safe for concurrent use; go-oidc caches
// keys and refreshes them when a token names an unknown key id.
type Verifier struct {
	idTokens    *oidc.IDTokenVerifier
	revocations RevocationChecker
	issuer      string
	audience    string
}

var _ TokenVerifier = (*Verifier)(nil)

// NewVerifier builds a Verifier. Without JWKSURL the issuer's discovery
// document is fetched here, so startup fails fast on a bad issuer.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("auth: issuer and audience are required")
	}

	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		provider, err := oidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
		}
		var meta struct {
			JWKSURL string `json:"jwks_uri"`
		}
		if err := provider.Claims(&meta); err != nil || meta.JWKSURL == "" {
			return nil, fmt.Errorf("OIDC provider %q publishes no jwks_uri", cfg.Issuer)
		}
		jwksURL = meta.JWKSURL
	}

	// The key set outlives ctx; its fetches must not be cancelled with it.
	keySet := &probingKeySet{inner: oidc.NewRemoteKeySet(context.WithoutCancel(ctx), jwksURL)}

	oidcConfig := &oidc.Config{ClientID: cfg.Audience}
	if cfg.Clock != nil {
		oidcConfig.Now = cfg.Clock.Now
	}

	return &Verifier{
		idTokens:    oidc.NewVerifier(cfg.Issuer, keySet, oidcConfig),
		revocations: cfg.Revocations,
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
	}, nil
}

// Issuer returns the expected issuer.
func (v *Verifier) Issuer() string { return v.issuer }

// Audience returns the expected audience.
func (v *Verifier) Audience() string { return v.audience }

// Verify validates credential and returns its subject. Failures are *Error.
func (v *Verifier) Verify(ctx context.Context, credential string) (string, error) {
	if !LooksLikeJWT(credential) {
		return "", failure(ReasonMalformed, errors.New("credential is not a compact JWT"))
	}

	probe := &fetchProbe{}
	idToken, err := v.idTokens.Verify(withProbe(ctx, probe), credential)
	if err != nil {
		return "", classify(ctx, probe, err)
	}
	if idToken.Subject == "" {
		return "", failure(ReasonInvalid, errors.New("token has no subject"))
	}

	if v.revocations != nil {
		cutoff, found, err := v.revocations.ValidAfter(ctx, idToken.Subject)
		if err != nil {
			return "", failure(ReasonOther, fmt.Errorf("revocation lookup: %w", err))
		}
		if found && idToken.IssuedAt.Before(cutoff) {
			return "", failure(ReasonRevoked, fmt.Errorf("token issued at %s, before revocation at %s",
				idToken.IssuedAt.UTC().Format(time.RFC3339), cutoff.UTC().Format(time.RFC3339)))
		}
	}
	return idToken.Subject, nil
}

// LooksLikeJWT reports whether credential has the compact JWT shape: exactly
// three dot-separated parts and at least MinTokenLength bytes.
func LooksLikeJWT(credential string) bool {
	return strings.Count(credential, ".") == 2 && len(credential) >= MinTokenLength
}

func classify(ctx context.Context, probe *fetchProbe, err error) error {
	var expired *oidc.TokenExpiredError
	switch {
	case errors.As(err, &expired):
		return failure(ReasonExpired, err)
	case ctx.Err() != nil:
		return failure(ReasonOther, ctx.Err())
	case probe.failed() != nil:
		return failure(ReasonOther, probe.failed())
	default:
		return failure(ReasonInvalid, err)
	}
}

// =============================================================================
// Key fetch probing
// =============================================================================

// go-oidc flattens key-set errors into its own message, so the key set records
// fetch failures on a per-call probe before they are lost.
type probingKeySet struct {
	inner oidc.KeySet
}

func (k *probingKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.inner.VerifySignature(ctx, jwt)
	if err != nil && isFetchFailure(err) {
		if probe := probeFrom(ctx); probe != nil {
			probe.record(err)
		}
	}
	return payload, err
}

// isFetchFailure matches RemoteKeySet's "fetching keys" wrapper and
// cancellation while waiting on an in-flight refresh.
func isFetchFailure(err error) bool {
	return strings.HasPrefix(err.Error(), "fetching keys") ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

type fetchProbe struct {
	mu  sync.Mutex
	err error
}

func (p *fetchProbe) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fetchProbe) failed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

type probeKey struct{}

func withProbe(ctx context.Context, p *fetchProbe) context.Context {
	return context.WithValue(ctx, probeKey{}, p)
}

func probeFrom(ctx context.Context) *fetchProbe {
	p, _ := ctx.Value(probeKey{}).(*fetchProbe)
	return p
}
