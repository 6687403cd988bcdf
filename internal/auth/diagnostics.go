package auth

import (
	"github.com/go-jose/go-jose/v3/jwt"
)

// UnverifiedDetails are header and payload fields read without checking the
// signature. They are never used for a trust decision.
type UnverifiedDetails struct {
	Issuer   string   `json:"iss,omitempty"`
	Audience []string `json:"aud,omitempty"`
	KeyID    string   `json:"kid,omitempty"`
	Alg      string   `json:"alg,omitempty"`
}

// InspectUnverified decodes credential for diagnostics. ok is false when it is
// not a parseable JWS.
func InspectUnverified(credential string) (details UnverifiedDetails, ok bool) {
	tok, err := jwt.ParseSigned(credential)
	if err != nil {
		return UnverifiedDetails{}, false
	}
	if len(tok.Headers) > 0 {
		details.KeyID = tok.Headers[0].KeyID
		details.Alg = tok.Headers[0].Algorithm
	}
	var claims jwt.Claims
	if err := tok.UnsafeClaimsWithoutVerification(&claims); err == nil {
		details.Issuer = claims.Issuer
		details.Audience = []string(claims.Audience)
	}
	return details, true
}
