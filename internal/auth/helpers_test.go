package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

func startIssuer(t *testing.T) *mockoidc.MockOIDC {
	t.Helper()
	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func newRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

type tokenSpec struct {
	issuer   string
	audience string
	subject  string
	issuedAt time.Time
	expiry   time.Time
}

func validSpec(issuer, audience string) tokenSpec {
	return tokenSpec{
		issuer:   issuer,
		audience: audience,
		subject:  "user-123",
		issuedAt: testNow.Add(-5 * time.Minute),
		expiry:   testNow.Add(time.Hour),
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, spec tokenSpec) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	claims := jwt.Claims{
		Issuer:   spec.issuer,
		Subject:  spec.subject,
		Audience: jwt.Audience{spec.audience},
		IssuedAt: jwt.NewNumericDate(spec.issuedAt),
		Expiry:   jwt.NewNumericDate(spec.expiry),
	}
	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return raw
}
