package auth

import (
	"errors"
)

// Reason classifies a verification failure. Its value is the "reason" field
// of 401 bodies.
type Reason string

const (
	ReasonMalformed Reason = "malformed"
	ReasonExpired   Reason = "expired"
	ReasonRevoked   Reason = "revoked"
	ReasonInvalid   Reason = "invalid"
	ReasonOther     Reason = "other"
)

// Reasons produced before a credential reaches the verifier.
const (
	HTTPReasonMissingBearer = "missing_bearer"
	HTTPReasonNotJWTLike    = "not_jwt_like"
)

// Error is a classified verification failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "auth: " + string(e.Reason)
	}
	return "auth: " + string(e.Reason) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf returns the classification of err, or ReasonOther for errors that
// did not come from a Verifier.
func ReasonOf(err error) Reason {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Reason
	}
	return ReasonOther
}

// HTTPReason maps a verification reason to its wire value.
func HTTPReason(r Reason) string {
	if r == ReasonMalformed {
		return HTTPReasonNotJWTLike
	}
	return string(r)
}

func failure(reason Reason, err error) error {
	return &Error{Reason: reason, Err: err}
}
