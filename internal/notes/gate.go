package notes

// Decision is the outcome of an ownership check.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionForbidden
	DecisionNotFound
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionForbidden:
		return "forbidden"
	case DecisionNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Authorize decides whether callerID may act on existing. A nil existing note
// means the target does not exist. Existence is decided before ownership, so a
// foreign note is always forbidden, never not_found.
func Authorize(callerID string, existing *Note) Decision {
	if existing == nil {
		return DecisionNotFound
	}
	if existing.OwnerID != callerID {
		return DecisionForbidden
	}
	return DecisionAllow
}
