package auth

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RevocationChecker reports the earliest issue time still accepted for a
// subject. Tokens issued before it are revoked.
type RevocationChecker interface {
	ValidAfter(ctx context.Context, subject string) (cutoff time.Time, found bool, err error)
}

// RevocationList is an in-memory RevocationChecker. Reads vastly outnumber
// writes, so it is guarded by a RWMutex.
type RevocationList struct {
	mu      sync.RWMutex
	cutoffs map[string]time.Time
}

var _ RevocationChecker = (*RevocationList)(nil)

func NewRevocationList() *RevocationList {
	return &RevocationList{cutoffs: make(map[string]time.Time)}
}

// LoadRevocationFile reads a YAML mapping of subject to RFC 3339 cutoff:
//
//	user-123: 2024-05-01T10:00:00Z
func LoadRevocationFile(path string) (*RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read revocation file: %w", err)
	}
	var raw map[string]time.Time
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse revocation file %s: %w", path, err)
	}
	list := NewRevocationList()
	for subject, cutoff := range raw {
		list.Revoke(subject, cutoff)
	}
	return list, nil
}

// Revoke rejects tokens for subject issued before cutoff. A later cutoff
// replaces an earlier one; an earlier one is ignored.
func (l *RevocationList) Revoke(subject string, cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.cutoffs[subject]; ok && existing.After(cutoff) {
		return
	}
	l.cutoffs[subject] = cutoff
}

func (l *RevocationList) ValidAfter(_ context.Context, subject string) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cutoff, ok := l.cutoffs[subject]
	return cutoff, ok, nil
}

// Len returns the number of revoked subjects.
func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cutoffs)
}
