// Package crypto derives the at-rest encryption key for the SQL note store.
// The operator supplies one high-entropy master key; the database key is
// derived from it with HKDF-SHA256 so the master key itself never reaches
// SQLCipher and can be rotated by bumping the version.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MasterKeySize is the size of the decoded master key in bytes (256 bits)
	MasterKeySize = 32

	// StoreKeySize is the size of a derived store key in bytes (256 bits)
	StoreKeySize = 32
)

// ParseMasterKey decodes a hex-encoded master key (STORE_MASTER_KEY).
func ParseMasterKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(key))
	}
	return key, nil
}

// DeriveStoreKey derives the database key for the named store using
// HKDF-SHA256. The info parameter combines store name and version for domain
// separation: info = "store:" + name + ":v" + version
//
// Parameters:
//   - masterKey: The root secret
//   - name: The logical store name (e.g. "notes")
//   - version: The key version (for rotation)
//
// Returns:
//   - []byte: A 32-byte key derived deterministically from the inputs
func DeriveStoreKey(masterKey []byte, name string, version int) []byte {
	info := fmt.Sprintf("store:%s:v%d", name, version)
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, StoreKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		// HKDF-SHA256 can emit 255*32 bytes; 32 never fails.
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return key
}
