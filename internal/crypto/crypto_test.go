package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"pgregory.net/rapid"
)

// TestCrypto_StoreKey_Deterministic tests that DeriveStoreKey is a pure function.
func TestCrypto_StoreKey_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		masterKey := rapid.SliceOfN(rapid.Byte(), MasterKeySize, MasterKeySize).Draw(t, "masterKey")
		name := rapid.String().Draw(t, "name")
		version := rapid.IntRange(1, 1000).Draw(t, "version")

		k1 := DeriveStoreKey(masterKey, name, version)
		k2 := DeriveStoreKey(masterKey, name, version)
		if !bytes.Equal(k1, k2) {
			t.Fatalf("derivation not deterministic: %x != %x", k1, k2)
		}
		if len(k1) != StoreKeySize {
			t.Fatalf("key size = %d, want %d", len(k1), StoreKeySize)
		}
	})
}

// TestCrypto_StoreKey_VersionSeparation tests that rotating the version
// changes the key.
func TestCrypto_StoreKey_VersionSeparation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		masterKey := rapid.SliceOfN(rapid.Byte(), MasterKeySize, MasterKeySize).Draw(t, "masterKey")
		v1 := rapid.IntRange(1, 1000).Draw(t, "v1")
		v2 := rapid.IntRange(1, 1000).Filter(func(v int) bool { return v != v1 }).Draw(t, "v2")

		if bytes.Equal(DeriveStoreKey(masterKey, "notes", v1), DeriveStoreKey(masterKey, "notes", v2)) {
			t.Fatalf("versions %d and %d produced the same key", v1, v2)
		}
	})
}

func TestCrypto_ParseMasterKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Byte(), MasterKeySize, MasterKeySize).Draw(t, "raw")
		got, err := ParseMasterKey(" " + hex.EncodeToString(raw) + "\n")
		if err != nil {
			t.Fatalf("ParseMasterKey: %v", err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("decoded %x, want %x", got, raw)
		}
	})

	for _, bad := range []string{"", "zz", hex.EncodeToString(make([]byte, 16))} {
		if _, err := ParseMasterKey(bad); err == nil {
			t.Fatalf("ParseMasterKey(%q) succeeded, want error", bad)
		}
	}
}
