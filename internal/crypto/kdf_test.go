package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := DeriveKey("correct-horse-battery-staple", salt, DefaultKeyParams())
	if err != nil {
		t.Fatalf("DeriveKey() unexpected error: %v", err)
	}
	if len(k1) != 32 {
		t.Fatalf("DeriveKey() length = %d, want 32", len(k1))
	}

	k2, _ := DeriveKey("correct-horse-battery-staple", salt, DefaultKeyParams())
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveKey() not deterministic for same passphrase and salt")
	}

	k3, _ := DeriveKey("correct-horse-battery-staple", []byte("fedcba9876543210"), DefaultKeyParams())
	if bytes.Equal(k1, k3) {
		t.Error("DeriveKey() produced the same key for different salts")
	}
}

func TestDeriveKeyValidation(t *testing.T) {
	if _, err := DeriveKey("", []byte("0123456789abcdef"), DefaultKeyParams()); err != ErrPassphraseRequired {
		t.Errorf("DeriveKey() error = %v, want %v", err, ErrPassphraseRequired)
	}
	if _, err := DeriveKey("passphrase", []byte("short"), DefaultKeyParams()); err != ErrSaltTooShort {
		t.Errorf("DeriveKey() error = %v, want %v", err, ErrSaltTooShort)
	}
}

func TestDecodeKey(t *testing.T) {
	raw := bytes.Repeat([]byte{0x2a}, 32)

	for _, enc := range []string{base64.StdEncoding.EncodeToString(raw), base64.RawStdEncoding.EncodeToString(raw)} {
		key, err := DecodeKey(enc)
		if err != nil {
			t.Fatalf("DecodeKey(%q) unexpected error: %v", enc, err)
		}
		if !bytes.Equal(key, raw) {
			t.Errorf("DecodeKey(%q) = %x, want %x", enc, key, raw)
		}
	}

	if _, err := DecodeKey("!!!"); err == nil {
		t.Error("DecodeKey() expected error for invalid base64")
	}
	if _, err := DecodeKey(base64.StdEncoding.EncodeToString([]byte("short"))); err != ErrKeyTooShort {
		t.Errorf("DecodeKey() error = %v, want %v", err, ErrKeyTooShort)
	}
}
