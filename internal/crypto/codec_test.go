package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *AESCodec {
	t.Helper()
	c, err := NewAESCodec(testKey)
	if err != nil {
		t.Fatalf("NewAESCodec() unexpected error: %v", err)
	}
	return c
}

func TestNewAESCodecShortKey(t *testing.T) {
	_, err := NewAESCodec([]byte("short"))
	if err != ErrKeyTooShort {
		t.Errorf("NewAESCodec() error = %v, want %v", err, ErrKeyTooShort)
	}
}

func TestAESCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	inputs := []string{"", "admin", "11b4c1a7e5f3d6b2a9c8e7f6d5c4b3a2f1", "pässwörd ✓", strings.Repeat("x", 4096)}
	for _, in := range inputs {
		enc, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("Encrypt(%q) unexpected error: %v", in, err)
		}
		if in != "" && strings.Contains(enc, in) {
			t.Errorf("Encrypt(%q) leaked plaintext: %q", in, enc)
		}

		dec, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt() unexpected error: %v", err)
		}
		if dec != in {
			t.Errorf("Decrypt(Encrypt(%q)) = %q", in, dec)
		}
	}
}

func TestAESCodecDeterministic(t *testing.T) {
	c := newTestCodec(t)

	a, _ := c.Encrypt("jenkins-token")
	b, _ := c.Encrypt("jenkins-token")
	if a != b {
		t.Errorf("Encrypt() not deterministic: %q != %q", a, b)
	}

	other, _ := c.Encrypt("jenkins-token2")
	if a == other {
		t.Error("Encrypt() produced identical output for different plaintexts")
	}
}

func TestAESCodecDifferentKeys(t *testing.T) {
	c1 := newTestCodec(t)
	c2, err := NewAESCodec(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewAESCodec() unexpected error: %v", err)
	}

	enc, _ := c1.Encrypt("secret")
	_, err = c2.Decrypt(enc)

	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("Decrypt() with foreign key error = %v, want *CodecError", err)
	}
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt() error = %v, want ErrAuthentication", err)
	}
}

func TestAESCodecMalformed(t *testing.T) {
	c := newTestCodec(t)

	for _, in := range []string{"plain-text-credential!", "", "AAAA"} {
		_, err := c.Decrypt(in)
		if !errors.Is(err, ErrMalformedCipher) {
			t.Errorf("Decrypt(%q) error = %v, want ErrMalformedCipher", in, err)
		}
	}
}

func TestAESCodecTampered(t *testing.T) {
	c := newTestCodec(t)

	enc, _ := c.Encrypt("secret")
	b := []byte(enc)
	i := len(b) / 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}

	_, err := c.Decrypt(string(b))
	var codecErr *CodecError
	if !errors.As(err, &codecErr) {
		t.Errorf("Decrypt() of tampered value error = %v, want *CodecError", err)
	}
}
