package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	MinKeyLength = 16

	nonceSize = 12
	subkeyLen = 32
)

var (
	ErrKeyTooShort     = errors.New("encryption key must be at least 16 bytes")
	ErrMalformedCipher = errors.New("malformed ciphertext")
	ErrAuthentication  = errors.New("ciphertext authentication failed")
)

// CodecError reports a failed encrypt or decrypt. It always indicates a
// corrupted value or a key mismatch and must not be ignored.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Codec is a reversible string transform used for fields stored at rest.
type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESCodec encrypts with AES-256-GCM using a nonce derived from the plaintext
// (HMAC-SHA256), so equal plaintexts under the same key give equal ciphertexts.
// Output is nonce||sealed, base64url encoded without padding.
type AESCodec struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewAESCodec derives independent encryption and nonce keys from key with HKDF.
func NewAESCodec(key []byte) (*AESCodec, error) {
	if len(key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	encKey, err := subkey(key, "field-encryption")
	if err != nil {
		return nil, err
	}
	macKey, err := subkey(key, "field-nonce")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}

	return &AESCodec{aead: aead, macKey: macKey}, nil
}

// Encrypt seals plaintext. The same plaintext always yields the same output.
func (c *AESCodec) Encrypt(plaintext string) (string, error) {
	nonce := c.nonceFor([]byte(plaintext))
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a value produced by Encrypt with the same key.
func (c *AESCodec) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &CodecError{Op: "decrypt", Err: ErrMalformedCipher}
	}
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", &CodecError{Op: "decrypt", Err: ErrMalformedCipher}
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &CodecError{Op: "decrypt", Err: ErrAuthentication}
	}

	// The nonce is a function of the plaintext; anything else was not produced by Encrypt.
	if !hmac.Equal(nonce, c.nonceFor(plain)) {
		return "", &CodecError{Op: "decrypt", Err: ErrAuthentication}
	}

	return string(plain), nil
}

func (c *AESCodec) nonceFor(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:nonceSize]
}

func subkey(secret []byte, info string) ([]byte, error) {
	out := make([]byte, subkeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("deriving %s key: %w", info, err)
	}
	return out, nil
}
