package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

var (
	ErrPassphraseRequired = errors.New("encryption passphrase is required")
	ErrSaltTooShort       = errors.New("encryption salt must be at least 16 bytes")
)

// KeyParams configures the Argon2id derivation of a field encryption key.
type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultKeyParams returns Argon2id parameters for deriving a 256-bit key.
func DefaultKeyParams() KeyParams {
	return KeyParams{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		KeyLength:   32,
	}
}

// DeriveKey stretches a passphrase into a key with Argon2id.
// The same passphrase and salt always give the same key.
func DeriveKey(passphrase string, salt []byte, params KeyParams) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	return argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength), nil
}

// DecodeKey parses a base64 (standard or raw) encoded key.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding encryption key: %w", err)
		}
	}
	if len(key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	return key, nil
}
