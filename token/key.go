package token

import (
	"errors"
	"fmt"
)

// MinSecretBytes is the floor for HMAC signing secrets.
const MinSecretBytes = 32

// ErrWeakSecret is returned when the configured secret is too short.
var ErrWeakSecret = errors.New("signing secret too short")

// SigningKey is an immutable HMAC-SHA256 secret.
type SigningKey struct {
	secret []byte
}

// NewSigningKey validates secret and returns a key holding a private copy of it.
// minBytes values below MinSecretBytes are raised to MinSecretBytes.
func NewSigningKey(secret []byte, minBytes int) (SigningKey, error) {
	if minBytes < MinSecretBytes {
		minBytes = MinSecretBytes
	}
	if len(secret) < minBytes {
		return SigningKey{}, fmt.Errorf("%w: got %d bytes, need at least %d", ErrWeakSecret, len(secret), minBytes)
	}

	buf := make([]byte, len(secret))
	copy(buf, secret)
	return SigningKey{secret: buf}, nil
}

// Len reports the secret length in bytes.
func (k SigningKey) Len() int {
	return len(k.secret)
}

func (k SigningKey) bytes() []byte {
	return k.secret
}
