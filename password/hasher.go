package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; longer passwords are refused instead.
const maxBcryptInputLen = 72

var (
	ErrEmpty         = errors.New("password is empty")
	ErrTooLong       = errors.New("password exceeds hasher input limit")
	ErrMalformedHash = errors.New("malformed password hash")
	ErrUnknownHasher = errors.New("unknown password hasher")
	ErrInvalidParams = errors.New("invalid password hasher parameters")
)

// Hasher turns plaintext into a self-describing hash and checks candidates
// against it. Verify returns (false, nil) for a wrong password and an error
// only when the stored hash cannot be interpreted.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encodedHash string) (bool, error)
}

// Bcrypt implements Hasher with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A zero cost selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d outside [%d, %d]", ErrInvalidParams, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmpty
	}
	if len(plaintext) > maxBcryptInputLen {
		return "", ErrTooLong
	}

	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrTooLong
	}
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(plaintext, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// Cost reports the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// ForName builds a hasher from a configuration string: "bcrypt" or "argon2id".
// bcryptCost is ignored for argon2id, which uses DefaultArgon2Params.
func ForName(name string, bcryptCost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bcrypt":
		return NewBcrypt(bcryptCost)
	case "argon2id", "argon2":
		return NewArgon2(DefaultArgon2Params())
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}
