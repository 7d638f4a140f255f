package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argon2ID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Argon2Params are the Argon2id cost parameters. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Argon2Params) validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return fmt.Errorf("%w: argon2 memory must be >= %d KiB", ErrInvalidParams, minMemoryKB)
	case p.Time < minTime:
		return fmt.Errorf("%w: argon2 time must be >= %d", ErrInvalidParams, minTime)
	case p.Parallelism < minParallelism:
		return fmt.Errorf("%w: argon2 parallelism must be >= %d", ErrInvalidParams, minParallelism)
	case p.SaltLength < minSaltLength:
		return fmt.Errorf("%w: argon2 salt length must be >= %d", ErrInvalidParams, minSaltLength)
	case p.KeyLength < minKeyLength:
		return fmt.Errorf("%w: argon2 key length must be >= %d", ErrInvalidParams, minKeyLength)
	}
	return nil
}

// Argon2 implements Hasher with Argon2id.
type Argon2 struct {
	params Argon2Params
}

// NewArgon2 validates params and returns a hasher.
func NewArgon2(params Argon2Params) (*Argon2, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Argon2{params: params}, nil
}

func (a *Argon2) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmpty
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encodedHash, so
// hashes made with older parameters keep verifying.
func (a *Argon2) Verify(plaintext, encodedHash string) (bool, error) {
	stored, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(plaintext), stored.salt, stored.params.Time, stored.params.Memory, stored.params.Parallelism, stored.params.KeyLength)
	return subtle.ConstantTimeCompare(candidate, stored.key) == 1, nil
}

type phcHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phcHash{}, fmt.Errorf("%w: expected 5 PHC fields", ErrMalformedHash)
	}
	if parts[1] != argon2ID {
		return phcHash{}, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phcHash{}, fmt.Errorf("%w: version %q", ErrMalformedHash, parts[2])
	}

	var out phcHash
	if err := decodeParams(parts[3], &out.params); err != nil {
		return phcHash{}, err
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || uint32(len(out.salt)) < minSaltLength {
		return phcHash{}, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.key) == 0 {
		return phcHash{}, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	out.params.SaltLength = uint32(len(out.salt))
	out.params.KeyLength = uint32(len(out.key))
	return out, nil
}

func decodeParams(field string, p *Argon2Params) error {
	pairs := strings.Split(field, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: parameters %q", ErrMalformedHash, field)
	}

	seen := 0
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: parameter %q", ErrMalformedHash, pair)
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minMemoryKB {
				return fmt.Errorf("%w: memory %q", ErrMalformedHash, raw)
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < minTime {
				return fmt.Errorf("%w: time %q", ErrMalformedHash, raw)
			}
			p.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < minParallelism {
				return fmt.Errorf("%w: parallelism %q", ErrMalformedHash, raw)
			}
			p.Parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, name)
		}
		seen++
	}
	if seen != 3 || p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}
	return nil
}
