package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Use tells access tokens and refresh tokens apart.
type Use string

const (
	UseAccess  Use = "access"
	UseRefresh Use = "refresh"
)

var (
	// ErrInvalid matches every verification failure returned by Parse.
	ErrInvalid      = errors.New("invalid token")
	ErrMalformed    = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrBadSignature = fmt.Errorf("%w: signature rejected", ErrInvalid)
	ErrExpired      = fmt.Errorf("%w: expired", ErrInvalid)
	ErrWrongUse     = fmt.Errorf("%w: wrong token use", ErrInvalid)

	ErrEmptySubject = errors.New("token subject is empty")
	ErrInvalidTTL   = errors.New("token ttl must be at least 1ms")
	ErrNilKey       = errors.New("signing key is not initialized")
)

// Claims is the payload carried by every token the codec issues.
type Claims struct {
	Use             string `json:"use"`
	ExpiresAtMillis int64  `json:"exp_ms"`
	jwt.RegisteredClaims
}

// Expiry returns the millisecond-precision expiry instant.
func (c *Claims) Expiry() time.Time {
	return time.UnixMilli(c.ExpiresAtMillis)
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces time.Now. Tests use it to pin expiry boundaries.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIssuer stamps iss on issued tokens and requires it on parse.
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		c.issuer = issuer
	}
}

// Codec issues and verifies HS256 tokens. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	key    SigningKey
	issuer string
	now    func() time.Time
}

// NewCodec returns a codec signing with key.
func NewCodec(key SigningKey, opts ...Option) (*Codec, error) {
	if key.Len() < MinSecretBytes {
		return nil, ErrNilKey
	}

	c := &Codec{key: key, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints an access token for subject that expires ttl from now.
func (c *Codec) Issue(subject string, ttl time.Duration) (string, error) {
	return c.issue(subject, UseAccess, ttl)
}

// IssueRefresh mints a refresh token for subject that expires ttl from now.
func (c *Codec) IssueRefresh(subject string, ttl time.Duration) (string, error) {
	return c.issue(subject, UseRefresh, ttl)
}

func (c *Codec) issue(subject string, use Use, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl < time.Millisecond {
		return "", ErrInvalidTTL
	}

	now := c.now()
	expMillis := now.Add(ttl).UnixMilli()

	claims := Claims{
		Use:             string(use),
		ExpiresAtMillis: expMillis,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(time.UnixMilli(expMillis))),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.key.bytes())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, algorithm and expiry and returns the claims.
// Every failure matches ErrInvalid.
func (c *Codec) Parse(tok string) (*Claims, error) {
	return c.parse(tok, true)
}

// ParseUse is Parse plus a check that the token was issued for use.
func (c *Codec) ParseUse(tok string, use Use) (*Claims, error) {
	claims, err := c.parse(tok, true)
	if err != nil {
		return nil, err
	}
	if claims.Use != string(use) {
		return nil, fmt.Errorf("%w: want %s, got %q", ErrWrongUse, use, claims.Use)
	}
	return claims, nil
}

// Valid reports whether Parse would succeed.
func (c *Codec) Valid(tok string) bool {
	_, err := c.parse(tok, true)
	return err == nil
}

// RemainingValidity returns the time left until tok expires. Expired tokens
// yield a non-positive duration; only malformed or forged tokens fail.
func (c *Codec) RemainingValidity(tok string) (time.Duration, error) {
	claims, err := c.parse(tok, false)
	if err != nil {
		return 0, err
	}
	return time.Duration(claims.ExpiresAtMillis-c.now().UnixMilli()) * time.Millisecond, nil
}

func (c *Codec) parse(tok string, validate bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if validate {
		opts = append(opts, jwt.WithExpirationRequired(), jwt.WithIssuedAt())
		if c.issuer != "" {
			opts = append(opts, jwt.WithIssuer(c.issuer))
		}
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(tok, claims, c.keyFunc); err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || claims.ExpiresAtMillis <= 0 {
		return nil, fmt.Errorf("%w: missing sub or exp_ms", ErrMalformed)
	}
	if validate && c.now().UnixMilli() >= claims.ExpiresAtMillis {
		return nil, ErrExpired
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %v", t.Header["alg"])
	}
	return c.key.bytes(), nil
}

func classify(err error) error {
	var target error
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		target = ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		target = ErrBadSignature
	default:
		target = ErrMalformed
	}
	return fmt.Errorf("%w: %v", target, err)
}

func ceilSecond(t time.Time) time.Time {
	floor := t.Truncate(time.Second)
	if floor.Equal(t) {
		return t
	}
	return floor.Add(time.Second)
}
