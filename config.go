package memoauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/memoauth/token"
)

// Config holds every tunable of a Manager. It is copied into the Builder and
// never mutated after Build.
type Config struct {
	JWT     JWTConfig
	Login   LoginConfig
	Logout  LogoutConfig
	Store   StoreConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	// Secret is the HS256 key. It must be at least MinSecretBytes long.
	Secret         []byte
	MinSecretBytes int
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	Issuer         string
}

/*
====================================
LOGIN / LOGOUT CONFIG
====================================
*/

// Disclosure selects how much a failed login reveals.
type Disclosure uint8

const (
	// DisclosureStrict reports every credential failure as ErrInvalidCredentials.
	DisclosureStrict Disclosure = iota
	// DisclosureVerbose distinguishes ErrEmailNotFound from ErrPasswordMismatch.
	// Meant for development.
	DisclosureVerbose
)

func (d Disclosure) String() string {
	if d == DisclosureVerbose {
		return "verbose"
	}
	return "strict"
}

// ParseDisclosure reads "verbose" or "strict". Empty input means strict.
func ParseDisclosure(s string) (Disclosure, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return DisclosureStrict, nil
	case "verbose":
		return DisclosureVerbose, nil
	default:
		return DisclosureStrict, fmt.Errorf("unknown disclosure mode %q", s)
	}
}

type LoginConfig struct {
	Disclosure Disclosure
}

type LogoutConfig struct {
	// BlacklistAccessToken revokes the access token presented at logout for the
	// rest of its lifetime.
	BlacklistAccessToken bool
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds calls to the revocation and user stores.
type StoreConfig struct {
	Timeout time.Duration
	// KeyPrefix namespaces revocation keys when the Builder creates the Redis
	// store itself.
	KeyPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. JWT.Secret is left empty and must
// be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			MinSecretBytes: token.MinSecretBytes,
			AccessTTL:      time.Hour,
			RefreshTTL:     14 * 24 * time.Hour,
		},
		Login: LoginConfig{
			Disclosure: DisclosureStrict,
		},
		Logout: LogoutConfig{
			BlacklistAccessToken: true,
		},
		Store: StoreConfig{
			Timeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting. A short secret yields an error
// matching token.ErrWeakSecret.
func (c *Config) Validate() error {
	minBytes := c.JWT.MinSecretBytes
	if minBytes < token.MinSecretBytes {
		minBytes = token.MinSecretBytes
	}
	if len(c.JWT.Secret) < minBytes {
		return fmt.Errorf("JWT Secret: %w (need %d bytes, got %d)", token.ErrWeakSecret, minBytes, len(c.JWT.Secret))
	}
	if c.JWT.AccessTTL < time.Millisecond {
		return errors.New("JWT AccessTTL must be >= 1ms")
	}
	if c.JWT.RefreshTTL < time.Millisecond {
		return errors.New("JWT RefreshTTL must be >= 1ms")
	}

	if c.Login.Disclosure != DisclosureStrict && c.Login.Disclosure != DisclosureVerbose {
		return errors.New("Login Disclosure must be strict or verbose")
	}

	if c.Store.Timeout <= 0 {
		return errors.New("Store Timeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
