package revocation

import (
	"context"
	"errors"
	"time"
)

const (
	refreshPrefix   = "RT:"
	blacklistPrefix = "BL:"

	// BlacklistValue is the payload written for blacklisted access tokens.
	BlacklistValue = "logout"
)

var (
	// ErrUnavailable wraps backend failures and timeouts. Callers treat it as
	// transient.
	ErrUnavailable = errors.New("revocation store unavailable")
	ErrInvalidTTL  = errors.New("revocation ttl must be positive")
	ErrEmptyKey    = errors.New("revocation key is empty")
	// ErrNotFound is returned by CompareAndSwap when the key does not exist.
	ErrNotFound = errors.New("revocation key not found")
)

// Store is a TTL-aware string key-value store.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) (existed bool, err error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Swapper is implemented by stores that can replace a value only while it
// still equals an expected one. Refresh rotation uses it so two concurrent
// reissues with the same token cannot both succeed. A missing key fails with
// ErrNotFound; a present key holding another value reports swapped=false.
type Swapper interface {
	CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (swapped bool, err error)
}

// RefreshKey returns the key holding email's live refresh token.
func RefreshKey(email string) string {
	return refreshPrefix + email
}

// BlacklistKey returns the key marking accessToken as revoked.
func BlacklistKey(accessToken string) string {
	return blacklistPrefix + accessToken
}

func validateSet(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
