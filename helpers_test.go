package memoauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/memoauth/password"
	"github.com/MrEthical07/memoauth/revocation"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockUserStore struct {
	mu      sync.Mutex
	users   map[string]User
	failErr error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[string]User{}}
}

func (s *mockUserStore) FindUserByEmail(_ context.Context, email string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return User{}, false, s.failErr
	}
	u, ok := s.users[email]
	return u, ok, nil
}

func (s *mockUserStore) UserExists(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	_, ok := s.users[email]
	return ok, nil
}

func (s *mockUserStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

func (s *mockUserStore) SaveUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.users[u.Email]; ok {
		return ErrEmailAlreadyExists
	}
	s.users[u.Email] = u
	return nil
}

func (s *mockUserStore) fail(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

// vanishingStore deletes the key right before a swap, as if it expired between
// the read and the rotation.
type vanishingStore struct {
	*revocation.MemoryStore
}

func (s vanishingStore) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	_, _ = s.Delete(ctx, key)
	return s.MemoryStore.CompareAndSwap(ctx, key, old, value, ttl)
}

// blacklistFailStore fails every blacklist write.
type blacklistFailStore struct {
	*revocation.MemoryStore
}

func (s *blacklistFailStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if strings.HasPrefix(key, revocation.BlacklistKey("")) {
		return revocation.ErrUnavailable
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

// countingHasher counts Verify calls so tests can assert that both strict
// login failure paths do the same amount of hashing work.
type countingHasher struct {
	password.Hasher
	verifies atomic.Int64
}

func (h *countingHasher) Verify(plaintext, encodedHash string) (bool, error) {
	h.verifies.Add(1)
	return h.Hasher.Verify(plaintext, encodedHash)
}

func newTestHasher(t *testing.T) *countingHasher {
	t.Helper()
	bc, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt: %v", err)
	}
	return &countingHasher{Hasher: bc}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.Login.Disclosure = DisclosureStrict
	return cfg
}

type testEnv struct {
	mgr    *Manager
	mr     *miniredis.Miniredis
	users  *mockUserStore
	hasher *countingHasher
	clock  *testClock
}

func newTestEnv(t *testing.T, mutate func(*Config), extra ...func(*Builder)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		mr:     mr,
		users:  newMockUserStore(),
		hasher: newTestHasher(t),
		clock:  newTestClock(),
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(env.users).
		WithHasher(env.hasher).
		WithClock(env.clock.Now)
	for _, fn := range extra {
		fn(b)
	}

	mgr, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(mgr.Close)
	env.mgr = mgr
	return env
}

func validSignup(email string) SignupRequest {
	return SignupRequest{
		Email:           email,
		Password:        "correct horse battery",
		PasswordConfirm: "correct horse battery",
		Nickname:        "memo-writer",
		BirthDate:       time.Date(1990, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (e *testEnv) signupAndLogin(t *testing.T, email string) TokenPair {
	t.Helper()
	ctx := context.Background()
	if err := e.mgr.Signup(ctx, validSignup(email)); err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	pair, err := e.mgr.Login(ctx, email, "correct horse battery")
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return pair
}

func assertErrIs(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
