package memoauth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/memoauth/revocation"
	"github.com/MrEthical07/memoauth/token"
)

func refreshKeys(env *testEnv) []string {
	var out []string
	for _, k := range env.mr.Keys() {
		if strings.HasPrefix(k, "RT:") {
			out = append(out, k)
		}
	}
	return out
}

func TestSignupThenLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	pair := env.signupAndLogin(t, "a@b.co")

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	stored, err := env.mr.Get("RT:a@b.co")
	if err != nil {
		t.Fatalf("refresh token not stored: %v", err)
	}
	if stored != pair.RefreshToken {
		t.Fatal("stored refresh token must equal the issued one")
	}
	if ttl := env.mr.TTL("RT:a@b.co"); ttl != 14*24*time.Hour {
		t.Fatalf("expected refresh TTL of 14d, got %v", ttl)
	}
}

func TestSignupStoresHashedPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	req := validSignup("a@b.co")
	if err := env.mgr.Signup(context.Background(), req); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	u := env.users.users["a@b.co"]
	if u.PasswordHash == "" || u.PasswordHash == req.Password {
		t.Fatal("password must be stored hashed")
	}
	if u.Nickname != req.Nickname || !u.BirthDate.Equal(req.BirthDate) {
		t.Fatalf("profile not persisted: %+v", u)
	}
	if len(env.mr.Keys()) != 0 {
		t.Fatal("signup must not touch the revocation store")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if err := env.mgr.Signup(ctx, validSignup("a@b.co")); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	err := env.mgr.Signup(ctx, validSignup("a@b.co"))
	assertErrIs(t, err, ErrEmailAlreadyExists)
	if HTTPStatus(err) != 409 {
		t.Fatalf("expected 409, got %d", HTTPStatus(err))
	}
}

func TestSignupExistenceCheckedBeforeConfirmation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_ = env.mgr.Signup(ctx, validSignup("a@b.co"))

	req := validSignup("a@b.co")
	req.PasswordConfirm = "something else"
	assertErrIs(t, env.mgr.Signup(ctx, req), ErrEmailAlreadyExists)
}

func TestSignupPasswordConfirmMismatch(t *testing.T) {
	env := newTestEnv(t, nil)

	req := validSignup("a@b.co")
	req.PasswordConfirm = "correct horse battery!"
	err := env.mgr.Signup(context.Background(), req)
	assertErrIs(t, err, ErrPasswordConfirmMismatch)
	if ErrorKind(err) != KindValidation {
		t.Fatalf("expected validation kind, got %v", ErrorKind(err))
	}
	if _, ok := env.users.users["a@b.co"]; ok {
		t.Fatal("rejected signup must not persist a user")
	}
}

func TestSignupFieldValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		mutate func(*SignupRequest)
		want   error
	}{
		{"blank email", func(r *SignupRequest) { r.Email = "  " }, ErrMissingEmail},
		{"bad email", func(r *SignupRequest) { r.Email = "not-an-email" }, ErrInvalidEmail},
		{"no password", func(r *SignupRequest) { r.Password = ""; r.PasswordConfirm = "" }, ErrMissingPassword},
		{"blank nickname", func(r *SignupRequest) { r.Nickname = "   " }, ErrMissingNickname},
		{"no birth date", func(r *SignupRequest) { r.BirthDate = time.Time{} }, ErrMissingBirthDate},
		{"password too long", func(r *SignupRequest) {
			r.Password = strings.Repeat("p", 80)
			r.PasswordConfirm = r.Password
		}, ErrIllegalArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSignup("v@b.co")
			tt.mutate(&req)
			assertErrIs(t, env.mgr.Signup(context.Background(), req), tt.want)
		})
	}
}

func TestSignupTrimsEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	req := validSignup("  a@b.co ")
	if err := env.mgr.Signup(context.Background(), req); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if _, err := env.mgr.Login(context.Background(), "a@b.co", req.Password); err != nil {
		t.Fatalf("Login with trimmed email: %v", err)
	}
}

func TestLoginStrictModeIsIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_ = env.mgr.Signup(ctx, validSignup("a@b.co"))

	before := env.hasher.verifies.Load()
	_, unknownErr := env.mgr.Login(ctx, "nobody@b.co", "whatever")
	afterUnknown := env.hasher.verifies.Load()
	_, wrongErr := env.mgr.Login(ctx, "a@b.co", "wrong password")
	afterWrong := env.hasher.verifies.Load()

	if unknownErr != wrongErr {
		t.Fatalf("strict failures must be the same error value: %v vs %v", unknownErr, wrongErr)
	}
	assertErrIs(t, unknownErr, ErrInvalidCredentials)
	if unknownErr.Error() != wrongErr.Error() || HTTPStatus(unknownErr) != HTTPStatus(wrongErr) {
		t.Fatal("strict failures must render identically")
	}
	if afterUnknown-before != 1 || afterWrong-afterUnknown != 1 {
		t.Fatalf("each failure path must verify exactly once, got %d and %d", afterUnknown-before, afterWrong-afterUnknown)
	}
	if len(refreshKeys(env)) != 0 {
		t.Fatal("failed logins must not store refresh tokens")
	}
}

func TestLoginVerboseModeDistinguishes(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Login.Disclosure = DisclosureVerbose })
	ctx := context.Background()
	_ = env.mgr.Signup(ctx, validSignup("a@b.co"))

	_, err := env.mgr.Login(ctx, "nobody@b.co", "whatever")
	assertErrIs(t, err, ErrEmailNotFound)

	_, err = env.mgr.Login(ctx, "a@b.co", "wrong password")
	assertErrIs(t, err, ErrPasswordMismatch)
	if HTTPStatus(err) != 400 {
		t.Fatalf("expected 400, got %d", HTTPStatus(err))
	}
}

func TestLoginRequiresFields(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.mgr.Login(context.Background(), "", "x")
	assertErrIs(t, err, ErrMissingEmail)
	_, err = env.mgr.Login(context.Background(), "a@b.co", "")
	assertErrIs(t, err, ErrMissingPassword)
}

func TestLoginReplacesPreviousRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	first := env.signupAndLogin(t, "a@b.co")

	second, err := env.mgr.Login(ctx, "a@b.co", "correct horse battery")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	if keys := refreshKeys(env); len(keys) != 1 {
		t.Fatalf("expected exactly one refresh record, got %v", keys)
	}
	if got, _ := env.mr.Get("RT:a@b.co"); got != second.RefreshToken {
		t.Fatal("stored refresh token must be the latest one")
	}

	_, err = env.mgr.Reissue(ctx, "a@b.co", first.RefreshToken)
	assertErrIs(t, err, ErrRefreshTokenMismatch)
}

func TestReissueRotatesPair(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	env.clock.Advance(time.Second)
	next, err := env.mgr.Reissue(ctx, "a@b.co", pair.RefreshToken)
	if err != nil {
		t.Fatalf("Reissue: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken || next.AccessToken == pair.AccessToken {
		t.Fatal("reissue must mint a new pair")
	}
	if got, _ := env.mr.Get("RT:a@b.co"); got != next.RefreshToken {
		t.Fatal("store must hold the rotated refresh token")
	}
	if keys := refreshKeys(env); len(keys) != 1 {
		t.Fatalf("expected exactly one refresh record, got %v", keys)
	}

	if _, err := env.mgr.Authenticate(ctx, next.AccessToken); err != nil {
		t.Fatalf("new access token must authenticate: %v", err)
	}
}

func TestReissueWithSupersededTokenFailsEveryTime(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	if _, err := env.mgr.Reissue(ctx, "a@b.co", pair.RefreshToken); err != nil {
		t.Fatalf("first Reissue: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, err := env.mgr.Reissue(ctx, "a@b.co", pair.RefreshToken)
		assertErrIs(t, err, ErrRefreshTokenMismatch)
		if HTTPStatus(err) != 401 {
			t.Fatalf("expected 401, got %d", HTTPStatus(err))
		}
	}
}

func TestReissueCheckOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")
	_ = env.mgr.Signup(ctx, validSignup("c@b.co"))

	// Unknown email wins even with a valid token for another subject.
	_, err := env.mgr.Reissue(ctx, "nobody@b.co", pair.RefreshToken)
	assertErrIs(t, err, ErrEmailNotFound)

	// Known user with no session.
	_, err = env.mgr.Reissue(ctx, "c@b.co", pair.RefreshToken)
	assertErrIs(t, err, ErrRefreshTokenNotFound)

	// Stored token differs from presented.
	_, err = env.mgr.Reissue(ctx, "a@b.co", "garbage")
	assertErrIs(t, err, ErrRefreshTokenMismatch)

	// Stored equals presented but fails verification.
	_ = env.mr.Set("RT:a@b.co", "garbage")
	_, err = env.mgr.Reissue(ctx, "a@b.co", "garbage")
	assertErrIs(t, err, ErrInvalidRefreshToken)
}

func TestReissueExpiredRefreshToken(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.JWT.RefreshTTL = time.Second })
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	// The store entry is still there (miniredis time does not move with the
	// test clock) but the token itself has expired.
	env.clock.Advance(time.Second)
	_, err := env.mgr.Reissue(ctx, "a@b.co", pair.RefreshToken)
	assertErrIs(t, err, ErrInvalidRefreshToken)
}

func TestReissueRejectsAccessTokenAsRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	_ = env.mr.Set("RT:a@b.co", pair.AccessToken)
	_, err := env.mgr.Reissue(ctx, "a@b.co", pair.AccessToken)
	assertErrIs(t, err, ErrInvalidRefreshToken)
}

func TestReissueRequiresFields(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.mgr.Reissue(context.Background(), "", "x")
	assertErrIs(t, err, ErrMissingEmail)
	_, err = env.mgr.Reissue(context.Background(), "a@b.co", "")
	assertErrIs(t, err, ErrMissingRefreshToken)
}

func TestConcurrentReissueSingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	pair := env.signupAndLogin(t, "race@b.co")

	const workers = 12
	var (
		wins       atomic.Int32
		mismatches atomic.Int32
		wg         sync.WaitGroup
		start      = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.mgr.Reissue(context.Background(), "race@b.co", pair.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrRefreshTokenMismatch):
				mismatches.Add(1)
			default:
				t.Errorf("unexpected reissue error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful rotation, got %d", wins.Load())
	}
	if mismatches.Load() != workers-1 {
		t.Fatalf("expected %d mismatches, got %d", workers-1, mismatches.Load())
	}
}

func TestReissueRefreshTokenGoneBeforeRotation(t *testing.T) {
	store := vanishingStore{MemoryStore: revocation.NewMemoryStore(revocation.WithSweepInterval(0))}
	t.Cleanup(store.Close)
	env := newTestEnv(t, nil, func(b *Builder) { b.WithRevocationStore(store) })
	pair := env.signupAndLogin(t, "a@b.co")

	_, err := env.mgr.Reissue(context.Background(), "a@b.co", pair.RefreshToken)
	assertErrIs(t, err, ErrRefreshTokenNotFound)
}

func TestConcurrentLoginsLastWriterWins(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	_ = env.mgr.Signup(ctx, validSignup("a@b.co"))

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.mgr.Login(ctx, "a@b.co", "correct horse battery"); err != nil {
				t.Errorf("Login: %v", err)
			}
		}()
	}
	wg.Wait()

	if keys := refreshKeys(env); len(keys) != 1 {
		t.Fatalf("expected one refresh record after concurrent logins, got %v", keys)
	}
}

func TestLogoutThenReissueFails(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	if err := env.mgr.Logout(ctx, "a@b.co", pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, err := env.mgr.Reissue(ctx, "a@b.co", pair.RefreshToken)
	assertErrIs(t, err, ErrRefreshTokenNotFound)
}

func TestDoubleLogoutFails(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	if err := env.mgr.Logout(ctx, "a@b.co", pair.AccessToken); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	assertErrIs(t, env.mgr.Logout(ctx, "a@b.co", pair.AccessToken), ErrRefreshTokenNotFound)
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	env.clock.Advance(10 * time.Minute)
	if err := env.mgr.Logout(ctx, "a@b.co", pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	key := revocation.BlacklistKey(pair.AccessToken)
	if got, err := env.mr.Get(key); err != nil || got != revocation.BlacklistValue {
		t.Fatalf("expected blacklist entry, got (%q, %v)", got, err)
	}
	if ttl := env.mr.TTL(key); ttl != 50*time.Minute {
		t.Fatalf("blacklist TTL must equal remaining validity, got %v", ttl)
	}

	_, err := env.mgr.Authenticate(ctx, pair.AccessToken)
	assertErrIs(t, err, ErrTokenBlacklisted)
}

func TestFailedLogoutWritesNoBlacklistEntry(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	env.mr.Del(revocation.RefreshKey("a@b.co"))
	assertErrIs(t, env.mgr.Logout(ctx, "a@b.co", pair.AccessToken), ErrRefreshTokenNotFound)

	if env.mr.Exists(revocation.BlacklistKey(pair.AccessToken)) {
		t.Fatal("failed logout must not blacklist the access token")
	}
	if _, err := env.mgr.Authenticate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("access token must stay valid after a failed logout: %v", err)
	}
}

func TestLogoutBlacklistFailureIsTransient(t *testing.T) {
	store := &blacklistFailStore{MemoryStore: revocation.NewMemoryStore(revocation.WithSweepInterval(0))}
	t.Cleanup(store.Close)
	env := newTestEnv(t, nil, func(b *Builder) { b.WithRevocationStore(store) })
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	assertErrIs(t, env.mgr.Logout(ctx, "a@b.co", pair.AccessToken), ErrStoreUnavailable)
	if ok, _ := store.Exists(ctx, revocation.RefreshKey("a@b.co")); ok {
		t.Fatal("refresh token must be deleted before the blacklist write")
	}
}

func TestLogoutWithoutBlacklist(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Logout.BlacklistAccessToken = false })
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	if err := env.mgr.Logout(ctx, "a@b.co", pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := env.mgr.Authenticate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("access token stays valid until expiry without blacklist: %v", err)
	}
}

func TestLogoutIgnoresUnverifiableAccessToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signupAndLogin(t, "a@b.co")

	if err := env.mgr.Logout(ctx, "a@b.co", "forged.token.value"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	for _, k := range env.mr.Keys() {
		if strings.HasPrefix(k, "BL:") {
			t.Fatalf("forged token must not be blacklisted, found %s", k)
		}
	}
}

func TestStoreOutageIsTransient(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.signupAndLogin(t, "a@b.co")

	env.mr.SetError("ERR backend failure")
	defer env.mr.SetError("")

	_, err := env.mgr.Reissue(ctx, "a@b.co", pair.RefreshToken)
	assertErrIs(t, err, ErrStoreUnavailable)
	if ErrorKind(err) != KindTransient || HTTPStatus(err) != 503 {
		t.Fatalf("expected transient/503, got %v/%d", ErrorKind(err), HTTPStatus(err))
	}

	_, err = env.mgr.Authenticate(ctx, pair.AccessToken)
	assertErrIs(t, err, ErrStoreUnavailable)

	if got := env.mgr.MetricsSnapshot().Counters[MetricStoreUnavailable]; got < 2 {
		t.Fatalf("expected store outages to be counted, got %d", got)
	}
}

func TestUserStoreTimeoutIsTransient(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.fail(context.DeadlineExceeded)

	_, err := env.mgr.Login(context.Background(), "a@b.co", "x")
	assertErrIs(t, err, ErrStoreUnavailable)
}

func TestUserStoreUnexpectedErrorIsInternal(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.fail(errors.New("syntax error at or near SELECT"))

	err := env.mgr.Signup(context.Background(), validSignup("a@b.co"))
	assertErrIs(t, err, ErrInternal)
	if Classify(err).Message != "internal server error" {
		t.Fatal("internal detail must not reach the client message")
	}
}

func TestWorksWithMemoryStore(t *testing.T) {
	clock := newTestClock()
	store := revocation.NewMemoryStore(revocation.WithClock(clock.Now), revocation.WithSweepInterval(0))
	t.Cleanup(store.Close)

	mgr, err := New().
		WithConfig(testConfig()).
		WithRevocationStore(store).
		WithUserStore(newMockUserStore()).
		WithHasher(newTestHasher(t)).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer mgr.Close()

	ctx := context.Background()
	_ = mgr.Signup(ctx, validSignup("a@b.co"))
	pair, err := mgr.Login(ctx, "a@b.co", "correct horse battery")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := mgr.Reissue(ctx, "a@b.co", pair.RefreshToken); err != nil {
		t.Fatalf("Reissue: %v", err)
	}
	if err := mgr.Logout(ctx, "a@b.co", pair.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	assertErrIs(t, mgr.Logout(ctx, "a@b.co", ""), ErrRefreshTokenNotFound)
}

func TestBuildRejectsWeakSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = []byte(testSecret[:31])

	_, err := New().WithConfig(cfg).WithRevocationStore(revocation.NewMemoryStore(revocation.WithSweepInterval(0))).WithUserStore(newMockUserStore()).Build()
	if !errors.Is(err, token.ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
}

func TestBuildRequiresCollaborators(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithUserStore(newMockUserStore()).Build(); err == nil {
		t.Fatal("expected error without a revocation store")
	}

	store := revocation.NewMemoryStore(revocation.WithSweepInterval(0))
	defer store.Close()
	if _, err := New().WithConfig(testConfig()).WithRevocationStore(store).Build(); err == nil {
		t.Fatal("expected error without a user store")
	}

	b := New().WithConfig(testConfig()).WithRevocationStore(store).WithUserStore(newMockUserStore()).WithHasher(newTestHasher(t))
	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer m.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}
}

func TestBuilderDoesNotAliasSecret(t *testing.T) {
	secret := []byte(testSecret)
	env := newTestEnv(t, func(c *Config) { c.JWT.Secret = secret })
	pair := env.signupAndLogin(t, "a@b.co")

	secret[0] = 'X'
	if _, err := env.mgr.Authenticate(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("mutating the caller's secret must not affect the manager: %v", err)
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.mgr.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	env.mr.Close()
	assertErrIs(t, env.mgr.Ready(context.Background()), ErrStoreUnavailable)
}

func TestReadyChecksUserStore(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.failErr = context.DeadlineExceeded
	assertErrIs(t, env.mgr.Ready(context.Background()), ErrStoreUnavailable)
}
