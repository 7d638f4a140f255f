package memoauth

import (
	"context"
	"testing"
	"time"
)

func TestAuthenticateValidToken(t *testing.T) {
	env := newTestEnv(t, nil)
	pair := env.signupAndLogin(t, "a@b.co")

	id, err := env.mgr.Authenticate(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Email != "a@b.co" {
		t.Fatalf("expected subject a@b.co, got %q", id.Email)
	}
	if id.TokenID == "" {
		t.Fatal("expected a token id")
	}
	if !id.ExpiresAt.Equal(pair.AccessExpiresAt) {
		t.Fatalf("identity expiry %v differs from issued %v", id.ExpiresAt, pair.AccessExpiresAt)
	}
}

func TestAuthenticateExpiryScenario(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.JWT.AccessTTL = 1000 * time.Millisecond })
	pair := env.signupAndLogin(t, "a@b.co")
	ctx := context.Background()

	env.clock.Advance(500 * time.Millisecond)
	if _, err := env.mgr.Authenticate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("token must be valid at 500ms: %v", err)
	}

	env.clock.Advance(499 * time.Millisecond)
	if _, err := env.mgr.Authenticate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("token must be valid at 999ms: %v", err)
	}

	env.clock.Advance(time.Millisecond)
	_, err := env.mgr.Authenticate(ctx, pair.AccessToken)
	assertErrIs(t, err, ErrInvalidToken)

	env.clock.Advance(500 * time.Millisecond)
	_, err = env.mgr.Authenticate(ctx, pair.AccessToken)
	assertErrIs(t, err, ErrInvalidToken)
	if HTTPStatus(err) != 401 {
		t.Fatalf("expected 401, got %d", HTTPStatus(err))
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	pair := env.signupAndLogin(t, "a@b.co")

	_, err := env.mgr.Authenticate(context.Background(), pair.RefreshToken)
	assertErrIs(t, err, ErrInvalidToken)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, tok := range []string{"", "abc", "a.b.c"} {
		_, err := env.mgr.Authenticate(context.Background(), tok)
		assertErrIs(t, err, ErrInvalidToken)
	}
}

func TestAuthenticateBlacklistWinsOverExpiry(t *testing.T) {
	env := newTestEnv(t, nil)
	pair := env.signupAndLogin(t, "a@b.co")

	_ = env.mr.Set("BL:"+pair.AccessToken, "logout")
	env.clock.Advance(2 * time.Hour)

	_, err := env.mgr.Authenticate(context.Background(), pair.AccessToken)
	assertErrIs(t, err, ErrTokenBlacklisted)
}

func TestAuthenticateMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	pair := env.signupAndLogin(t, "a@b.co")
	ctx := context.Background()

	_, _ = env.mgr.Authenticate(ctx, pair.AccessToken)
	_, _ = env.mgr.Authenticate(ctx, "junk")

	snap := env.mgr.MetricsSnapshot()
	if snap.Counters[MetricAuthenticateSuccess] != 1 || snap.Counters[MetricAuthenticateFailure] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}

	var total uint64
	for _, n := range snap.Histograms[MetricAuthenticateLatency] {
		total += n
	}
	if total != 2 {
		t.Fatalf("expected 2 latency observations, got %d", total)
	}
}
