package memoauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/memoauth/password"
	"github.com/MrEthical07/memoauth/revocation"
	"github.com/MrEthical07/memoauth/token"
)

// Manager runs the session lifecycle: signup, login, refresh-token rotation,
// logout and per-request authentication. It is safe for concurrent use.
//
// Per subject, at most one refresh token is live. Concurrent logins for the
// same subject race and the last write wins; the losing refresh token simply
// stops working.
type Manager struct {
	cfg       Config
	codec     *token.Codec
	store     revocation.Store
	swapper   revocation.Swapper
	users     UserStore
	hasher    password.Hasher
	dummyHash string
	logger    *slog.Logger
	metrics   *Metrics
	audit     *auditDispatcher
	now       func() time.Time
}

// Signup creates an account. It has no token side effects.
func (m *Manager) Signup(ctx context.Context, req SignupRequest) error {
	req = normalizeSignup(req)
	err := m.signup(ctx, req)
	m.emitAudit(ctx, AuditSignup, req.Email, err, nil)
	return err
}

func (m *Manager) signup(ctx context.Context, req SignupRequest) error {
	if err := validateSignup(req); err != nil {
		m.metrics.Inc(MetricSignupRejected)
		return err
	}

	exists, err := m.userExists(ctx, req.Email)
	if err != nil {
		return err
	}
	if exists {
		m.metrics.Inc(MetricSignupDuplicate)
		return ErrEmailAlreadyExists
	}

	if req.Password != req.PasswordConfirm {
		m.metrics.Inc(MetricSignupRejected)
		return ErrPasswordConfirmMismatch
	}

	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		m.metrics.Inc(MetricSignupRejected)
		if errors.Is(err, password.ErrTooLong) || errors.Is(err, password.ErrEmpty) {
			return fmt.Errorf("%w: %v", ErrIllegalArgument, err)
		}
		return m.internal(ctx, "hash password", err)
	}

	user := User{
		Email:        req.Email,
		PasswordHash: hash,
		Nickname:     req.Nickname,
		BirthDate:    req.BirthDate,
		CreatedAt:    m.now().UTC(),
	}
	if err := m.saveUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			m.metrics.Inc(MetricSignupDuplicate)
		}
		return err
	}

	m.metrics.Inc(MetricSignupSuccess)
	return nil
}

// Login checks credentials and starts a session, replacing any refresh token
// the subject already had.
//
// In DisclosureStrict mode an unknown email and a wrong password both return
// ErrInvalidCredentials, and both paths run one password verification.
func (m *Manager) Login(ctx context.Context, email, plaintext string) (TokenPair, error) {
	email = strings.TrimSpace(email)
	pair, reason, err := m.login(ctx, email, plaintext)

	var md map[string]string
	if reason != nil {
		md = map[string]string{"reason": reason.Code}
	}
	m.emitAudit(ctx, AuditLogin, email, err, md)
	return pair, err
}

// login returns the undisclosed failure reason alongside the error the
// caller is allowed to see.
func (m *Manager) login(ctx context.Context, email, plaintext string) (TokenPair, *Error, error) {
	if email == "" {
		return TokenPair{}, nil, ErrMissingEmail
	}
	if plaintext == "" {
		return TokenPair{}, nil, ErrMissingPassword
	}

	user, found, err := m.findUser(ctx, email)
	if err != nil {
		return TokenPair{}, nil, err
	}

	hash := m.dummyHash
	if found {
		hash = user.PasswordHash
	}
	ok, verr := m.hasher.Verify(plaintext, hash)
	if verr != nil && found {
		m.logger.ErrorContext(ctx, "stored password hash is unreadable", slog.String("email", email), slog.Any("error", verr))
	}

	var reason *Error
	switch {
	case !found:
		reason = ErrEmailNotFound
	case !ok || verr != nil:
		reason = ErrPasswordMismatch
	}
	if reason != nil {
		m.metrics.Inc(MetricLoginFailure)
		if m.cfg.Login.Disclosure == DisclosureVerbose {
			return TokenPair{}, reason, reason
		}
		return TokenPair{}, reason, ErrInvalidCredentials
	}

	pair, err := m.issuePair(ctx, email)
	if err != nil {
		return TokenPair{}, nil, err
	}

	sctx, cancel := m.bound(ctx)
	err = m.store.Set(sctx, revocation.RefreshKey(email), pair.RefreshToken, m.cfg.JWT.RefreshTTL)
	cancel()
	if err != nil {
		return TokenPair{}, nil, m.storeErr(ctx, "store refresh token", err)
	}

	m.metrics.Inc(MetricLoginSuccess)
	return pair, nil, nil
}

// Reissue rotates the subject's refresh token. Checks run in a fixed order:
// unknown email, no stored token, stored token differs from the presented one,
// presented token fails verification. On success the presented token is
// superseded and can never be reissued again.
func (m *Manager) Reissue(ctx context.Context, email, presented string) (TokenPair, error) {
	email = strings.TrimSpace(email)
	pair, err := m.reissue(ctx, email, presented)
	m.emitAudit(ctx, AuditReissue, email, err, nil)
	return pair, err
}

func (m *Manager) reissue(ctx context.Context, email, presented string) (TokenPair, error) {
	if email == "" {
		return TokenPair{}, ErrMissingEmail
	}
	if presented == "" {
		return TokenPair{}, ErrMissingRefreshToken
	}

	exists, err := m.userExists(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}
	if !exists {
		m.metrics.Inc(MetricReissueFailure)
		return TokenPair{}, ErrEmailNotFound
	}

	key := revocation.RefreshKey(email)

	sctx, cancel := m.bound(ctx)
	stored, found, err := m.store.Get(sctx, key)
	cancel()
	if err != nil {
		return TokenPair{}, m.storeErr(ctx, "load refresh token", err)
	}
	if !found {
		m.metrics.Inc(MetricReissueFailure)
		return TokenPair{}, ErrRefreshTokenNotFound
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		m.metrics.Inc(MetricReissueMismatch)
		return TokenPair{}, ErrRefreshTokenMismatch
	}

	claims, err := m.codec.ParseUse(presented, token.UseRefresh)
	if err != nil {
		m.metrics.Inc(MetricReissueFailure)
		m.logger.DebugContext(ctx, "refresh token rejected", slog.String("email", email), slog.Any("error", err))
		return TokenPair{}, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	if claims.Subject != email {
		m.metrics.Inc(MetricReissueFailure)
		m.logger.WarnContext(ctx, "refresh token subject differs from stored key", slog.String("email", email))
		return TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := m.issuePair(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}

	sctx, cancel = m.bound(ctx)
	defer cancel()

	if m.swapper != nil {
		swapped, err := m.swapper.CompareAndSwap(sctx, key, stored, pair.RefreshToken, m.cfg.JWT.RefreshTTL)
		if errors.Is(err, revocation.ErrNotFound) {
			// Expired or logged out since the read above.
			m.metrics.Inc(MetricReissueFailure)
			return TokenPair{}, ErrRefreshTokenNotFound
		}
		if err != nil {
			return TokenPair{}, m.storeErr(ctx, "rotate refresh token", err)
		}
		if !swapped {
			// Another reissue or a logout got there first.
			m.metrics.Inc(MetricReissueMismatch)
			return TokenPair{}, ErrRefreshTokenMismatch
		}
	} else if err := m.store.Set(sctx, key, pair.RefreshToken, m.cfg.JWT.RefreshTTL); err != nil {
		return TokenPair{}, m.storeErr(ctx, "rotate refresh token", err)
	}

	m.metrics.Inc(MetricReissueSuccess)
	return pair, nil
}

// Logout ends the subject's session. The refresh token is deleted first; only
// when that succeeds and LogoutConfig.BlacklistAccessToken is set is a
// non-empty accessToken revoked for the rest of its lifetime. A failed logout
// writes nothing. Logging out twice fails with ErrRefreshTokenNotFound.
func (m *Manager) Logout(ctx context.Context, email, accessToken string) error {
	email = strings.TrimSpace(email)
	err := m.logout(ctx, email, accessToken)
	m.emitAudit(ctx, AuditLogout, email, err, nil)
	return err
}

func (m *Manager) logout(ctx context.Context, email, accessToken string) error {
	if email == "" {
		return ErrMissingEmail
	}

	sctx, cancel := m.bound(ctx)
	existed, err := m.store.Delete(sctx, revocation.RefreshKey(email))
	cancel()
	if err != nil {
		return m.storeErr(ctx, "delete refresh token", err)
	}
	if !existed {
		m.metrics.Inc(MetricLogoutNotFound)
		return ErrRefreshTokenNotFound
	}

	if m.cfg.Logout.BlacklistAccessToken && accessToken != "" {
		// RT is already gone here; a blacklist failure surfaces as
		// ErrStoreUnavailable and the access token lives until expiry.
		if err := m.blacklist(ctx, accessToken); err != nil {
			return err
		}
	}

	m.metrics.Inc(MetricLogout)
	return nil
}

func (m *Manager) blacklist(ctx context.Context, accessToken string) error {
	remaining, err := m.codec.RemainingValidity(accessToken)
	if err != nil {
		// A forged or malformed token can never authenticate, so there is
		// nothing to revoke.
		m.logger.DebugContext(ctx, "skipping blacklist of unverifiable token", slog.Any("error", err))
		return nil
	}
	if remaining <= 0 {
		return nil
	}

	sctx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.store.Set(sctx, revocation.BlacklistKey(accessToken), revocation.BlacklistValue, remaining); err != nil {
		return m.storeErr(ctx, "blacklist access token", err)
	}
	return nil
}

type pinger interface {
	Ping(context.Context) error
}

// Ready reports whether the revocation and user stores answer. Stores without
// a Ping method are assumed ready.
func (m *Manager) Ready(ctx context.Context) error {
	if p, ok := m.store.(pinger); ok {
		sctx, cancel := m.bound(ctx)
		err := p.Ping(sctx)
		cancel()
		if err != nil {
			return m.storeErr(ctx, "ping revocation store", err)
		}
	}
	if p, ok := m.users.(pinger); ok {
		sctx, cancel := m.bound(ctx)
		err := p.Ping(sctx)
		cancel()
		if err != nil {
			return m.storeErr(ctx, "ping user store", err)
		}
	}
	return nil
}

// MetricsSnapshot returns a copy of the manager's counters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// Close flushes pending audit events. The stores are owned by the caller.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.audit.Close()
}

func (m *Manager) issuePair(ctx context.Context, email string) (TokenPair, error) {
	now := m.now()

	access, err := m.codec.Issue(email, m.cfg.JWT.AccessTTL)
	if err != nil {
		return TokenPair{}, m.internal(ctx, "issue access token", err)
	}
	refresh, err := m.codec.IssueRefresh(email, m.cfg.JWT.RefreshTTL)
	if err != nil {
		return TokenPair{}, m.internal(ctx, "issue refresh token", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  time.UnixMilli(now.Add(m.cfg.JWT.AccessTTL).UnixMilli()),
		RefreshExpiresAt: time.UnixMilli(now.Add(m.cfg.JWT.RefreshTTL).UnixMilli()),
	}, nil
}

func (m *Manager) findUser(ctx context.Context, email string) (User, bool, error) {
	sctx, cancel := m.bound(ctx)
	defer cancel()
	u, found, err := m.users.FindUserByEmail(sctx, email)
	if err != nil {
		return User{}, false, m.storeErr(ctx, "find user", err)
	}
	return u, found, nil
}

func (m *Manager) userExists(ctx context.Context, email string) (bool, error) {
	sctx, cancel := m.bound(ctx)
	defer cancel()
	ok, err := m.users.UserExists(sctx, email)
	if err != nil {
		return false, m.storeErr(ctx, "check user", err)
	}
	return ok, nil
}

func (m *Manager) saveUser(ctx context.Context, u User) error {
	sctx, cancel := m.bound(ctx)
	defer cancel()
	if err := m.users.SaveUser(sctx, u); err != nil {
		return m.storeErr(ctx, "save user", err)
	}
	return nil
}

func (m *Manager) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, m.cfg.Store.Timeout)
}

// storeErr keeps classified errors as they are, turns timeouts and outages
// into ErrStoreUnavailable and everything else into ErrInternal.
func (m *Manager) storeErr(ctx context.Context, op string, err error) error {
	var classified *Error
	if errors.As(err, &classified) && classified != ErrInternal {
		if classified == ErrStoreUnavailable {
			m.metrics.Inc(MetricStoreUnavailable)
			m.logger.WarnContext(ctx, "store unavailable", slog.String("op", op), slog.Any("error", err))
		}
		return err
	}
	if errors.Is(err, revocation.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		m.metrics.Inc(MetricStoreUnavailable)
		m.logger.WarnContext(ctx, "store unavailable", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return m.internal(ctx, op, err)
}

func (m *Manager) internal(ctx context.Context, op string, err error) error {
	m.logger.ErrorContext(ctx, "internal error", slog.String("op", op), slog.Any("error", err))
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}
