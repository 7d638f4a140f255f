package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/memoauth"
	"github.com/MrEthical07/memoauth/middleware"
	"github.com/google/uuid"
)

const defaultMaxBodyBytes = 1 << 16

// Service is the part of *memoauth.Manager the HTTP layer calls.
type Service interface {
	Signup(ctx context.Context, req memoauth.SignupRequest) error
	Login(ctx context.Context, email, password string) (memoauth.TokenPair, error)
	Reissue(ctx context.Context, email, refreshToken string) (memoauth.TokenPair, error)
	Logout(ctx context.Context, email, accessToken string) error
	Authenticate(ctx context.Context, accessToken string) (*memoauth.Identity, error)
	Ready(ctx context.Context) error
}

// Handler serves the /auth endpoints.
type Handler struct {
	svc          Service
	log          *slog.Logger
	maxBodyBytes int64
	metrics      http.Handler
}

// Option configures optional Handler dependencies.
type Option func(*Handler)

func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMaxBodyBytes caps request bodies. Non-positive values keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(metrics http.Handler) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

func NewHandler(svc Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("httpapi: nil service")
	}
	h := &Handler{
		svc:          svc,
		log:          slog.New(slog.DiscardHandler),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Routes returns the full route table wrapped in request-ID tagging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return h.withRequestID(mux)
}

// Register wires the endpoints onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	authn := middleware.Authenticate(h.svc, h.writeError)

	requireAuth := func(next http.HandlerFunc) http.Handler {
		return authn(middleware.RequireAuth(h.writeError)(next))
	}

	mux.HandleFunc("POST /auth/signup", h.handleSignup)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/reissue", h.handleReissue)
	mux.Handle("POST /auth/logout", requireAuth(h.handleLogout))
	mux.Handle("GET /auth/me", requireAuth(h.handleMe))
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &body, false); err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := body.toDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.svc.Signup(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, messageResponse{Message: "signup completed"})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &body, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	pair, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

func (h *Handler) handleReissue(w http.ResponseWriter, r *http.Request) {
	var body reissueRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &body, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	pair, err := h.svc.Reissue(r.Context(), body.Email, body.RefreshToken)
	if err != nil {
		// An unknown subject is a missing resource on this endpoint.
		h.writeErrorOverride(w, r, err, memoauth.ErrEmailNotFound, http.StatusNotFound)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, newTokenResponse(pair))
}

// handleLogout ends the session of the authenticated identity only. A body
// email is optional and must name that identity. The bearer token is passed on
// for blacklisting.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body logoutRequest
	if err := decodeJSON(w, r, h.maxBodyBytes, &body, true); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, _ := memoauth.IdentityFromContext(r.Context())
	if email := strings.TrimSpace(body.Email); email != "" && email != id.Email {
		h.writeError(w, r, memoauth.ErrIllegalArgument)
		return
	}

	err := h.svc.Logout(r.Context(), id.Email, memoauth.AccessTokenFromContext(r.Context()))
	if err != nil {
		h.writeErrorOverride(w, r, err, memoauth.ErrRefreshTokenNotFound, http.StatusNotFound)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "logout completed"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := memoauth.IdentityFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, meResponse{
		Email:     id.Email,
		ExpiresAt: id.ExpiresAt.UnixMilli(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// ---- errors ----

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := memoauth.Classify(err)
	h.writeClassified(w, r, err, e, e.Status)
}

// writeErrorOverride answers target with status instead of its default.
func (h *Handler) writeErrorOverride(w http.ResponseWriter, r *http.Request, err error, target *memoauth.Error, status int) {
	e := memoauth.Classify(err)
	if e != target {
		status = e.Status
	}
	h.writeClassified(w, r, err, e, status)
}

func (h *Handler) writeClassified(w http.ResponseWriter, r *http.Request, err error, e *memoauth.Error, status int) {
	attrs := []any{
		slog.String("request_id", memoauth.RequestIDFromContext(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("code", e.Code),
		slog.Any("err", err),
	}
	switch e.Kind {
	case memoauth.KindInternal:
		h.log.ErrorContext(r.Context(), "httpapi.request.fail", attrs...)
	case memoauth.KindTransient:
		h.log.WarnContext(r.Context(), "httpapi.request.unavailable", attrs...)
	default:
		h.log.DebugContext(r.Context(), "httpapi.request.rejected", attrs...)
	}
	middleware.WriteErrorStatus(w, status, e.Message)
}

// ---- request IDs ----

const requestIDHeader = "X-Request-ID"

func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(memoauth.WithRequestID(r.Context(), id)))
	})
}
