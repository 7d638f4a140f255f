package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/memoauth"
)

// Authenticator resolves a bearer token. *memoauth.Manager implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*memoauth.Identity, error)
}

// ErrorWriter renders a rejected request. A nil ErrorWriter means WriteError.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticate returns middleware that verifies an optional bearer token.
//
// Missing or malformed headers leave the request anonymous. A blacklisted or
// invalid token is rejected with 401; a store outage with 503. On success the
// identity and the raw token are stored in the request context.
func Authenticate(a Authenticator, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if a == nil {
				onError(w, r, memoauth.ErrUnauthenticated)
				return
			}

			id, err := a.Authenticate(r.Context(), token)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := memoauth.WithIdentity(r.Context(), id)
			ctx = memoauth.WithAccessToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a bound identity. It must run after
// Authenticate.
func RequireAuth(onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := memoauth.IdentityFromContext(r.Context()); !ok {
				onError(w, r, memoauth.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, err)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}
