package memoauth

import "context"

type identityContextKey struct{}
type accessTokenContextKey struct{}

// WithIdentity binds id to ctx. middleware.Authenticate calls it after a
// token checks out.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity bound by WithIdentity. Anonymous
// requests report false.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// WithAccessToken keeps the raw bearer token so logout can blacklist it.
func WithAccessToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey{}, tok)
}

// AccessTokenFromContext returns the bearer token stored by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tok, _ := ctx.Value(accessTokenContextKey{}).(string)
	return tok
}

type requestIDContextKey struct{}

// WithRequestID tags ctx so audit events can be correlated with access logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
