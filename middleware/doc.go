// Package middleware adapts memoauth.Manager to net/http.
//
// # Guards
//
//   - [Authenticate]: resolves an optional bearer token and binds the identity
//     to the request context.
//   - [RequireAuth]: rejects requests that reached it anonymously.
//
// A request without an Authorization header, or with one that is not of the
// form "Bearer <token>", is passed on as anonymous. A request that does
// present a token but fails verification is answered with a JSON error.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Manager.Authenticate).
//   - Access Redis.
//   - Make authorization decisions beyond anonymous versus authenticated.
package middleware
