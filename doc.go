// Package memoauth authenticates users of the memo service and keeps their
// session state between requests.
//
// A [Manager], built with [Builder], owns the token lifecycle: [Manager.Signup]
// creates accounts, [Manager.Login] issues an access/refresh pair,
// [Manager.Reissue] rotates the refresh token, [Manager.Logout] revokes the
// session and [Manager.Authenticate] resolves a bearer token on every request.
//
// # State
//
// Access tokens are self-contained HS256 JWTs. Revocable state lives in a
// [revocation.Store]: one refresh token per subject under RT:<email>, and
// blacklisted access tokens under BL:<token>. User records live behind
// [UserStore].
//
// # Errors
//
// Every returned error classifies into a [Kind] through [Classify]. The
// attached [Error.Message] is safe to show to clients; wrapped detail is not.
//
// # What this package must NOT do
//
//   - Expose which credential check failed when Disclosure is strict.
//   - Log plaintext passwords or raw tokens.
package memoauth
