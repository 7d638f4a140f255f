// Package revocation holds the short-lived, revocable half of session state:
// the single live refresh token per subject and the access-token blacklist.
//
// # Keys
//
//	RT:<email>        current refresh token, TTL = refresh token lifetime
//	BL:<accessToken>  "logout", TTL = remaining access token validity
//
// Blacklist entries are never deleted explicitly; they age out with the token
// they shadow.
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Decide whether a stored value is acceptable; callers compare.
package revocation
