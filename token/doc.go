// Package token issues and verifies the signed credentials that carry a
// subject between requests.
//
// Tokens are HS256 JWTs. Expiry is tracked at millisecond resolution in the
// exp_ms claim and is exclusive: a token whose expiry equals the current
// instant is already expired. The registered exp claim is still written,
// rounded up to the next whole second, so generic JWT tooling keeps working.
package token
