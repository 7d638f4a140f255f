// Package password hashes and verifies user passwords.
//
// Two adaptive hashers are provided behind [Hasher]: bcrypt (the default) and
// Argon2id. Argon2id hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Policy (minimum length, reuse) is the caller's concern. Plaintext never
// leaves this package and is never logged.
package password
