// Package password implements password hashing and verification with
// Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Hasher] supports transparent parameter upgrades: when a stored hash
// was produced with weaker parameters, [Hasher.NeedsUpgrade] reports true so
// callers can re-hash after the next successful verification.
//
// The package owns hashing, verification, and the byte-length policy.
// Callers supply plaintext and receive hashes; nothing here stores,
// retrieves, or logs password material.
package password
