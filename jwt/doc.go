// Package jwt mints and verifies the signed access tokens issued by the
// hosted identity backend. Tokens carry the account ID as subject and the
// session handle as sid; validation is strict about algorithm, expiry, and
// the configured issuer and audience.
package jwt
