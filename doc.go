// Package authbridge is an authentication orchestration core: one API for
// registration, login, MFA, password reset, session lifecycle, and social
// sign-in, over interchangeable identity backends.
//
// The [Core] owns no credential storage. Accounts live behind a
// [provider.IdentityProvider] (the in-tree hosted implementation or a wrapper
// over a managed identity service), social sign-in behind registered
// [provider.SocialProvider] adapters, and every ephemeral artifact (reset
// tokens, MFA challenges, state nonces, throttle counters, the revoked-token
// denylist) in a [cache.Cache]. Swapping a backend never changes a caller.
//
// # Architecture boundaries
//
// authbridge is the public surface. It exposes [Core], [Builder], [Config],
// and value types (LoginResult, SessionTokens, SocialClaims, etc.). Backend
// error types never cross this boundary; adapters fold them onto the sentinel
// errors in this package and in provider.
//
// # Concurrency contract
//
// Core methods are safe to call from multiple goroutines after
// [Builder.Build]. Single-use artifacts (refresh tokens, reset tokens, MFA
// challenges, state nonces) are consumed atomically: under concurrent
// presentation exactly one caller wins and the rest get a terminal error.
package authbridge
