package authbridge

import "errors"

// Every operation maps backend-specific failures onto this taxonomy before
// returning; callers branch with errors.Is and never see driver errors.
var (
	// ErrCoreNotReady is returned when an operation runs against a nil or
	// incompletely built Core.
	ErrCoreNotReady = errors.New("core not initialized")
	// ErrAlreadyExists is returned by Register when the identifier is taken.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrNotFound is returned when the referenced account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrInvalidCredentials covers both a wrong password and an unknown
	// identifier, indistinguishably.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotConfirmed is returned when the account has not completed
	// registration confirmation.
	ErrNotConfirmed = errors.New("account not confirmed")
	// ErrInvalidCode is returned on a wrong confirmation, reset, or
	// challenge code.
	ErrInvalidCode = errors.New("invalid code")
	// ErrExpired is returned when a code, challenge, or token passed its
	// deadline.
	ErrExpired = errors.New("expired")
	// ErrAlreadyConsumed is returned when a single-use artifact is presented
	// a second time.
	ErrAlreadyConsumed = errors.New("already consumed")
	// ErrTooManyAttempts is returned when a challenge's attempt budget is
	// spent; the challenge is dead and a new one must be requested.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrMFANotEnrolled is returned by challenge and disable operations when
	// the account has no second factor.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")
	// ErrMFAAlreadyEnabled is returned by enrollment when a factor is active.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrPhoneNotVerified is returned by SMS enrollment when the account has
	// no verified phone attribute.
	ErrPhoneNotVerified = errors.New("phone number not verified")
	// ErrInvalidToken is returned on a malformed or unverifiable token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrRevoked is returned when a session token was rotated away, revoked,
	// or replayed.
	ErrRevoked = errors.New("token revoked")
	// ErrStateMismatch is returned when a social callback's state is
	// unknown, already used, or expired.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrUnknownProvider is returned when no social provider is registered
	// under the requested name.
	ErrUnknownProvider = errors.New("unknown social provider")
	// ErrPasswordPolicy is returned when a candidate password fails policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRateLimited is returned when an operation's throttle budget is
	// spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable is returned on backend transport failure.
	// Retryable.
	ErrProviderUnavailable = errors.New("identity backend unavailable")
	// ErrProviderRejected is returned when a backend refuses an otherwise
	// well-formed request.
	ErrProviderRejected = errors.New("rejected by identity backend")
	// ErrDeliveryFailed is returned when an outbound notification could not
	// be sent. The underlying artifact stays valid.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)
