package authbridge

import "time"

// MFAKind names a second-factor method.
type MFAKind string

const (
	// MFANone means no second factor is enrolled.
	MFANone MFAKind = ""
	// MFATotp is an authenticator-app time-based code.
	MFATotp MFAKind = "totp"
	// MFASms is a code delivered to a verified phone number.
	MFASms MFAKind = "sms"
)

// UserIdentity is the backend-neutral view of an account returned by
// GetUserInfo and embedded in flow results.
type UserIdentity struct {
	ID         string
	Identifier string
	Confirmed  bool
	MFAKind    MFAKind
	Attributes map[string]string
}

// SessionTokens is one issued session. Both tokens are opaque; ExpiresAt is
// the access token's deadline, after which RefreshSession rotates the pair.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// RegistrationResult reports a completed Register call. ConfirmationCode is
// non-empty only when the backend left delivery to the caller and no mailer
// is configured; when a mailer is wired the code travels by email instead
// and CodeDelivered is true.
type RegistrationResult struct {
	Identity         UserIdentity
	Confirmed        bool
	CodeDelivered    bool
	ConfirmationCode string
}

// LoginResult is the outcome of a credential check. Exactly one of Tokens
// and ChallengeToken is set: when the account has a second factor enrolled,
// Tokens stays nil and the caller must come back through
// VerifyMFAChallenge with ChallengeToken plus the user's code.
type LoginResult struct {
	Tokens *SessionTokens

	MFARequired    bool
	MFAKind        MFAKind
	ChallengeToken string

	// DeliveryCode carries the SMS challenge code when no delivery channel
	// is configured and the caller owns sending it. Empty for TOTP.
	DeliveryCode string
}

// ResetRequest reports a password reset initiation. Token is non-empty only
// when no mailer is configured and the caller owns delivery.
type ResetRequest struct {
	Delivered bool
	Token     string
	ExpiresAt time.Time
}

// TOTPEnrollment is a pending authenticator-app enrollment. The secret and
// URI go to the user's authenticator; ConfirmTOTPEnrollment with a valid
// code activates the factor.
type TOTPEnrollment struct {
	Secret       string
	ProvisionURI string
	ExpiresAt    time.Time
}

// SMSEnrollment is a pending SMS factor enrollment. Code is non-empty when
// the caller owns delivery to the phone number.
type SMSEnrollment struct {
	PhoneNumber string
	Code        string
	ExpiresAt   time.Time
}

// SocialLoginIntent is the redirect handed back by InitiateSocialLogin. The
// caller sends the user to AuthorizeURL and must present State unchanged
// when the callback returns.
type SocialLoginIntent struct {
	AuthorizeURL string
	State        string
}

// SocialClaims are the verified assertions from a social backend.
type SocialClaims struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// SocialLoginResult is the outcome of redeeming a social authorization
// code. When Linked is true the claims matched a local account and Tokens
// holds a full session; otherwise Tokens is nil and the caller decides
// whether to register the claims as a new account.
type SocialLoginResult struct {
	Claims SocialClaims
	Linked bool
	Tokens *SessionTokens
}
