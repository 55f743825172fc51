package authbridge

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"github.com/MrEthical07/authbridge/internal"
	"github.com/MrEthical07/authbridge/provider"
)

// openChallenge starts the second leg of an MFA login. The password has
// already been verified; the caller gets a challenge token and, for SMS,
// the code to deliver.
func (c *Core) openChallenge(ctx context.Context, identity *provider.Identity) (*LoginResult, error) {
	kind := MFAKind(identity.MFAKind)

	var smsCode string
	if kind == MFASms {
		code, err := internal.NewNumericCode(c.config.MFA.Digits)
		if err != nil {
			return nil, err
		}
		smsCode = code
	}

	token, err := c.challenges.CreateChallenge(ctx, identity.ID, kind, smsCode)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		MFARequired:    true,
		MFAKind:        kind,
		ChallengeToken: token,
		DeliveryCode:   smsCode,
	}, nil
}

// VerifyMFAChallenge completes an MFA login. Wrong codes burn the
// challenge's attempt budget; once spent every later presentation reports
// ErrTooManyAttempts, correct code included, and the user must log in
// again. A correct code consumes the challenge atomically, so of two
// concurrent presentations only one gets tokens.
func (c *Core) VerifyMFAChallenge(ctx context.Context, challengeToken, code string) (*SessionTokens, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	chal, id, err := c.challenges.GetChallenge(ctx, challengeToken)
	if err != nil {
		c.metrics.mfaChallenge(MFANone, resultFailure)
		return nil, err
	}

	ok, err := c.checkChallengeCode(ctx, chal, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		failErr := c.challenges.RecordFailure(ctx, id)
		c.emit(ctx, "mfa.verify", chal.UserID, false, failErr)
		c.metrics.mfaChallenge(chal.Kind, resultFailure)
		return nil, failErr
	}

	won, err := c.challenges.ConsumeChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrAlreadyConsumed
	}

	tokens, err := c.identity.IssueTokens(ctx, chal.UserID)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "mfa.verify", chal.UserID, false, mapped)
		return nil, mapped
	}

	c.emit(ctx, "mfa.verify", chal.UserID, true, nil)
	c.metrics.mfaChallenge(chal.Kind, resultSuccess)
	c.metrics.op("login", resultSuccess)
	c.metrics.sessionIssued()
	return sessionTokens(tokens), nil
}

func (c *Core) checkChallengeCode(ctx context.Context, chal *mfaChallenge, code string) (bool, error) {
	switch chal.Kind {
	case MFASms:
		digest := sha256.Sum256([]byte(code))
		return subtle.ConstantTimeCompare(chal.CodeHash, digest[:]) == 1, nil
	case MFATotp:
		_, secretB32, err := c.identity.MFASecret(ctx, chal.UserID)
		if err != nil {
			return false, mapProviderErr(err)
		}
		secret, err := c.totp.DecodeSecret(secretB32)
		if err != nil {
			return false, ErrMFANotEnrolled
		}
		ok, _, err := c.totp.VerifyCode(secret, code, time.Now())
		if err != nil {
			return false, err
		}
		return ok, nil
	default:
		return false, ErrMFANotEnrolled
	}
}

// BeginTOTPEnrollment opens an authenticator-app enrollment for the session
// behind accessToken. The factor is not active until a code is confirmed.
func (c *Core) BeginTOTPEnrollment(ctx context.Context, accessToken string) (*TOTPEnrollment, error) {
	identity, err := c.requireNoFactor(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	_, secretB32, err := c.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	pending := &pendingEnrollment{Kind: MFATotp, Secret: secretB32}
	if err := c.challenges.SavePending(ctx, identity.ID, pending); err != nil {
		return nil, err
	}

	c.emit(ctx, "mfa.enroll.totp", identity.ID, true, nil)
	return &TOTPEnrollment{
		Secret:       secretB32,
		ProvisionURI: c.totp.ProvisionURI(secretB32, identity.Identifier),
		ExpiresAt:    pending.ExpiresAt,
	}, nil
}

// ConfirmTOTPEnrollment activates the pending authenticator factor once the
// user proves the app generates valid codes.
func (c *Core) ConfirmTOTPEnrollment(ctx context.Context, accessToken, code string) error {
	identity, err := c.authedIdentity(ctx, accessToken)
	if err != nil {
		return err
	}

	pending, err := c.challenges.GetPending(ctx, identity.ID)
	if err != nil {
		return err
	}
	if pending.Kind != MFATotp {
		return ErrMFANotEnrolled
	}

	secret, err := c.totp.DecodeSecret(pending.Secret)
	if err != nil {
		return ErrInvalidCode
	}
	ok, _, err := c.totp.VerifyCode(secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		c.emit(ctx, "mfa.enroll.totp.confirm", identity.ID, false, ErrInvalidCode)
		return ErrInvalidCode
	}

	if err := c.identity.SetMFA(ctx, identity.ID, string(MFATotp), pending.Secret); err != nil {
		return mapProviderErr(err)
	}
	c.challenges.DeletePending(ctx, identity.ID)

	c.emit(ctx, "mfa.enroll.totp.confirm", identity.ID, true, nil)
	c.metrics.op("enroll_totp", resultSuccess)
	return nil
}

// BeginSMSEnrollment opens an SMS factor enrollment against the account's
// verified phone attribute. The returned code must reach the phone through
// a channel the caller owns; this library has no SMS transport.
func (c *Core) BeginSMSEnrollment(ctx context.Context, accessToken string) (*SMSEnrollment, error) {
	identity, err := c.requireNoFactor(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	phone := identity.Attributes[c.config.MFA.PhoneAttribute]
	if phone == "" || identity.Attributes[c.config.MFA.PhoneVerifiedAttribute] != "true" {
		return nil, ErrPhoneNotVerified
	}

	code, err := internal.NewNumericCode(c.config.MFA.Digits)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(code))

	pending := &pendingEnrollment{Kind: MFASms, Secret: phone, CodeHash: digest[:]}
	if err := c.challenges.SavePending(ctx, identity.ID, pending); err != nil {
		return nil, err
	}

	c.emit(ctx, "mfa.enroll.sms", identity.ID, true, nil)
	return &SMSEnrollment{
		PhoneNumber: phone,
		Code:        code,
		ExpiresAt:   pending.ExpiresAt,
	}, nil
}

// ConfirmSMSEnrollment activates the pending SMS factor.
func (c *Core) ConfirmSMSEnrollment(ctx context.Context, accessToken, code string) error {
	identity, err := c.authedIdentity(ctx, accessToken)
	if err != nil {
		return err
	}

	pending, err := c.challenges.GetPending(ctx, identity.ID)
	if err != nil {
		return err
	}
	if pending.Kind != MFASms {
		return ErrMFANotEnrolled
	}

	digest := sha256.Sum256([]byte(code))
	if subtle.ConstantTimeCompare(pending.CodeHash, digest[:]) != 1 {
		c.emit(ctx, "mfa.enroll.sms.confirm", identity.ID, false, ErrInvalidCode)
		return ErrInvalidCode
	}

	if err := c.identity.SetMFA(ctx, identity.ID, string(MFASms), pending.Secret); err != nil {
		return mapProviderErr(err)
	}
	c.challenges.DeletePending(ctx, identity.ID)

	c.emit(ctx, "mfa.enroll.sms.confirm", identity.ID, true, nil)
	c.metrics.op("enroll_sms", resultSuccess)
	return nil
}

// DisableMFA removes the active factor. A TOTP factor additionally demands
// a current code so a hijacked session cannot silently strip it; SMS has no
// code we can demand without a delivery channel, so the session suffices.
func (c *Core) DisableMFA(ctx context.Context, accessToken, code string) error {
	identity, err := c.authedIdentity(ctx, accessToken)
	if err != nil {
		return err
	}
	if identity.MFAKind == MFANone {
		return ErrMFANotEnrolled
	}

	if identity.MFAKind == MFATotp {
		_, secretB32, err := c.identity.MFASecret(ctx, identity.ID)
		if err != nil {
			return mapProviderErr(err)
		}
		secret, err := c.totp.DecodeSecret(secretB32)
		if err != nil {
			return ErrMFANotEnrolled
		}
		ok, _, err := c.totp.VerifyCode(secret, code, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			c.emit(ctx, "mfa.disable", identity.ID, false, ErrInvalidCode)
			return ErrInvalidCode
		}
	}

	if err := c.identity.SetMFA(ctx, identity.ID, "", ""); err != nil {
		return mapProviderErr(err)
	}

	c.emit(ctx, "mfa.disable", identity.ID, true, nil)
	c.metrics.op("disable_mfa", resultSuccess)
	return nil
}

func (c *Core) authedIdentity(ctx context.Context, accessToken string) (*UserIdentity, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.GetUserInfo(ctx, accessToken)
}

func (c *Core) requireNoFactor(ctx context.Context, accessToken string) (*UserIdentity, error) {
	identity, err := c.authedIdentity(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if identity.MFAKind != MFANone {
		return nil, ErrMFAAlreadyEnabled
	}
	return identity, nil
}
