package authbridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MrEthical07/authbridge/internal/rate"
	"github.com/MrEthical07/authbridge/mail"
	"github.com/MrEthical07/authbridge/password"
)

// Register creates an account. When the backend leaves confirmation code
// delivery to us and a mailer is configured, the code is emailed to the
// identifier; without a mailer it comes back in the result for the caller
// to deliver.
func (c *Core) Register(ctx context.Context, identifier, pass string, attrs map[string]string) (*RegistrationResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := c.checkRegisterThrottle(ctx); err != nil {
		return nil, err
	}

	res, err := c.identity.SignUp(ctx, identifier, pass, attrs)
	if err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(err, password.ErrPolicy) {
			mapped = fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		c.emit(ctx, "register", "", false, mapped)
		c.metrics.op("register", resultFailure)
		return nil, mapped
	}

	out := &RegistrationResult{
		Identity:  *userIdentity(&res.Identity),
		Confirmed: res.Confirmed,
	}

	if res.ConfirmationCode != "" {
		if c.mailer != nil {
			if err := c.sendConfirmationCode(ctx, identifier, res.ConfirmationCode); err != nil {
				// The account and code stay valid; the caller can resend.
				c.logger.Warn("confirmation delivery failed", zap.Error(err))
				c.emit(ctx, "register.delivery", res.Identity.ID, false, err)
			} else {
				out.CodeDelivered = true
			}
		} else {
			out.ConfirmationCode = res.ConfirmationCode
		}
	}

	c.emit(ctx, "register", res.Identity.ID, true, nil)
	c.metrics.op("register", resultSuccess)
	return out, nil
}

// ConfirmRegistration redeems a confirmation code, activating the account.
func (c *Core) ConfirmRegistration(ctx context.Context, identifier, code string) error {
	if err := c.ready(); err != nil {
		return err
	}

	if err := c.identity.ConfirmSignUp(ctx, identifier, code); err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "register.confirm", "", false, mapped)
		c.metrics.op("confirm_registration", resultFailure)
		return mapped
	}

	c.emit(ctx, "register.confirm", "", true, nil)
	c.metrics.op("confirm_registration", resultSuccess)
	return nil
}

// ResendConfirmation issues a replacement confirmation code for an
// unconfirmed account, superseding the previous one. Backends that own
// delivery resend natively; otherwise the code is mailed or returned the
// same way Register handles it.
func (c *Core) ResendConfirmation(ctx context.Context, identifier string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	reissuer, ok := c.identity.(interface {
		ReissueConfirmation(ctx context.Context, identifier string) (string, error)
	})
	if !ok {
		// Managed backends deliver confirmation codes themselves; there is
		// nothing for us to resend.
		return "", nil
	}

	code, err := reissuer.ReissueConfirmation(ctx, identifier)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "register.resend", "", false, mapped)
		return "", mapped
	}

	if c.mailer != nil {
		if err := c.sendConfirmationCode(ctx, identifier, code); err != nil {
			c.logger.Warn("confirmation delivery failed", zap.Error(err))
			return "", fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		c.emit(ctx, "register.resend", "", true, nil)
		return "", nil
	}

	c.emit(ctx, "register.resend", "", true, nil)
	return code, nil
}

// ChangePassword replaces the password after re-verifying the current one.
// Sessions are left alive; use Logout to end them.
func (c *Core) ChangePassword(ctx context.Context, identifier, currentPassword, newPassword string) error {
	if err := c.ready(); err != nil {
		return err
	}

	identity, err := c.identity.VerifyCredentials(ctx, identifier, currentPassword)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "password.change", "", false, mapped)
		c.metrics.op("change_password", resultFailure)
		return mapped
	}

	if err := c.identity.SetPassword(ctx, identity.ID, newPassword); err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(err, password.ErrPolicy) {
			mapped = fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		c.emit(ctx, "password.change", identity.ID, false, mapped)
		c.metrics.op("change_password", resultFailure)
		return mapped
	}

	c.emit(ctx, "password.change", identity.ID, true, nil)
	c.metrics.op("change_password", resultSuccess)
	return nil
}

// UpdateAttributes merges attrs into the account identified by accessToken.
func (c *Core) UpdateAttributes(ctx context.Context, accessToken string, attrs map[string]string) error {
	if err := c.ready(); err != nil {
		return err
	}

	identity, err := c.GetUserInfo(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := c.identity.UpdateAttributes(ctx, identity.ID, attrs); err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "attributes.update", identity.ID, false, mapped)
		return mapped
	}

	c.emit(ctx, "attributes.update", identity.ID, true, nil)
	return nil
}

func (c *Core) sendConfirmationCode(ctx context.Context, identifier, code string) error {
	return c.mailer.Send(ctx, mail.Message{
		To:       identifier,
		Subject:  c.config.Confirmation.EmailSubject,
		TextBody: "Your confirmation code is: " + code,
	})
}

func (c *Core) checkRegisterThrottle(ctx context.Context) error {
	subject := clientIPFromContext(ctx)
	if subject == "" {
		subject = "global"
	}
	if err := c.registerLimiter.Check(ctx, "register", subject); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			c.metrics.op("register", resultRateLimited)
			return ErrRateLimited
		}
		return ErrProviderUnavailable
	}
	// Registration attempts always consume budget; there is no success
	// reset like login has.
	if err := c.registerLimiter.RecordFailure(ctx, "register", subject); err != nil && !errors.Is(err, rate.ErrLimited) {
		return ErrProviderUnavailable
	}
	return nil
}
