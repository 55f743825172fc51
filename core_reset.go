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

// RequestPasswordReset opens a reset challenge for identifier. Unknown
// identifiers return a success-shaped result so the operation cannot be
// used to enumerate accounts; only throttle and backend failures surface.
// A repeat request supersedes the earlier token.
func (c *Core) RequestPasswordReset(ctx context.Context, identifier string) (*ResetRequest, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := c.checkResetThrottle(ctx, identifier); err != nil {
		return nil, err
	}

	identity, err := c.identity.Lookup(ctx, identifier)
	if err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(mapped, ErrNotFound) {
			c.emit(ctx, "reset.request", "", false, mapped)
			return &ResetRequest{}, nil
		}
		return nil, mapped
	}

	token, expires, err := c.resets.Issue(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	c.metrics.resetIssued()

	out := &ResetRequest{ExpiresAt: expires}
	if c.mailer != nil {
		err := c.mailer.Send(ctx, mail.Message{
			To:       identifier,
			Subject:  c.config.Reset.EmailSubject,
			TextBody: "Your password reset token is: " + token,
		})
		if err != nil {
			// The token stays redeemable; the user can retry the request
			// and get a superseding one.
			c.logger.Warn("reset delivery failed", zap.Error(err))
			c.emit(ctx, "reset.delivery", identity.ID, false, err)
			return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		out.Delivered = true
	} else {
		out.Token = token
	}

	c.emit(ctx, "reset.request", identity.ID, true, nil)
	c.metrics.op("request_reset", resultSuccess)
	return out, nil
}

// ConfirmPasswordReset redeems a reset token and installs the new password.
// The token is single use: concurrent confirmations have exactly one
// winner, and the winner's password write is the only one that happens.
func (c *Core) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := c.ready(); err != nil {
		return err
	}

	userID, err := c.resets.Redeem(ctx, token)
	if err != nil {
		c.emit(ctx, "reset.confirm", "", false, err)
		c.metrics.op("confirm_reset", resultFailure)
		return err
	}

	if err := c.identity.SetPassword(ctx, userID, newPassword); err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(err, password.ErrPolicy) {
			mapped = fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		c.emit(ctx, "reset.confirm", userID, false, mapped)
		c.metrics.op("confirm_reset", resultFailure)
		return mapped
	}

	c.emit(ctx, "reset.confirm", userID, true, nil)
	c.metrics.op("confirm_reset", resultSuccess)
	return nil
}

func (c *Core) checkResetThrottle(ctx context.Context, identifier string) error {
	subject := c.throttleSubject(ctx, identifier)
	if err := c.resetLimiter.Check(ctx, "reset", subject); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			c.metrics.op("request_reset", resultRateLimited)
			return ErrRateLimited
		}
		return ErrProviderUnavailable
	}
	if err := c.resetLimiter.RecordFailure(ctx, "reset", subject); err != nil && !errors.Is(err, rate.ErrLimited) {
		return ErrProviderUnavailable
	}
	return nil
}
