package authbridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestResetFlowChangesPassword(t *testing.T) {
	env := newTestCore(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	req, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if req.Token == "" {
		t.Fatal("expected token in result without mailer")
	}
	if req.ExpiresAt.IsZero() {
		t.Fatal("expected expiry to be set")
	}

	if err := env.core.ConfirmPasswordReset(ctx, req.Token, testNewPassword); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	if _, err := env.core.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	loginTokens(t, env, "alice@example.com", testNewPassword)
}

func TestResetUnknownIdentifierShapedLikeSuccess(t *testing.T) {
	env := newTestCore(t, DefaultConfig())

	req, err := env.core.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected success-shaped result, got %v", err)
	}
	if req.Token != "" || req.Delivered {
		t.Fatalf("expected empty result for unknown identifier, got %+v", req)
	}
}

func TestResetUnknownIdentifierSendsNoMail(t *testing.T) {
	env := newTestCoreWithMailer(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")
	before := len(env.mailer.Sent())

	req, err := env.core.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("expected success-shaped result, got %v", err)
	}
	if req.Token != "" || req.Delivered {
		t.Fatalf("expected empty result for unknown identifier, got %+v", req)
	}
	if got := len(env.mailer.Sent()); got != before {
		t.Fatalf("expected no mail for unknown identifier, got %d new", got-before)
	}
}

func TestResetTokenSingleUse(t *testing.T) {
	env := newTestCore(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	req, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if err := env.core.ConfirmPasswordReset(ctx, req.Token, testNewPassword); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	err = env.core.ConfirmPasswordReset(ctx, req.Token, "yet-another-pass-789")
	if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("expected consumed token rejected, got %v", err)
	}
}

func TestResetConcurrentConfirmSingleWinner(t *testing.T) {
	env := newTestCore(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")

	req, err := env.core.RequestPasswordReset(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	const racers = 8
	var wg sync.WaitGroup
	var wins sync.Map
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := env.core.ConfirmPasswordReset(context.Background(), req.Token, testNewPassword); err == nil {
				wins.Store(i, struct{}{})
			}
		}(i)
	}
	wg.Wait()

	won := 0
	wins.Range(func(_, _ any) bool { won++; return true })
	if won != 1 {
		t.Fatalf("expected exactly one confirm winner, got %d", won)
	}
}

func TestResetRequestSupersedesEarlierToken(t *testing.T) {
	env := newTestCore(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	first, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	second, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}

	if err := env.core.ConfirmPasswordReset(ctx, first.Token, testNewPassword); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}
	if err := env.core.ConfirmPasswordReset(ctx, second.Token, testNewPassword); err != nil {
		t.Fatalf("confirm with live token: %v", err)
	}
}

func TestResetAttemptBudgetDestroysToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reset.MaxAttempts = 3
	env := newTestCore(t, cfg)
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	req, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}

	// Same ID, wrong secret: flip a character in the secret half.
	forged := forgeTokenSecret(t, req.Token)

	for i := 0; i < 2; i++ {
		if err := env.core.ConfirmPasswordReset(ctx, forged, testNewPassword); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("attempt %d: expected ErrInvalidToken, got %v", i, err)
		}
	}
	if err := env.core.ConfirmPasswordReset(ctx, forged, testNewPassword); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}

	// The real token died with the budget.
	if err := env.core.ConfirmPasswordReset(ctx, req.Token, testNewPassword); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected destroyed token rejected, got %v", err)
	}
}

func TestResetMailedToken(t *testing.T) {
	env := newTestCoreWithMailer(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	req, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if !req.Delivered || req.Token != "" {
		t.Fatalf("expected mailed delivery without token in result, got %+v", req)
	}

	sent := env.mailer.Sent()
	// Registration mailed the confirmation code first.
	if len(sent) != 2 {
		t.Fatalf("expected two mails, got %d", len(sent))
	}
	token := strings.TrimPrefix(sent[1].TextBody, "Your password reset token is: ")
	if err := env.core.ConfirmPasswordReset(ctx, token, testNewPassword); err != nil {
		t.Fatalf("confirm with mailed token: %v", err)
	}
}

func TestResetMailerFailureSurfaces(t *testing.T) {
	env := newTestCoreWithMailer(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")
	env.mailer.FailWith(errors.New("smtp down"))

	_, err := env.core.RequestPasswordReset(context.Background(), "alice@example.com")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestResetThrottle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.ResetMaxAttempts = 2
	env := newTestCore(t, cfg)
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := env.core.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if _, err := env.core.RequestPasswordReset(ctx, "alice@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestResetNewPasswordPolicy(t *testing.T) {
	env := newTestCore(t, DefaultConfig())
	registerConfirmed(t, env, "alice@example.com")

	ctx := context.Background()
	req, err := env.core.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if err := env.core.ConfirmPasswordReset(ctx, req.Token, "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}
