package authbridge

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	cachemem "github.com/MrEthical07/authbridge/cache/memory"
	"github.com/MrEthical07/authbridge/jwt"
	"github.com/MrEthical07/authbridge/mail"
	"github.com/MrEthical07/authbridge/password"
	"github.com/MrEthical07/authbridge/provider/hosted"
	storemem "github.com/MrEthical07/authbridge/store/memory"
)

const (
	testPassword    = "correct-password-123"
	testNewPassword = "another-password-456"
)

type testEnv struct {
	core   *Core
	cache  *cachemem.Cache
	mailer *recordingMailer
}

type buildOption func(*Builder)

func withMailer(m *recordingMailer) buildOption {
	return func(b *Builder) { b.WithMailer(m) }
}

func withSink(sink AuditSink) buildOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

// newTestCore wires a Core over the in-memory cache and the hosted provider.
// The provider shares the Core's cache instance; key prefixes keep them
// apart, the same way a shared Redis database would.
func newTestCore(t *testing.T, cfg Config, opts ...buildOption) *testEnv {
	t.Helper()
	return newTestCoreHosted(t, cfg, hosted.Config{}, opts...)
}

func newTestCoreHosted(t *testing.T, cfg Config, hcfg hosted.Config, opts ...buildOption) *testEnv {
	t.Helper()

	c := cachemem.New()
	hasher, err := password.New(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
		MinLength:   10,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.MethodHS256,
		Key:           []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "test",
		AccessTTL:     time.Minute,
	})
	if err != nil {
		t.Fatalf("new jwt manager: %v", err)
	}
	idp, err := hosted.New(hcfg, storemem.New(), hasher, tokens, c)
	if err != nil {
		t.Fatalf("new hosted provider: %v", err)
	}

	builder := New().
		WithConfig(cfg).
		WithCache(c).
		WithProvider(idp)
	for _, opt := range opts {
		opt(builder)
	}

	core, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(core.Close)

	return &testEnv{core: core, cache: c}
}

func newTestCoreWithMailer(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	mailer := &recordingMailer{}
	env := newTestCore(t, cfg, withMailer(mailer))
	env.mailer = mailer
	return env
}

// registerConfirmed creates and activates an account, returning its user ID.
func registerConfirmed(t *testing.T, env *testEnv, identifier string) string {
	t.Helper()
	ctx := context.Background()

	res, err := env.core.Register(ctx, identifier, testPassword, map[string]string{"name": "Jane"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	code := res.ConfirmationCode
	if code == "" && env.mailer != nil {
		sent := env.mailer.Sent()
		if len(sent) == 0 {
			t.Fatal("expected a mailed confirmation code")
		}
		code = strings.TrimPrefix(sent[len(sent)-1].TextBody, "Your confirmation code is: ")
	}
	if code == "" {
		t.Fatal("no confirmation code available")
	}
	if err := env.core.ConfirmRegistration(ctx, identifier, code); err != nil {
		t.Fatalf("confirm registration: %v", err)
	}
	return res.Identity.ID
}

// forgeTokenSecret keeps a token's ID half and corrupts its secret half.
func forgeTokenSecret(t *testing.T, token string) string {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	return base64.RawURLEncoding.EncodeToString(raw)
}

func loginTokens(t *testing.T, env *testEnv, identifier, pass string) *SessionTokens {
	t.Helper()
	res, err := env.core.Login(context.Background(), identifier, pass)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.MFARequired || res.Tokens == nil {
		t.Fatalf("expected plain token login, got %+v", res)
	}
	return res.Tokens
}

// recordingMailer captures outbound messages and can be switched to fail.
type recordingMailer struct {
	mu      sync.Mutex
	sent    []mail.Message
	failErr error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *recordingMailer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}
