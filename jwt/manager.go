package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm for minted access tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key.
	MethodEd25519 SigningMethod = "ed25519"
)

// ErrInvalidToken is returned by Parse for any token that fails signature,
// shape, or registered-claim validation.
var ErrInvalidToken = errors.New("jwt: invalid token")

// Config carries the signing material and claim policy for a Manager.
// For HS256 only Key is required; for Ed25519 Key holds the private key
// (raw 64-byte or PEM) and PublicKey the verification key.
type Config struct {
	SigningMethod SigningMethod
	Key           []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	Leeway        time.Duration
}

// Claims is the access-token payload: the account ID as subject plus the
// session handle the token was minted under. Revocation and refresh both key
// off SID, so a rotated session invalidates every token it issued.
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager mints and parses signed access tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	cfg Config
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("jwt: access TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: leeway out of range")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Key) == 0 {
			return nil, errors.New("jwt: hs256 requires a key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.Key); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("jwt: unsupported signing method")
	}
	return &Manager{cfg: cfg}, nil
}

// Mint signs a fresh access token for subject under session sid and reports
// its expiry.
func (m *Manager) Mint(subject, sid string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.cfg.AccessTTL)

	claims := Claims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	if m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	token := jwt.NewWithClaims(m.method(), claims)
	key, err := m.signKey()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse validates signature, algorithm, expiry, and issuer/audience when
// configured, and returns the claims.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.cfg.Leeway))
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}
	if m.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.cfg.Audience))
	}

	parser := jwt.NewParser(opts...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.SID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Expired reports whether err came from an expired but otherwise valid token.
func Expired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (m *Manager) method() jwt.SigningMethod {
	if m.cfg.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (m *Manager) signKey() (interface{}, error) {
	if m.cfg.SigningMethod == MethodHS256 {
		return m.cfg.Key, nil
	}
	return parseEdPrivateKey(m.cfg.Key)
}

func (m *Manager) verifyKey() (interface{}, error) {
	if m.cfg.SigningMethod == MethodHS256 {
		return m.cfg.Key, nil
	}
	return parseEdPublicKey(m.cfg.PublicKey)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("jwt: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: invalid ed25519 public key type")
	}
	return edKey, nil
}
