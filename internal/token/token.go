// Package token issues and verifies the signed access and refresh tokens.
// Access and refresh tokens are signed with different secrets so a leak of
// one secret does not let an attacker mint the other token class.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrSigning is returned when a token cannot be signed, which only
	// happens when the service is misconfigured (missing secret).
	ErrSigning = errors.New("token signing failed")
	// ErrTokenExpired means the token was well-formed and correctly signed
	// but is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("token invalid")
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultIssuer     = "cafe-backend"
	DefaultAudience   = "cafe-frontend"
)

// Config carries secrets and lifetimes. Zero TTLs and empty issuer/audience
// fall back to the defaults above.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// AccessClaims is the payload of an access token. Permissions is a snapshot
// taken at issuance and may go stale; authorization re-derives it.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// UserID parses the numeric subject.
func (c *AccessClaims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// RefreshClaims is the payload of a refresh token: the subject and the
// registered time claims only.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c *RefreshClaims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// Service signs and verifies tokens with HS256.
type Service struct {
	cfg Config
	now func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock, for both issuance and verification.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service. Missing secrets are not rejected here; signing with
// an empty secret fails with ErrSigning.
func New(cfg Config, opts ...Option) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessTTL reports the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// IssueAccessToken signs claims after stamping issuer, audience, iat, exp
// and a fresh jti. Caller-provided registered claims other than Subject are
// overwritten.
func (s *Service) IssueAccessToken(claims AccessClaims) (string, error) {
	if s.cfg.AccessSecret == "" {
		return "", fmt.Errorf("%w: access secret is not configured", ErrSigning)
	}
	now := s.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.Subject,
		Issuer:    s.cfg.Issuer,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.AccessSecret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// VerifyAccessToken checks signature, algorithm, issuer, audience and expiry.
func (s *Service) VerifyAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	err := s.parse(raw, claims, s.cfg.AccessSecret,
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// IssueRefreshToken signs a subject-only token with the refresh secret.
func (s *Service) IssueRefreshToken(subject string) (string, error) {
	if s.cfg.RefreshSecret == "" {
		return "", fmt.Errorf("%w: refresh secret is not configured", ErrSigning)
	}
	now := s.now().UTC()
	claims := RefreshClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTTL)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// VerifyRefreshToken checks a refresh token against the refresh secret.
func (s *Service) VerifyRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(raw, claims, s.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *Service) parse(raw string, claims jwt.Claims, secret string, extra ...jwt.ParserOption) error {
	if raw == "" || secret == "" {
		return ErrTokenInvalid
	}
	opts := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}, extra...)

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err == nil {
		return nil
	}
	return classify(err)
}

// classify maps library errors onto the two kinds callers distinguish.
// Expiry only wins when nothing else about the token is wrong.
func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
		!errors.Is(err, jwt.ErrTokenInvalidAudience) &&
		!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
		!errors.Is(err, jwt.ErrTokenMalformed) {
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}
