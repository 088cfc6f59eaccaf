package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cafe-backend/internal/apperror"
	"github.com/iliyamo/cafe-backend/internal/model"
	"github.com/iliyamo/cafe-backend/internal/permission"
	"github.com/iliyamo/cafe-backend/internal/repository"
	"github.com/iliyamo/cafe-backend/internal/token"
)

// Context keys set by the gate.
const (
	ClaimsKey      = "claims"
	UserIDKey      = "user_id"
	RoleKey        = "role"
	PermissionsKey = "permissions"
)

// TokenVerifier is implemented by *token.Service.
type TokenVerifier interface {
	VerifyAccessToken(raw string) (*token.AccessClaims, error)
}

// UserLookup loads the live user record for authorization.
type UserLookup interface {
	FindByID(ctx context.Context, id uint64) (*model.User, error)
}

// RevocationChecker reports whether a token ID was revoked on logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Gate authenticates bearer tokens and authorizes requests against the
// permissions of the user's current role. Claims inside the token are
// trusted for identity only; authorization always re-reads the user.
type Gate struct {
	tokens  TokenVerifier
	users   UserLookup
	revoked RevocationChecker
	log     *zap.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithRevocationCheck rejects tokens whose jti has been revoked. Lookup
// failures are logged and the token is accepted.
func WithRevocationCheck(r RevocationChecker) GateOption {
	return func(g *Gate) { g.revoked = r }
}

func NewGate(tokens TokenVerifier, users UserLookup, log *zap.Logger, opts ...GateOption) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gate{tokens: tokens, users: users, log: log}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate requires a valid bearer token and stores its claims on the
// context.
func (g *Gate) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return apperror.Unauthorized()
			}
			claims, err := g.verify(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			setIdentity(c, claims, permission.FromStrings(claims.Permissions))
			return next(c)
		}
	}
}

// OptionalAuth attaches the caller's claims when a valid token is present
// and otherwise lets the request through anonymously.
func (g *Gate) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearerToken(c); ok {
				if claims, err := g.verify(c.Request().Context(), raw); err == nil {
					setIdentity(c, claims, permission.FromStrings(claims.Permissions))
				}
			}
			return next(c)
		}
	}
}

// Authorize passes when the user's live role grants at least one of
// required. It must run after Authenticate.
func (g *Gate) Authorize(required ...permission.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return apperror.Unauthorized()
			}
			id, err := claims.UserID()
			if err != nil {
				return apperror.UserInactiveOrMissing()
			}

			u, err := g.users.FindByID(c.Request().Context(), id)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return apperror.UserInactiveOrMissing()
				}
				g.log.Error("authorization lookup failed", zap.Uint64("user_id", id), zap.Error(err))
				return apperror.AuthError(err)
			}
			if !u.IsActive {
				return apperror.UserInactiveOrMissing()
			}

			live := permission.For(u.Role)
			if !permission.HasAny(live, required...) {
				g.log.Info("permission denied",
					zap.Uint64("user_id", id),
					zap.String("role", string(u.Role)),
					zap.Strings("required", permission.Strings(required)))
				return apperror.Forbidden()
			}
			c.Set(RoleKey, string(u.Role))
			c.Set(PermissionsKey, live)
			return next(c)
		}
	}
}

func (g *Gate) verify(ctx context.Context, raw string) (*token.AccessClaims, error) {
	claims, err := g.tokens.VerifyAccessToken(raw)
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return nil, apperror.TokenExpired()
	case err != nil:
		return nil, apperror.InvalidToken()
	}
	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			g.log.Warn("revocation check failed", zap.Error(err))
		} else if revoked {
			return nil, apperror.InvalidToken()
		}
	}
	return claims, nil
}

func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, raw, ok := strings.Cut(strings.TrimSpace(h), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func setIdentity(c echo.Context, claims *token.AccessClaims, perms []permission.Permission) {
	c.Set(ClaimsKey, claims)
	c.Set(UserIDKey, claims.Subject)
	c.Set(RoleKey, claims.Role)
	c.Set(PermissionsKey, perms)
}

// ClaimsFrom returns the authenticated claims, or nil for anonymous requests.
func ClaimsFrom(c echo.Context) *token.AccessClaims {
	claims, _ := c.Get(ClaimsKey).(*token.AccessClaims)
	return claims
}

// UserIDFrom returns the authenticated user's id.
func UserIDFrom(c echo.Context) (uint64, bool) {
	claims := ClaimsFrom(c)
	if claims == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	return id, err == nil
}

// PermissionsFrom returns the permissions on the context: the token
// snapshot after Authenticate, the live set after Authorize.
func PermissionsFrom(c echo.Context) []permission.Permission {
	perms, _ := c.Get(PermissionsKey).([]permission.Permission)
	return perms
}
