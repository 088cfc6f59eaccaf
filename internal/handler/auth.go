package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cafe-backend/internal/apperror"
	"github.com/iliyamo/cafe-backend/internal/middleware"
	"github.com/iliyamo/cafe-backend/internal/service"
	"github.com/iliyamo/cafe-backend/internal/token"
)

// Accounts is implemented by *service.Accounts.
type Accounts interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, claims *token.AccessClaims)
	Profile(ctx context.Context, userID uint64) (*service.Profile, error)
}

// AuthHandler serves /auth.
type AuthHandler struct {
	accounts Accounts
}

func NewAuthHandler(accounts Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// Register: POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.accounts.Register(ctx, in)
	if err != nil {
		return err
	}
	return created(c, res, "Account created successfully")
}

// Login: POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.accounts.Login(ctx, in)
	if err != nil {
		return err
	}
	return ok(c, res, "Login successful")
}

// Refresh: POST /auth/refresh. Returns a new access token only.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	access, err := h.accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, map[string]string{"token": access}, "Token refreshed successfully")
}

// Logout: POST /auth/logout. Always succeeds; a presented token is revoked
// when revocation is enabled.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	h.accounts.Logout(ctx, middleware.ClaimsFrom(c))
	return ok(c, nil, "Logged out successfully")
}

// Profile: GET /auth/profile
func (h *AuthHandler) Profile(c echo.Context) error {
	id, found := middleware.UserIDFrom(c)
	if !found {
		return apperror.Unauthorized()
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.accounts.Profile(ctx, id)
	if err != nil {
		return err
	}
	return ok(c, p, "")
}
