// Package service holds the account flows: registration, login, token
// refresh, logout and profile lookup. Handlers stay thin; everything that
// decides an outcome lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/iliyamo/cafe-backend/internal/apperror"
	"github.com/iliyamo/cafe-backend/internal/model"
	"github.com/iliyamo/cafe-backend/internal/permission"
	"github.com/iliyamo/cafe-backend/internal/repository"
	"github.com/iliyamo/cafe-backend/internal/token"
	"github.com/iliyamo/cafe-backend/internal/validation"
)

// UserStore is the slice of the credential store the flows need.
type UserStore interface {
	Create(ctx context.Context, nu model.NewUser) (*model.User, error)
	Verify(ctx context.Context, u *model.User, plaintext string) bool
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	Addresses(ctx context.Context, userID uint64) ([]model.Address, error)
	FavoriteItems(ctx context.Context, userID uint64) ([]model.FavoriteItem, error)
}

// TokenIssuer is implemented by *token.Service.
type TokenIssuer interface {
	IssueAccessToken(claims token.AccessClaims) (string, error)
	IssueRefreshToken(subject string) (string, error)
	VerifyRefreshToken(raw string) (*token.RefreshClaims, error)
}

// Revoker denylists access tokens on logout.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

// eventTimeout bounds a single background event publish.
const eventTimeout = 5 * time.Second

// AccountEvents receives notifications about account lifecycle changes.
type AccountEvents interface {
	UserRegistered(ctx context.Context, u *model.User) error
}

// RegisterInput is the registration request body.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,maxbytes=72,password"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
	Phone     string `json:"phone" validate:"omitempty,phone"`
}

func (RegisterInput) ValidationMessages() map[string]string {
	return map[string]string{
		"password.required":  "Password must be at least 8 characters long",
		"password.maxbytes":  "Password must be at most 72 bytes",
		"firstName.required": "First name is required",
		"firstName.max":      "First name must be less than 50 characters",
		"lastName.required":  "Last name is required",
		"lastName.max":       "Last name must be less than 50 characters",
	}
}

// LoginInput is the login request body.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (LoginInput) ValidationMessages() map[string]string {
	return map[string]string{"password.required": "Password is required"}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         *model.User `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
}

// Preferences groups the profile's preference fields.
type Preferences struct {
	DietaryRestrictions []string             `json:"dietaryRestrictions"`
	FavoriteItems       []model.FavoriteItem `json:"favoriteItems"`
}

// Profile is the authenticated user's own view of their account.
type Profile struct {
	ID          uint64          `json:"id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Phone       string          `json:"phone,omitempty"`
	Role        permission.Role `json:"role"`
	Preferences Preferences     `json:"preferences"`
	Addresses   []model.Address `json:"addresses"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Accounts implements the account flows.
type Accounts struct {
	users     UserStore
	tokens    TokenIssuer
	validator *validation.Validator
	log       *zap.Logger

	revoker Revoker
	events  AccountEvents
	pending sync.WaitGroup
}

// AccountsOption configures optional collaborators.
type AccountsOption func(*Accounts)

// WithRevoker enables access token revocation on logout.
func WithRevoker(r Revoker) AccountsOption {
	return func(a *Accounts) { a.revoker = r }
}

// WithEvents publishes account events after successful writes.
func WithEvents(e AccountEvents) AccountsOption {
	return func(a *Accounts) { a.events = e }
}

func NewAccounts(users UserStore, tokens TokenIssuer, v *validation.Validator, log *zap.Logger, opts ...AccountsOption) *Accounts {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Accounts{users: users, tokens: tokens, validator: v, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register creates a customer account and signs the caller in.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := a.validator.Validate(&in); err != nil {
		return nil, err
	}

	_, err := a.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, apperror.EmailExists()
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, apperror.Internal(fmt.Errorf("lookup email: %w", err))
	}

	u, err := a.users.Create(ctx, model.NewUser{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: capitalize(in.FirstName),
		LastName:  capitalize(in.LastName),
		Phone:     in.Phone,
		Role:      permission.RoleCustomer,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperror.EmailExists()
		}
		return nil, apperror.Internal(fmt.Errorf("create user: %w", err))
	}

	res, err := a.signIn(u)
	if err != nil {
		return nil, err
	}
	a.log.Info("user registered", zap.Uint64("user_id", u.ID), zap.String("role", string(u.Role)))

	if a.events != nil {
		a.pending.Add(1)
		go a.publishRegistered(context.WithoutCancel(ctx), *u)
	}
	return res, nil
}

// publishRegistered runs off the request path; a slow or unreachable broker
// only delays the event.
func (a *Accounts) publishRegistered(ctx context.Context, u model.User) {
	defer a.pending.Done()
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()
	if err := a.events.UserRegistered(ctx, &u); err != nil {
		a.log.Warn("publish user.registered failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
}

// Wait blocks until background event publishes have finished.
func (a *Accounts) Wait() {
	a.pending.Wait()
}

// Login checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *Accounts) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = repository.NormalizeEmail(in.Email)
	if err := a.validator.Validate(&in); err != nil {
		return nil, err
	}

	u, err := a.users.FindByEmail(ctx, in.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.Internal(fmt.Errorf("lookup email: %w", err))
	}
	// u is nil for unknown emails; Verify still spends a bcrypt comparison.
	ok := a.users.Verify(ctx, u, in.Password)
	if u == nil || !ok {
		a.log.Info("login rejected", zap.String("reason", "invalid_credentials"))
		return nil, apperror.InvalidCredentials()
	}
	if !u.IsActive {
		a.log.Info("login rejected", zap.Uint64("user_id", u.ID), zap.String("reason", "inactive"))
		return nil, apperror.AccountInactive()
	}
	return a.signIn(u)
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func (a *Accounts) Refresh(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperror.RefreshTokenRequired()
	}
	claims, err := a.tokens.VerifyRefreshToken(raw)
	if err != nil {
		return "", apperror.InvalidRefreshToken().Wrap(err)
	}
	id, err := claims.UserID()
	if err != nil {
		return "", apperror.InvalidRefreshToken().Wrap(err)
	}

	u, err := a.users.FindByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return "", apperror.Internal(fmt.Errorf("lookup user: %w", err))
	}
	if u == nil || !u.IsActive {
		e := apperror.InvalidRefreshToken()
		e.Message = "Invalid refresh token"
		return "", e
	}
	return a.issueAccess(u)
}

// Logout cannot fail. When a revoker is configured the presented access
// token is denylisted until it expires; revocation errors are only logged.
func (a *Accounts) Logout(ctx context.Context, claims *token.AccessClaims) {
	if claims == nil || a.revoker == nil || claims.ExpiresAt == nil {
		return
	}
	if err := a.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		a.log.Warn("token revocation failed", zap.String("user_id", claims.Subject), zap.Error(err))
	}
}

// Profile returns the user's account details, preferences and addresses.
func (a *Accounts) Profile(ctx context.Context, userID uint64) (*Profile, error) {
	u, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.UserNotFound()
		}
		return nil, apperror.Internal(fmt.Errorf("lookup user: %w", err))
	}
	addrs, err := a.users.Addresses(ctx, u.ID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load addresses: %w", err))
	}
	favs, err := a.users.FavoriteItems(ctx, u.ID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load favorites: %w", err))
	}
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		Role:      u.Role,
		Preferences: Preferences{
			DietaryRestrictions: u.DietaryRestrictions,
			FavoriteItems:       favs,
		},
		Addresses: addrs,
		CreatedAt: u.CreatedAt,
	}, nil
}

func (a *Accounts) signIn(u *model.User) (*AuthResult, error) {
	access, err := a.issueAccess(u)
	if err != nil {
		return nil, err
	}
	refresh, err := a.tokens.IssueRefreshToken(subject(u))
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("issue refresh token: %w", err))
	}
	return &AuthResult{User: u, Token: access, RefreshToken: refresh}, nil
}

func (a *Accounts) issueAccess(u *model.User) (string, error) {
	claims := token.AccessClaims{
		Email:       u.Email,
		Role:        string(u.Role),
		Permissions: permission.Strings(permission.For(u.Role)),
	}
	claims.Subject = subject(u)
	access, err := a.tokens.IssueAccessToken(claims)
	if err != nil {
		return "", apperror.Internal(fmt.Errorf("issue access token: %w", err))
	}
	return access, nil
}

func subject(u *model.User) string { return strconv.FormatUint(u.ID, 10) }

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
