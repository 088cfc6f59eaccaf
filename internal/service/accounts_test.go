package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/cafe-backend/internal/apperror"
	"github.com/iliyamo/cafe-backend/internal/model"
	"github.com/iliyamo/cafe-backend/internal/permission"
	"github.com/iliyamo/cafe-backend/internal/repository"
	"github.com/iliyamo/cafe-backend/internal/token"
	"github.com/iliyamo/cafe-backend/internal/validation"
)

// memStore is an in-memory UserStore that enforces email uniqueness on
// insert the way the unique index does.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
	failOn error
}

func newMemStore() *memStore { return &memStore{users: map[uint64]*model.User{}} }

func (m *memStore) Create(_ context.Context, nu model.NewUser) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == nu.Email {
			return nil, repository.ErrEmailExists
		}
	}
	m.nextID++
	u := &model.User{
		ID: m.nextID, Email: nu.Email, FirstName: nu.FirstName, LastName: nu.LastName,
		Phone: nu.Phone, PasswordHash: "hashed:" + nu.Password, Role: nu.Role, IsActive: true,
		DietaryRestrictions: []string{}, CreatedAt: time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) Verify(_ context.Context, u *model.User, plaintext string) bool {
	return u != nil && u.PasswordHash == "hashed:"+plaintext
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return nil, m.failOn
	}
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) FindByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) Addresses(context.Context, uint64) ([]model.Address, error) {
	return []model.Address{{ID: 1, Type: model.AddressHome, City: "Springfield", IsDefault: true}}, nil
}

func (m *memStore) FavoriteItems(context.Context, uint64) ([]model.FavoriteItem, error) {
	return []model.FavoriteItem{{ID: 3, Name: "Latte", Price: 4.5}}, nil
}

func (m *memStore) deactivate(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id].IsActive = false
}

type recordingRevoker struct {
	jtis []string
	err  error
}

func (r *recordingRevoker) Revoke(_ context.Context, jti string, _ time.Time) error {
	r.jtis = append(r.jtis, jti)
	return r.err
}

type recordingEvents struct {
	mu    sync.Mutex
	users []uint64
	err   error
}

func (e *recordingEvents) UserRegistered(_ context.Context, u *model.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.users = append(e.users, u.ID)
	return e.err
}

func newAccounts(t *testing.T, opts ...AccountsOption) (*Accounts, *memStore, *token.Service) {
	t.Helper()
	store := newMemStore()
	tokens := token.New(token.Config{AccessSecret: "a-secret", RefreshSecret: "r-secret"})
	return NewAccounts(store, tokens, validation.New(), zap.NewNop(), opts...), store, tokens
}

func validRegister() RegisterInput {
	return RegisterInput{Email: "A@B.com", Password: "Abc12345!", FirstName: "jOHN", LastName: "doe"}
}

func requireCode(t *testing.T, err error, code string) *apperror.Error {
	t.Helper()
	ae, ok := apperror.As(err)
	require.True(t, ok, "expected *apperror.Error, got %v", err)
	require.Equal(t, code, ae.Code)
	return ae
}

func TestRegister(t *testing.T) {
	events := &recordingEvents{}
	acc, _, tokens := newAccounts(t, WithEvents(events))

	res, err := acc.Register(context.Background(), validRegister())
	require.NoError(t, err)
	acc.Wait()

	assert.Equal(t, "a@b.com", res.User.Email)
	assert.Equal(t, "John", res.User.FirstName)
	assert.Equal(t, "Doe", res.User.LastName)
	assert.Equal(t, permission.RoleCustomer, res.User.Role)
	assert.Equal(t, []uint64{res.User.ID}, events.users)

	claims, err := tokens.VerifyAccessToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, "customer", claims.Role)
	assert.ElementsMatch(t, permission.Strings(permission.For(permission.RoleCustomer)), claims.Permissions)

	rc, err := tokens.VerifyRefreshToken(res.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, claims.Subject, rc.Subject)
}

func TestRegister_EventFailureIsNotFatal(t *testing.T) {
	acc, _, _ := newAccounts(t, WithEvents(&recordingEvents{err: errors.New("broker down")}))
	_, err := acc.Register(context.Background(), validRegister())
	assert.NoError(t, err)
	acc.Wait()
}

// blockingEvents holds every publish until release is closed.
type blockingEvents struct {
	release chan struct{}
	done    chan error
}

func (e *blockingEvents) UserRegistered(ctx context.Context, _ *model.User) error {
	select {
	case <-e.release:
	case <-ctx.Done():
	}
	e.done <- ctx.Err()
	return ctx.Err()
}

func TestRegister_DoesNotWaitForEvents(t *testing.T) {
	events := &blockingEvents{release: make(chan struct{}), done: make(chan error, 1)}
	acc, _, _ := newAccounts(t, WithEvents(events))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := acc.Register(ctx, validRegister())
	require.NoError(t, err)
	// the request finishing must not abort the publish
	cancel()

	select {
	case <-events.done:
		t.Fatal("publish finished before it was released")
	case <-time.After(20 * time.Millisecond):
	}

	close(events.release)
	acc.Wait()
	assert.NoError(t, <-events.done)
}

func TestRegister_Validation(t *testing.T) {
	acc, _, _ := newAccounts(t)

	tests := []struct {
		name  string
		mut   func(*RegisterInput)
		field string
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *RegisterInput) { in.Password = "Ab1!" }, "password"},
		{"no symbol", func(in *RegisterInput) { in.Password = "Abc123456" }, "password"},
		{"blank first name", func(in *RegisterInput) { in.FirstName = "   " }, "firstName"},
		{"long last name", func(in *RegisterInput) { in.LastName = strings.Repeat("a", 51) }, "lastName"},
		{"bad phone", func(in *RegisterInput) { in.Phone = "phone" }, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRegister()
			tt.mut(&in)
			_, err := acc.Register(context.Background(), in)
			ae := requireCode(t, err, apperror.CodeValidation)
			var fields []string
			for _, d := range ae.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	acc, store, _ := newAccounts(t)
	in := validRegister()
	in.Password = "Abc12345!" + strings.Repeat("x", 76)

	_, err := acc.Register(context.Background(), in)
	ae := requireCode(t, err, apperror.CodeValidation)
	assert.Equal(t, 400, ae.Status)
	require.Len(t, ae.Details, 1)
	assert.Equal(t, "password", ae.Details[0].Field)
	assert.Equal(t, "Password must be at most 72 bytes", ae.Details[0].Message)
	assert.Empty(t, store.users)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	acc, _, _ := newAccounts(t)
	_, err := acc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	in := validRegister()
	in.Email = "a@B.COM"
	_, err = acc.Register(context.Background(), in)
	requireCode(t, err, apperror.CodeEmailExists)
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	acc, _, _ := newAccounts(t)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = acc.Register(context.Background(), validRegister())
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, exists int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireCode(t, err, apperror.CodeEmailExists)
		exists++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exists)
}

func TestRegister_StoreFailure(t *testing.T) {
	acc, store, _ := newAccounts(t)
	store.failOn = errors.New("connection refused")

	_, err := acc.Register(context.Background(), validRegister())
	requireCode(t, err, apperror.CodeInternal)
}

func TestLogin(t *testing.T) {
	acc, store, _ := newAccounts(t)
	reg, err := acc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	res, err := acc.Login(context.Background(), LoginInput{Email: " A@b.com ", Password: "Abc12345!"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)
	assert.NotEmpty(t, res.RefreshToken)

	_, err = acc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "wrong-Pass1!"})
	wrongPw := requireCode(t, err, apperror.CodeInvalidCredentials)

	_, err = acc.Login(context.Background(), LoginInput{Email: "nobody@b.com", Password: "Abc12345!"})
	unknown := requireCode(t, err, apperror.CodeInvalidCredentials)
	assert.Equal(t, wrongPw.Message, unknown.Message)
	assert.Equal(t, wrongPw.Status, unknown.Status)

	store.deactivate(reg.User.ID)
	_, err = acc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "Abc12345!"})
	requireCode(t, err, apperror.CodeAccountInactive)

	_, err = acc.Login(context.Background(), LoginInput{Email: "a@b.com"})
	requireCode(t, err, apperror.CodeValidation)
}

func TestRefresh(t *testing.T) {
	acc, store, tokens := newAccounts(t)
	reg, err := acc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	access, err := acc.Refresh(context.Background(), reg.RefreshToken)
	require.NoError(t, err)
	claims, err := tokens.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Email)

	_, err = acc.Refresh(context.Background(), "  ")
	requireCode(t, err, apperror.CodeRefreshRequired)

	_, err = acc.Refresh(context.Background(), reg.Token)
	requireCode(t, err, apperror.CodeInvalidRefreshToken)

	orphan, err := tokens.IssueRefreshToken("999")
	require.NoError(t, err)
	_, err = acc.Refresh(context.Background(), orphan)
	requireCode(t, err, apperror.CodeInvalidRefreshToken)

	// deactivation takes effect on the very next refresh
	store.deactivate(reg.User.ID)
	_, err = acc.Refresh(context.Background(), reg.RefreshToken)
	requireCode(t, err, apperror.CodeInvalidRefreshToken)
}

func TestLogout(t *testing.T) {
	acc, _, _ := newAccounts(t)
	acc.Logout(context.Background(), nil)

	core, logs := observer.New(zap.WarnLevel)
	rev := &recordingRevoker{err: errors.New("redis down")}
	tokens := token.New(token.Config{AccessSecret: "a-secret", RefreshSecret: "r-secret"})
	acc = NewAccounts(newMemStore(), tokens, validation.New(), zap.New(core), WithRevoker(rev))

	raw, err := tokens.IssueAccessToken(token.AccessClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}})
	require.NoError(t, err)
	claims, err := tokens.VerifyAccessToken(raw)
	require.NoError(t, err)

	acc.Logout(context.Background(), claims)
	assert.Equal(t, []string{claims.ID}, rev.jtis)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "token revocation failed", logs.All()[0].Message)

	acc.Logout(context.Background(), nil)
	assert.Len(t, rev.jtis, 1)
}

func TestProfile(t *testing.T) {
	acc, _, _ := newAccounts(t)
	reg, err := acc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	p, err := acc.Profile(context.Background(), reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", p.Email)
	assert.Equal(t, "John", p.FirstName)
	assert.Len(t, p.Addresses, 1)
	assert.Equal(t, "Latte", p.Preferences.FavoriteItems[0].Name)
	assert.Equal(t, []string{}, p.Preferences.DietaryRestrictions)

	_, err = acc.Profile(context.Background(), 404)
	ae := requireCode(t, err, apperror.CodeUserNotFound)
	assert.Equal(t, 404, ae.Status)
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "John", capitalize("jOHN"))
	assert.Equal(t, "Émile", capitalize("émile"))
	assert.Equal(t, "Mary ann", capitalize("MARY ANN"))
	assert.Equal(t, "", capitalize(""))
}
