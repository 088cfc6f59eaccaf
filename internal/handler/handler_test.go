package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cafe-backend/internal/model"
	"github.com/iliyamo/cafe-backend/internal/repository"
	"github.com/iliyamo/cafe-backend/internal/validation"
)

// userStore is an in-memory credential store. Passwords are kept as
// "hashed:<plaintext>" so tests can seed accounts directly.
type userStore struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]*model.User
}

func newUserStore() *userStore { return &userStore{users: map[uint64]*model.User{}} }

func (s *userStore) seed(u model.User, password string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u.ID = s.nextID
	u.PasswordHash = "hashed:" + password
	u.DietaryRestrictions = []string{}
	s.users[u.ID] = &u
	return u.ID
}

func (s *userStore) Create(_ context.Context, nu model.NewUser) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == nu.Email {
			return nil, repository.ErrEmailExists
		}
	}
	s.nextID++
	u := &model.User{
		ID: s.nextID, Email: nu.Email, FirstName: nu.FirstName, LastName: nu.LastName,
		Phone: nu.Phone, PasswordHash: "hashed:" + nu.Password, Role: nu.Role, IsActive: true,
		DietaryRestrictions: []string{}, CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *userStore) Verify(_ context.Context, u *model.User, plaintext string) bool {
	return u != nil && u.PasswordHash == "hashed:"+plaintext
}

func (s *userStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *userStore) FindByID(_ context.Context, id uint64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *userStore) Addresses(context.Context, uint64) ([]model.Address, error) {
	return []model.Address{}, nil
}

func (s *userStore) FavoriteItems(context.Context, uint64) ([]model.FavoriteItem, error) {
	return []model.FavoriteItem{}, nil
}

func newEcho(dev bool) *echo.Echo {
	e := echo.New()
	e.Validator = validation.New()
	e.HTTPErrorHandler = ErrorHandler(nil, dev)
	return e
}

func do(e *echo.Echo, method, path, body, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// testEnvelope mirrors envelope with raw data for per-test decoding.
type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}
