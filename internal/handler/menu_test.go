package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cafe-backend/internal/apperror"
	"github.com/iliyamo/cafe-backend/internal/middleware"
	"github.com/iliyamo/cafe-backend/internal/model"
	"github.com/iliyamo/cafe-backend/internal/permission"
	"github.com/iliyamo/cafe-backend/internal/repository"
	"github.com/iliyamo/cafe-backend/internal/token"
)

type menuStore struct {
	mu         sync.Mutex
	categories map[uint64]model.MenuCategory
	items      map[uint64]*model.MenuItem
	nextID     uint64
	lastFilter model.MenuItemFilter
	err        error
}

func newMenuStore() *menuStore {
	cost := 1.2
	prep := 4
	return &menuStore{
		categories: map[uint64]model.MenuCategory{1: {ID: 1, Name: "Coffee", DisplayOrder: 1, IsActive: true}},
		items: map[uint64]*model.MenuItem{
			1: {
				ID: 1, Name: "Latte", CategoryID: 1, CategoryName: "Coffee", Price: 4.5, Cost: &cost,
				IsAvailable: true, PreparationTime: &prep, IsActive: true,
				DietaryInfo: []model.DietaryInfo{
					{Type: model.DietVegetarian, IsApplicable: true},
					{Type: model.DietVegan, IsApplicable: false},
				},
			},
		},
		nextID: 1,
	}
}

func (s *menuStore) ListCategories(context.Context) ([]model.MenuCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.MenuCategory, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	return out, nil
}

func (s *menuStore) CreateCategory(_ context.Context, c *model.MenuCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uint64(len(s.categories) + 1)
	c.IsActive = true
	s.categories[c.ID] = *c
	return nil
}

func (s *menuStore) ListItems(_ context.Context, f model.MenuItemFilter) ([]model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = f
	var out []model.MenuItem
	for _, it := range s.items {
		if it.IsActive {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *menuStore) CreateItem(_ context.Context, it *model.MenuItem) (*model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cat, ok := s.categories[it.CategoryID]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	s.nextID++
	cp := *it
	cp.ID = s.nextID
	cp.CategoryName = cat.Name
	cp.IsActive = true
	s.items[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *menuStore) UpdateItem(_ context.Context, it *model.MenuItem) (*model.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[it.ID]
	if !ok || !cur.IsActive {
		return nil, repository.ErrMenuItemNotFound
	}
	cat, ok := s.categories[it.CategoryID]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	cp := *it
	cp.CategoryName = cat.Name
	cp.IsActive = true
	s.items[it.ID] = &cp
	out := cp
	return &out, nil
}

func (s *menuStore) DeleteItem(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok || !cur.IsActive {
		return repository.ErrMenuItemNotFound
	}
	cur.IsActive = false
	return nil
}

type roleUsers map[uint64]*model.User

func (r roleUsers) FindByID(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := r[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

type menuFixture struct {
	e      *echo.Echo
	store  *menuStore
	tokens *token.Service
}

const (
	adminID    uint64 = 1
	staffID    uint64 = 2
	customerID uint64 = 3
)

func newMenuFixture(t *testing.T) *menuFixture {
	t.Helper()
	tokens := token.New(token.Config{AccessSecret: "access-secret", RefreshSecret: "refresh-secret", AccessTTL: time.Hour})
	users := roleUsers{
		adminID:    {ID: adminID, Role: permission.RoleAdmin, IsActive: true},
		staffID:    {ID: staffID, Role: permission.RoleStaff, IsActive: true},
		customerID: {ID: customerID, Role: permission.RoleCustomer, IsActive: true},
	}
	gate := middleware.NewGate(tokens, users, nil)
	store := newMenuStore()
	h := NewMenuHandler(store)

	e := newEcho(false)
	g := e.Group("/api/v1/menu")
	g.GET("/categories", h.ListCategories)
	g.POST("/categories", h.CreateCategory, gate.Authenticate(), gate.Authorize(permission.MenuCreate))
	g.GET("/items", h.ListItems, gate.OptionalAuth())
	g.POST("/items", h.CreateItem, gate.Authenticate(), gate.Authorize(permission.MenuCreate))
	g.PUT("/items/:id", h.UpdateItem, gate.Authenticate(), gate.Authorize(permission.MenuUpdate))
	g.DELETE("/items/:id", h.DeleteItem, gate.Authenticate(), gate.Authorize(permission.MenuDelete))

	return &menuFixture{e: e, store: store, tokens: tokens}
}

func (f *menuFixture) token(t *testing.T, id uint64, role permission.Role) string {
	t.Helper()
	raw, err := f.tokens.IssueAccessToken(token.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatUint(id, 10)},
		Role:             string(role),
		Permissions:      permission.Strings(permission.For(role)),
	})
	require.NoError(t, err)
	return raw
}

func listItems(t *testing.T, f *menuFixture, query, bearer string) []map[string]interface{} {
	t.Helper()
	rec := do(f.e, http.MethodGet, "/api/v1/menu/items"+query, "", bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &items))
	return items
}

func TestListItems_CostVisibility(t *testing.T) {
	f := newMenuFixture(t)

	anon := listItems(t, f, "", "")
	require.Len(t, anon, 1)
	assert.NotContains(t, anon[0], "cost")
	assert.Equal(t, "Latte", anon[0]["name"])
	assert.Equal(t, map[string]interface{}{"id": float64(1), "name": "Coffee"}, anon[0]["category"])
	diets := anon[0]["dietaryInfo"].([]interface{})
	require.Len(t, diets, 1, "only applicable diets are listed")
	assert.Equal(t, "vegetarian", diets[0].(map[string]interface{})["type"])

	customer := listItems(t, f, "", f.token(t, customerID, permission.RoleCustomer))
	assert.NotContains(t, customer[0], "cost")

	staff := listItems(t, f, "", f.token(t, staffID, permission.RoleStaff))
	assert.Equal(t, 1.2, staff[0]["cost"])

	// a bad token on a public route is ignored
	bad := listItems(t, f, "", "not-a-token")
	assert.NotContains(t, bad[0], "cost")
}

func TestListItems_Filters(t *testing.T) {
	f := newMenuFixture(t)

	listItems(t, f, "?category=1&available=true", "")
	require.NotNil(t, f.store.lastFilter.CategoryID)
	assert.Equal(t, uint64(1), *f.store.lastFilter.CategoryID)
	require.NotNil(t, f.store.lastFilter.Available)
	assert.True(t, *f.store.lastFilter.Available)

	listItems(t, f, "?available=no", "")
	assert.Nil(t, f.store.lastFilter.CategoryID)
	require.NotNil(t, f.store.lastFilter.Available)
	assert.False(t, *f.store.lastFilter.Available)

	listItems(t, f, "", "")
	assert.Nil(t, f.store.lastFilter.Available)

	rec := do(f.e, http.MethodGet, "/api/v1/menu/items?category=abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, decode(t, rec).Error.Code)
}

func TestCreateItem_Authorization(t *testing.T) {
	f := newMenuFixture(t)
	body := `{"name":" Mocha ","category":1,"price":5,"cost":2,"dietaryInfo":[{"type":"vegan","isApplicable":true}]}`

	tests := []struct {
		name   string
		bearer string
		status int
		code   string
	}{
		{"anonymous", "", http.StatusUnauthorized, apperror.CodeUnauthorized},
		{"customer", f.token(t, customerID, permission.RoleCustomer), http.StatusForbidden, apperror.CodeForbidden},
		{"customer claiming admin", f.token(t, customerID, permission.RoleAdmin), http.StatusForbidden, apperror.CodeForbidden},
		{"staff", f.token(t, staffID, permission.RoleStaff), http.StatusForbidden, apperror.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.e, http.MethodPost, "/api/v1/menu/items", body, tt.bearer)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec).Error.Code)
		})
	}

	rec := do(f.e, http.MethodPost, "/api/v1/menu/items", body, f.token(t, adminID, permission.RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "Menu item created successfully", env.Message)
	var item map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "Mocha", item["name"])
	assert.Equal(t, true, item["isAvailable"], "availability defaults to true")
	assert.Equal(t, 2.0, item["cost"])
	assert.Len(t, f.store.items, 2)
}

func TestCreateItem_Validation(t *testing.T) {
	f := newMenuFixture(t)
	admin := f.token(t, adminID, permission.RoleAdmin)

	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"missing name", `{"category":1,"price":5}`, "name", "Menu item name is required"},
		{"negative price", `{"name":"x","category":1,"price":-1}`, "price", "Price must be a positive number"},
		{"missing price", `{"name":"x","category":1}`, "price", "Price must be a positive number"},
		{"missing category", `{"name":"x","price":1}`, "category", "Valid category ID is required"},
		{"unknown category", `{"name":"x","category":9,"price":1}`, "category", "Valid category ID is required"},
		{"bad diet", `{"name":"x","category":1,"price":1,"dietaryInfo":[{"type":"keto"}]}`, "type", ""},
		{"zero prep time", `{"name":"x","category":1,"price":1,"preparationTime":0}`, "preparationTime", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.e, http.MethodPost, "/api/v1/menu/items", tt.body, admin)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			e := decode(t, rec).Error
			assert.Equal(t, apperror.CodeValidation, e.Code)
			require.NotEmpty(t, e.Details)
			assert.Equal(t, tt.field, e.Details[0].Field)
			if tt.message != "" {
				assert.Equal(t, tt.message, e.Details[0].Message)
			}
		})
	}
}

func TestUpdateAndDeleteItem(t *testing.T) {
	f := newMenuFixture(t)
	admin := f.token(t, adminID, permission.RoleAdmin)

	rec := do(f.e, http.MethodPut, "/api/v1/menu/items/1", `{"name":"Flat White","category":1,"price":4.8,"isAvailable":false}`, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode(t, rec)
	assert.Equal(t, "Menu item updated successfully", env.Message)
	var item map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "Flat White", item["name"])
	assert.Equal(t, false, item["isAvailable"])

	rec = do(f.e, http.MethodPut, "/api/v1/menu/items/42", `{"name":"x","category":1,"price":1}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Menu item not found", decode(t, rec).Error.Message)

	rec = do(f.e, http.MethodPut, "/api/v1/menu/items/abc", `{"name":"x","category":1,"price":1}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(f.e, http.MethodDelete, "/api/v1/menu/items/1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Menu item deleted successfully", decode(t, rec).Message)
	assert.False(t, f.store.items[1].IsActive, "delete is soft")
	assert.Empty(t, listItems(t, f, "", ""))

	rec = do(f.e, http.MethodDelete, "/api/v1/menu/items/1", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(f.e, http.MethodDelete, "/api/v1/menu/items/1", "", f.token(t, staffID, permission.RoleStaff))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCategories(t *testing.T) {
	f := newMenuFixture(t)

	rec := do(f.e, http.MethodPost, "/api/v1/menu/categories", `{"name":"Tea","displayOrder":2}`, f.token(t, adminID, permission.RoleAdmin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Menu category created successfully", decode(t, rec).Message)

	rec = do(f.e, http.MethodPost, "/api/v1/menu/categories", `{"name":"  "}`, f.token(t, adminID, permission.RoleAdmin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Category name is required", decode(t, rec).Error.Details[0].Message)

	rec = do(f.e, http.MethodGet, "/api/v1/menu/categories", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []categoryView
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &cats))
	assert.Len(t, cats, 2)

	f.store.err = errors.New("connection refused")
	rec = do(f.e, http.MethodGet, "/api/v1/menu/categories", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, apperror.CodeInternal, env.Error.Code)
	assert.Empty(t, env.Error.Stack)
}
