package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cafe-backend/internal/apperror"
	"github.com/iliyamo/cafe-backend/internal/middleware"
	"github.com/iliyamo/cafe-backend/internal/model"
	"github.com/iliyamo/cafe-backend/internal/permission"
	"github.com/iliyamo/cafe-backend/internal/repository"
)

// MenuStore is implemented by *repository.MenuRepo.
type MenuStore interface {
	ListCategories(ctx context.Context) ([]model.MenuCategory, error)
	CreateCategory(ctx context.Context, c *model.MenuCategory) error
	ListItems(ctx context.Context, f model.MenuItemFilter) ([]model.MenuItem, error)
	CreateItem(ctx context.Context, it *model.MenuItem) (*model.MenuItem, error)
	UpdateItem(ctx context.Context, it *model.MenuItem) (*model.MenuItem, error)
	DeleteItem(ctx context.Context, id uint64) error
}

// MenuHandler serves /menu.
type MenuHandler struct {
	menu MenuStore
}

func NewMenuHandler(menu MenuStore) *MenuHandler {
	return &MenuHandler{menu: menu}
}

type categoryInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	Description  string `json:"description" validate:"max=500"`
	DisplayOrder int    `json:"displayOrder"`
}

func (categoryInput) ValidationMessages() map[string]string {
	return map[string]string{
		"name.required": "Category name is required",
		"name.max":      "Category name must be less than 100 characters",
	}
}

type dietInput struct {
	Type         string `json:"type" validate:"oneof=vegetarian vegan gluten-free dairy-free"`
	IsApplicable bool   `json:"isApplicable"`
}

type menuItemInput struct {
	Name            string      `json:"name" validate:"required,max=100"`
	Description     string      `json:"description" validate:"max=500"`
	Category        uint64      `json:"category" validate:"required"`
	Price           *float64    `json:"price" validate:"required,gte=0"`
	Cost            *float64    `json:"cost" validate:"omitempty,gte=0"`
	Ingredients     []string    `json:"ingredients"`
	Allergens       []string    `json:"allergens"`
	DietaryInfo     []dietInput `json:"dietaryInfo" validate:"dive"`
	ImageURL        string      `json:"imageUrl" validate:"omitempty,max=500"`
	IsAvailable     *bool       `json:"isAvailable"`
	PreparationTime *int        `json:"preparationTime" validate:"omitempty,min=1"`
	DisplayOrder    int         `json:"displayOrder"`
}

func (menuItemInput) ValidationMessages() map[string]string {
	return map[string]string{
		"name.required":       "Menu item name is required",
		"name.max":            "Menu item name must be less than 100 characters",
		"description.max":     "Description must be less than 500 characters",
		"category.required":   "Valid category ID is required",
		"price.required":      "Price must be a positive number",
		"price.gte":           "Price must be a positive number",
		"cost.gte":            "Cost must be a positive number",
		"preparationTime.min": "Preparation time must be a positive integer",
		"type.oneof":          "Dietary type must be one of vegetarian, vegan, gluten-free, dairy-free",
	}
}

func (in menuItemInput) toModel() *model.MenuItem {
	it := &model.MenuItem{
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		CategoryID:      in.Category,
		Price:           *in.Price,
		Cost:            in.Cost,
		Ingredients:     in.Ingredients,
		Allergens:       in.Allergens,
		ImageURL:        in.ImageURL,
		IsAvailable:     true,
		PreparationTime: in.PreparationTime,
		DisplayOrder:    in.DisplayOrder,
	}
	if in.IsAvailable != nil {
		it.IsAvailable = *in.IsAvailable
	}
	for _, d := range in.DietaryInfo {
		it.DietaryInfo = append(it.DietaryInfo, model.DietaryInfo{Type: d.Type, IsApplicable: d.IsApplicable})
	}
	return it
}

type categoryView struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	DisplayOrder int    `json:"displayOrder"`
}

type categoryRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type menuItemView struct {
	ID              uint64              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	Category        categoryRef         `json:"category"`
	Price           float64             `json:"price"`
	Cost            *float64            `json:"cost,omitempty"`
	ImageURL        string              `json:"imageUrl,omitempty"`
	IsAvailable     bool                `json:"isAvailable"`
	PreparationTime *int                `json:"preparationTime,omitempty"`
	Ingredients     []string            `json:"ingredients"`
	DietaryInfo     []model.DietaryInfo `json:"dietaryInfo"`
	Allergens       []string            `json:"allergens"`
}

func categoryViewOf(c model.MenuCategory) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Description: c.Description, DisplayOrder: c.DisplayOrder}
}

// itemViewOf renders an item; cost is internal and only shown to callers
// that can read inventory.
func itemViewOf(it model.MenuItem, showCost bool) menuItemView {
	v := menuItemView{
		ID:              it.ID,
		Name:            it.Name,
		Description:     it.Description,
		Category:        categoryRef{ID: it.CategoryID, Name: it.CategoryName},
		Price:           it.Price,
		ImageURL:        it.ImageURL,
		IsAvailable:     it.IsAvailable,
		PreparationTime: it.PreparationTime,
		Ingredients:     it.Ingredients,
		DietaryInfo:     it.ApplicableDiets(),
		Allergens:       it.Allergens,
	}
	if v.Ingredients == nil {
		v.Ingredients = []string{}
	}
	if v.Allergens == nil {
		v.Allergens = []string{}
	}
	if showCost {
		v.Cost = it.Cost
	}
	return v
}

func canSeeCost(c echo.Context) bool {
	return permission.HasAny(middleware.PermissionsFrom(c), permission.InventoryRead)
}

// ListCategories: GET /menu/categories
func (h *MenuHandler) ListCategories(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	cats, err := h.menu.ListCategories(ctx)
	if err != nil {
		return err
	}
	out := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryViewOf(cat))
	}
	return ok(c, out, "")
}

// CreateCategory: POST /menu/categories
func (h *MenuHandler) CreateCategory(c echo.Context) error {
	var in categoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cat := &model.MenuCategory{Name: in.Name, Description: strings.TrimSpace(in.Description), DisplayOrder: in.DisplayOrder}
	if err := h.menu.CreateCategory(ctx, cat); err != nil {
		return err
	}
	return created(c, categoryViewOf(*cat), "Menu category created successfully")
}

// ListItems: GET /menu/items?category=<id>&available=true|false
func (h *MenuHandler) ListItems(c echo.Context) error {
	var f model.MenuItemFilter
	if raw := c.QueryParam("category"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return apperror.Validation("Invalid input data",
				apperror.FieldError{Field: "category", Message: "Invalid category ID format"})
		}
		f.CategoryID = &id
	}
	if raw, present := c.QueryParams()["available"]; present {
		avail := len(raw) > 0 && raw[0] == "true"
		f.Available = &avail
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	items, err := h.menu.ListItems(ctx, f)
	if err != nil {
		return err
	}
	showCost := canSeeCost(c)
	out := make([]menuItemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemViewOf(it, showCost))
	}
	return ok(c, out, "")
}

// CreateItem: POST /menu/items
func (h *MenuHandler) CreateItem(c echo.Context) error {
	var in menuItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	it, err := h.menu.CreateItem(ctx, in.toModel())
	if err != nil {
		return menuError(err)
	}
	return created(c, itemViewOf(*it, canSeeCost(c)), "Menu item created successfully")
}

// UpdateItem: PUT /menu/items/:id
func (h *MenuHandler) UpdateItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	var in menuItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := c.Validate(&in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	m := in.toModel()
	m.ID = id
	it, err := h.menu.UpdateItem(ctx, m)
	if err != nil {
		return menuError(err)
	}
	return ok(c, itemViewOf(*it, canSeeCost(c)), "Menu item updated successfully")
}

// DeleteItem: DELETE /menu/items/:id. Soft delete.
func (h *MenuHandler) DeleteItem(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.menu.DeleteItem(ctx, id); err != nil {
		return menuError(err)
	}
	return ok(c, nil, "Menu item deleted successfully")
}

func itemID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("Invalid input data",
			apperror.FieldError{Field: "id", Message: "Invalid menu item ID format"})
	}
	return id, nil
}

func menuError(err error) error {
	switch {
	case errors.Is(err, repository.ErrMenuItemNotFound):
		return apperror.NotFound("Menu item not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		return apperror.Validation("Invalid input data",
			apperror.FieldError{Field: "category", Message: "Valid category ID is required"})
	default:
		return err
	}
}
