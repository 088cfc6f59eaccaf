package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cafe-backend/internal/model"
)

// MenuRepo reads and writes the menu catalog. Deleting an item only clears
// is_active; inactive rows are invisible to every read here.
type MenuRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewMenuRepo(db *sql.DB) *MenuRepo {
	return &MenuRepo{db: db, now: time.Now}
}

// ListCategories returns active categories by display order, then name.
func (r *MenuRepo) ListCategories(ctx context.Context) ([]model.MenuCategory, error) {
	const q = `SELECT id, name, description, display_order, is_active, created_at, updated_at
	           FROM menu_categories WHERE is_active = TRUE ORDER BY display_order, name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MenuCategory{}
	for rows.Next() {
		var (
			c    model.MenuCategory
			desc sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &desc, &c.DisplayOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Description = desc.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts c and fills in its ID and timestamps.
func (r *MenuRepo) CreateCategory(ctx context.Context, c *model.MenuCategory) error {
	now := r.now().UTC().Truncate(time.Second)
	const q = `INSERT INTO menu_categories (name, description, display_order, is_active, created_at, updated_at)
	           VALUES (?, ?, ?, TRUE, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.Name, nullString(c.Description), c.DisplayOrder, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.IsActive = true
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

const itemSelect = `SELECT i.id, i.name, i.description, i.category_id, c.name, i.price, i.cost,
	       i.ingredients, i.allergens, i.dietary_info, i.image_url, i.is_available,
	       i.preparation_time, i.display_order, i.is_active, i.created_at, i.updated_at
	FROM menu_items i
	JOIN menu_categories c ON c.id = i.category_id`

// ListItems returns active items matching f by display order, then name.
func (r *MenuRepo) ListItems(ctx context.Context, f model.MenuItemFilter) ([]model.MenuItem, error) {
	where := []string{"i.is_active = TRUE"}
	var args []interface{}
	if f.CategoryID != nil {
		where = append(where, "i.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.Available != nil {
		where = append(where, "i.is_available = ?")
		args = append(args, *f.Available)
	}
	q := itemSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY i.display_order, i.name"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MenuItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

// GetItem returns an active item by id.
func (r *MenuRepo) GetItem(ctx context.Context, id uint64) (*model.MenuItem, error) {
	row := r.db.QueryRowContext(ctx, itemSelect+" WHERE i.id = ? AND i.is_active = TRUE", id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMenuItemNotFound
	}
	return it, err
}

// CreateItem inserts it and returns the stored row with its category name.
func (r *MenuRepo) CreateItem(ctx context.Context, it *model.MenuItem) (*model.MenuItem, error) {
	if err := r.ensureCategory(ctx, it.CategoryID); err != nil {
		return nil, err
	}
	cols, err := encodeItemColumns(it)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC().Truncate(time.Second)
	const q = `INSERT INTO menu_items
	           (name, description, category_id, price, cost, ingredients, allergens, dietary_info,
	            image_url, is_available, preparation_time, display_order, is_active, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		it.Name, nullString(it.Description), it.CategoryID, it.Price, it.Cost,
		cols.ingredients, cols.allergens, cols.dietary,
		nullString(it.ImageURL), it.IsAvailable, it.PreparationTime, it.DisplayOrder, now, now)
	if err != nil {
		if isMySQLError(err, mysqlNoReferencedRow) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetItem(ctx, uint64(id))
}

// UpdateItem replaces the editable fields of an active item.
func (r *MenuRepo) UpdateItem(ctx context.Context, it *model.MenuItem) (*model.MenuItem, error) {
	if err := r.ensureCategory(ctx, it.CategoryID); err != nil {
		return nil, err
	}
	cols, err := encodeItemColumns(it)
	if err != nil {
		return nil, err
	}
	const q = `UPDATE menu_items
	           SET name = ?, description = ?, category_id = ?, price = ?, cost = ?, ingredients = ?,
	               allergens = ?, dietary_info = ?, image_url = ?, is_available = ?, preparation_time = ?,
	               display_order = ?, updated_at = ?
	           WHERE id = ? AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, q,
		it.Name, nullString(it.Description), it.CategoryID, it.Price, it.Cost,
		cols.ingredients, cols.allergens, cols.dietary,
		nullString(it.ImageURL), it.IsAvailable, it.PreparationTime, it.DisplayOrder,
		r.now().UTC().Truncate(time.Second), it.ID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrMenuItemNotFound
	}
	return r.GetItem(ctx, it.ID)
}

// DeleteItem soft-deletes an item.
func (r *MenuRepo) DeleteItem(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE menu_items SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE",
		r.now().UTC().Truncate(time.Second), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

func (r *MenuRepo) ensureCategory(ctx context.Context, id uint64) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM menu_categories WHERE id = ? AND is_active = TRUE", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCategoryNotFound
	}
	return err
}

type itemColumns struct {
	ingredients, allergens, dietary []byte
}

func encodeItemColumns(it *model.MenuItem) (itemColumns, error) {
	var (
		cols itemColumns
		err  error
	)
	if cols.ingredients, err = json.Marshal(nonNil(it.Ingredients)); err != nil {
		return cols, fmt.Errorf("encode ingredients: %w", err)
	}
	if cols.allergens, err = json.Marshal(nonNil(it.Allergens)); err != nil {
		return cols, fmt.Errorf("encode allergens: %w", err)
	}
	diets := it.DietaryInfo
	if diets == nil {
		diets = []model.DietaryInfo{}
	}
	if cols.dietary, err = json.Marshal(diets); err != nil {
		return cols, fmt.Errorf("encode dietary_info: %w", err)
	}
	return cols, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s rowScanner) (*model.MenuItem, error) {
	var (
		it        model.MenuItem
		desc, img sql.NullString
		cost      sql.NullFloat64
		prep      sql.NullInt64
	)
	var ingredients, allergens, dietary []byte
	err := s.Scan(&it.ID, &it.Name, &desc, &it.CategoryID, &it.CategoryName, &it.Price, &cost,
		&ingredients, &allergens, &dietary, &img, &it.IsAvailable,
		&prep, &it.DisplayOrder, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.Description = desc.String
	it.ImageURL = img.String
	if cost.Valid {
		v := cost.Float64
		it.Cost = &v
	}
	if prep.Valid {
		v := int(prep.Int64)
		it.PreparationTime = &v
	}
	if err := decodeJSON(ingredients, &it.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	if err := decodeJSON(allergens, &it.Allergens); err != nil {
		return nil, fmt.Errorf("decode allergens: %w", err)
	}
	if err := decodeJSON(dietary, &it.DietaryInfo); err != nil {
		return nil, fmt.Errorf("decode dietary_info: %w", err)
	}
	it.Ingredients = nonNil(it.Ingredients)
	it.Allergens = nonNil(it.Allergens)
	return &it, nil
}

func decodeJSON(b []byte, v interface{}) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
