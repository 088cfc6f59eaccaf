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
	"github.com/iliyamo/cafe-backend/internal/permission"
	"github.com/iliyamo/cafe-backend/internal/utils"
)

const userColumns = "id, email, password_hash, first_name, last_name, phone, role, is_active, dietary_restrictions, created_at, updated_at"

// UserRepo is the credential store. It owns password hashing so plaintext
// never travels past it.
type UserRepo struct {
	db     *sql.DB
	hasher *utils.Hasher
	now    func() time.Time
}

// NewUserRepo wires the store to a connection pool and a password hasher.
func NewUserRepo(db *sql.DB, hasher *utils.Hasher) *UserRepo {
	return &UserRepo{db: db, hasher: hasher, now: time.Now}
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create hashes the password and inserts the user. A duplicate email,
// including one that lost a race with a concurrent insert, returns
// ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	hash, err := r.hasher.Hash(ctx, nu.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	role := nu.Role
	if role == "" {
		role = permission.RoleCustomer
	}
	now := r.now().UTC().Truncate(time.Second)
	u := &model.User{
		Email:               NormalizeEmail(nu.Email),
		FirstName:           nu.FirstName,
		LastName:            nu.LastName,
		Phone:               nu.Phone,
		PasswordHash:        hash,
		Role:                role,
		IsActive:            true,
		DietaryRestrictions: []string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	const q = `INSERT INTO users
	           (email, password_hash, first_name, last_name, phone, role, is_active, dietary_restrictions, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, nullString(u.Phone),
		string(u.Role), u.IsActive, "[]", u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isMySQLError(err, mysqlDuplicateEntry) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	u.ID = uint64(id)
	return u, nil
}

// Verify reports whether plaintext matches the user's stored hash. A nil
// user still pays for one bcrypt comparison so unknown accounts cannot be
// told apart by timing.
func (r *UserRepo) Verify(ctx context.Context, u *model.User, plaintext string) bool {
	if u == nil {
		return r.hasher.Verify(ctx, "", plaintext)
	}
	return r.hasher.Verify(ctx, u.PasswordHash, plaintext)
}

// FindByEmail looks a user up by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", NormalizeEmail(email))
	return scanUser(row)
}

// FindByID looks a user up by primary key.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// SetActive activates or deactivates an account. Users are never deleted.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?",
		active, r.now().UTC().Truncate(time.Second), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Addresses lists the user's saved addresses, default first.
func (r *UserRepo) Addresses(ctx context.Context, userID uint64) ([]model.Address, error) {
	const q = `SELECT id, type, street, city, state, zip_code, is_default
	           FROM user_addresses WHERE user_id = ? ORDER BY is_default DESC, id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Address{}
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.Type, &a.Street, &a.City, &a.State, &a.ZipCode, &a.IsDefault); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FavoriteItems resolves the user's favorites against the menu. Items that
// were soft-deleted are skipped.
func (r *UserRepo) FavoriteItems(ctx context.Context, userID uint64) ([]model.FavoriteItem, error) {
	const q = `SELECT m.id, m.name, m.price, m.image_url
	           FROM user_favorite_items f
	           JOIN menu_items m ON m.id = f.menu_item_id
	           WHERE f.user_id = ? AND m.is_active = TRUE
	           ORDER BY m.name`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.FavoriteItem{}
	for rows.Next() {
		var (
			f   model.FavoriteItem
			img sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Price, &img); err != nil {
			return nil, err
		}
		f.ImageURL = img.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u     model.User
		phone sql.NullString
		role  string
		diets []byte
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone,
		&role, &u.IsActive, &diets, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Phone = phone.String
	u.Role = permission.Role(role)
	u.DietaryRestrictions = []string{}
	if len(diets) > 0 {
		if err := json.Unmarshal(diets, &u.DietaryRestrictions); err != nil {
			return nil, fmt.Errorf("decode dietary_restrictions: %w", err)
		}
		if u.DietaryRestrictions == nil {
			u.DietaryRestrictions = []string{}
		}
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
