// Package permission holds the fixed role → capability table. Permissions are
// never stored per user; they are always derived from the user's role.
package permission

import "strings"

// Role is the single classification a user carries.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Permission is an opaque capability string of the form resource:action[:scope].
type Permission string

const (
	AuthLogin                Permission = "auth:login"
	UsersCreate              Permission = "users:create"
	UsersReadOwn             Permission = "users:read:own"
	UsersReadAny             Permission = "users:read:any"
	UsersUpdateOwn           Permission = "users:update:own"
	UsersUpdateAny           Permission = "users:update:any"
	MenuRead                 Permission = "menu:read"
	MenuCreate               Permission = "menu:create"
	MenuUpdate               Permission = "menu:update"
	MenuDelete               Permission = "menu:delete"
	OrdersCreate             Permission = "orders:create"
	OrdersReadOwn            Permission = "orders:read:own"
	OrdersReadAny            Permission = "orders:read:any"
	OrdersUpdateStatus       Permission = "orders:update:status"
	OrdersDeleteOwn          Permission = "orders:delete:own"
	ReservationsCreate       Permission = "reservations:create"
	ReservationsReadOwn      Permission = "reservations:read:own"
	ReservationsReadAny      Permission = "reservations:read:any"
	ReservationsUpdateStatus Permission = "reservations:update:status"
	InventoryRead            Permission = "inventory:read"
	InventoryUpdate          Permission = "inventory:update"
	InventoryCreate          Permission = "inventory:create"
	StaffRead                Permission = "staff:read"
	StaffCreate              Permission = "staff:create"
	StaffUpdate              Permission = "staff:update"
	AnalyticsRead            Permission = "analytics:read"
)

// The three sets are business policy, not a hierarchy: staff gains the :any
// scopes and inventory access but none of the menu mutations admin holds.
var (
	customerPermissions = []Permission{
		AuthLogin,
		UsersCreate,
		UsersReadOwn,
		UsersUpdateOwn,
		MenuRead,
		OrdersCreate,
		OrdersReadOwn,
		OrdersDeleteOwn,
		ReservationsCreate,
		ReservationsReadOwn,
	}

	staffPermissions = []Permission{
		AuthLogin,
		UsersCreate,
		UsersReadOwn,
		UsersUpdateOwn,
		MenuRead,
		OrdersCreate,
		OrdersReadOwn,
		OrdersReadAny,
		OrdersUpdateStatus,
		OrdersDeleteOwn,
		ReservationsCreate,
		ReservationsReadOwn,
		ReservationsReadAny,
		ReservationsUpdateStatus,
		InventoryRead,
		InventoryUpdate,
		InventoryCreate,
		StaffRead,
		AnalyticsRead,
	}

	adminPermissions = []Permission{
		AuthLogin,
		UsersCreate,
		UsersReadOwn,
		UsersReadAny,
		UsersUpdateOwn,
		UsersUpdateAny,
		MenuRead,
		MenuCreate,
		MenuUpdate,
		MenuDelete,
		OrdersCreate,
		OrdersReadOwn,
		OrdersReadAny,
		OrdersUpdateStatus,
		OrdersDeleteOwn,
		ReservationsCreate,
		ReservationsReadOwn,
		ReservationsReadAny,
		ReservationsUpdateStatus,
		InventoryRead,
		InventoryUpdate,
		InventoryCreate,
		StaffRead,
		StaffCreate,
		StaffUpdate,
		AnalyticsRead,
	}
)

// ParseRole maps a stored or claimed role name onto a Role. The second result
// is false for anything outside the three known roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// For returns the permission set of role. Unknown roles get an empty set.
// The returned slice is a copy and may be modified by the caller.
func For(role Role) []Permission {
	var src []Permission
	switch role {
	case RoleCustomer:
		src = customerPermissions
	case RoleStaff:
		src = staffPermissions
	case RoleAdmin:
		src = adminPermissions
	default:
		return []Permission{}
	}
	out := make([]Permission, len(src))
	copy(out, src)
	return out
}

// HasAny reports whether granted contains at least one of required.
// An empty required list never matches.
func HasAny(granted []Permission, required ...Permission) bool {
	for _, want := range required {
		for _, have := range granted {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Strings converts a permission set to plain strings for token claims.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// FromStrings is the inverse of Strings.
func FromStrings(ss []string) []Permission {
	out := make([]Permission, len(ss))
	for i, s := range ss {
		out[i] = Permission(s)
	}
	return out
}
