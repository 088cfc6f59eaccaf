package model

import "time"

// Dietary flags allowed in MenuItem.DietaryInfo.
const (
	DietVegetarian = "vegetarian"
	DietVegan      = "vegan"
	DietGlutenFree = "gluten-free"
	DietDairyFree  = "dairy-free"
)

// MenuCategory groups menu items (`menu_categories`). Inactive
// categories are hidden from the public listing.
type MenuCategory struct {
	ID           uint64    // menu_categories.id
	Name         string    // menu_categories.name
	Description  string    // menu_categories.description
	DisplayOrder int       // menu_categories.display_order
	IsActive     bool      // menu_categories.is_active
	CreatedAt    time.Time // menu_categories.created_at
	UpdatedAt    time.Time // menu_categories.updated_at
}

// DietaryInfo marks whether a dietary flag applies to an item.
type DietaryInfo struct {
	Type         string `json:"type"`
	IsApplicable bool   `json:"isApplicable"`
}

// MenuItem represents a row in `menu_items`. CategoryName is filled by
// the repository from a join and is not a column. Cost is internal and
// only shown to callers allowed to read inventory.
//
// Fields:
//  ID              - primary key identifier.
//  CategoryID      - owning category.
//  Price, Cost     - selling price and internal cost.
//  Ingredients     - JSON array column.
//  Allergens       - JSON array column.
//  DietaryInfo     - JSON array column of DietaryInfo.
//  PreparationTime - minutes; nil when unknown.
//  IsAvailable     - temporarily out of stock when false.
//  IsActive        - false once soft-deleted.
type MenuItem struct {
	ID              uint64        // menu_items.id
	Name            string        // menu_items.name
	Description     string        // menu_items.description
	CategoryID      uint64        // menu_items.category_id
	CategoryName    string        // menu_categories.name
	Price           float64       // menu_items.price
	Cost            *float64      // menu_items.cost
	Ingredients     []string      // menu_items.ingredients
	Allergens       []string      // menu_items.allergens
	DietaryInfo     []DietaryInfo // menu_items.dietary_info
	ImageURL        string        // menu_items.image_url
	IsAvailable     bool          // menu_items.is_available
	PreparationTime *int          // menu_items.preparation_time
	DisplayOrder    int           // menu_items.display_order
	IsActive        bool          // menu_items.is_active
	CreatedAt       time.Time     // menu_items.created_at
	UpdatedAt       time.Time     // menu_items.updated_at
}

// ApplicableDiets returns only the dietary flags that apply.
func (m MenuItem) ApplicableDiets() []DietaryInfo {
	out := make([]DietaryInfo, 0, len(m.DietaryInfo))
	for _, d := range m.DietaryInfo {
		if d.IsApplicable {
			out = append(out, d)
		}
	}
	return out
}

// MenuItemFilter narrows a listing. Nil fields do not filter.
type MenuItemFilter struct {
	CategoryID *uint64
	Available  *bool
}
