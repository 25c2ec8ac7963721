package models

import "time"

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// NoSize marks goods that have no size dimension; it still takes part
// in the cart identity key.
const NoSize = "no size"

type UserProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	AvatarURI string `json:"avatar"`
}

type CatalogItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Brand        string    `json:"brand"`
	Gender       string    `json:"gender"`
	Colors       []string  `json:"colors"`
	Sizes        []string  `json:"sizes"`
	Price        float64   `json:"price"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"created_at"`
	IsFeatured   bool      `json:"is_featured"`
	IsBestSeller bool      `json:"is_best_seller"`
}

type ProductSnapshot struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Brand string  `json:"brand"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type LineEntry struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Brand     string  `json:"brand"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	Quantity  uint    `json:"quantity"`
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

const (
	SortNewest       = "newest"
	SortPriceLow     = "price-low"
	SortPriceHigh    = "price-high"
	SortAlphabetical = "alphabetical"
)

// FilterState is persisted verbatim on every change. An empty facet
// slice means "no constraint", never "match nothing".
type FilterState struct {
	Category   []string   `json:"category"`
	Brand      []string   `json:"brand"`
	Type       []string   `json:"type"`
	Gender     []string   `json:"gender"`
	Color      []string   `json:"color"`
	Size       []string   `json:"size"`
	PriceRange PriceRange `json:"price_range"`
	SortBy     string     `json:"sort_by"`
}

const (
	IntentCart     = "cart"
	IntentWishlist = "wishlist"
)

type DeferredIntent struct {
	Kind     string          `json:"kind"`
	Product  ProductSnapshot `json:"product"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Quantity uint            `json:"quantity"`
}

type AdminStats struct {
	TotalUsers    int64   `json:"total_users"`
	TotalOrders   int64   `json:"total_orders"`
	TotalProducts int64   `json:"total_products"`
	Revenue       float64 `json:"revenue"`
}

type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}
