package catalog

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	AngleFront = "front"
	AngleBack  = "back"
)

type Category struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	ImageURL  *string   `json:"image_url"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID          uuid.UUID  `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id"`
	BaseRating  float64    `json:"base_rating"`
	RatingCount int        `json:"rating_count"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Variant is a purchasable color/size combination. A nil Stock means unlimited.
type Variant struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	ColorName  string    `json:"color_name"`
	ColorHex   string    `json:"color_hex"`
	Size       string    `json:"size"`
	PriceCents int64     `json:"price_cents"`
	SKU        string    `json:"sku"`
	Stock      *int      `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Image struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	URL       string    `json:"url"`
	ColorName *string   `json:"color_name"`
	Angle     string    `json:"angle"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID           uuid.UUID  `json:"id"`
	ProductID    uuid.UUID  `json:"product_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	AnonymousID  *string    `json:"-"`
	Rating       int        `json:"rating"`
	Comment      string     `json:"comment"`
	ReviewerName string     `json:"reviewer_name"`
	CreatedAt    time.Time  `json:"created_at"`
}

type ColorFacet struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// ProductSummary is the list view of a product with fields derived from its variants and images.
type ProductSummary struct {
	Product
	MinPriceCents int64        `json:"min_price_cents"`
	Colors        []ColorFacet `json:"colors"`
	Sizes         []string     `json:"sizes"`
	Thumbnail     string       `json:"thumbnail"`
}

type ProductDetail struct {
	Product
	Category      *Category          `json:"category"`
	Variants      []Variant          `json:"variants"`
	Images        []Image            `json:"images"`
	ImagesByColor map[string][]Image `json:"images_by_color"`
	MinPriceCents int64              `json:"min_price_cents"`
	Colors        []ColorFacet       `json:"colors"`
	Sizes         []string           `json:"sizes"`
}

type ListFilter struct {
	CategoryID *uuid.UUID
	OnlyActive bool
	Limit      int
	Offset     int
}
