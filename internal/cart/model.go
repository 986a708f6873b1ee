package cart

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type Cart struct {
	ID          uuid.UUID  `json:"id"`
	AnonymousID *string    `json:"anonymous_id"`
	UserID      *uuid.UUID `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Item is a cart line. Config is free-form JSON (color, size, design URLs, decoration).
type Item struct {
	ID        uuid.UUID       `json:"id"`
	CartID    uuid.UUID       `json:"cart_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type LineVariant struct {
	ID         uuid.UUID `json:"id"`
	ColorName  string    `json:"color_name"`
	ColorHex   string    `json:"color_hex"`
	Size       string    `json:"size"`
	PriceCents int64     `json:"price_cents"`
	SKU        string    `json:"sku"`
	Stock      *int      `json:"stock"`
}

type LineProduct struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

// Line is an Item enriched for display.
type Line struct {
	Item
	Variant        *LineVariant `json:"variant"`
	Product        *LineProduct `json:"product"`
	Thumbnail      string       `json:"thumbnail"`
	LineTotalCents int64        `json:"line_total_cents"`
}

// View is the cart as returned to clients. An owner without a cart gets a View with a nil ID and no items.
type View struct {
	ID            *uuid.UUID `json:"id"`
	AnonymousID   *string    `json:"anonymous_id"`
	Items         []Line     `json:"items"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int64      `json:"subtotal_cents"`
}

// Owner identifies whose cart an operation targets. UserID wins when both are set.
type Owner struct {
	AnonymousID string
	UserID      *uuid.UUID
}

func (o Owner) IsZero() bool {
	return o.AnonymousID == "" && o.UserID == nil
}

type AddItemInput struct {
	VariantID uuid.UUID
	Quantity  int
	Config    json.RawMessage
}
