package account

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
)

// Profile is keyed by the identity provider's user id.
type Profile struct {
	ID                          uuid.UUID `json:"id"`
	FullName                    string    `json:"full_name"`
	DefaultShippingAddressLine1 string    `json:"default_shipping_address_line1"`
	DefaultShippingAddressLine2 string    `json:"default_shipping_address_line2"`
	DefaultShippingCity         string    `json:"default_shipping_city"`
	DefaultShippingState        string    `json:"default_shipping_state"`
	DefaultShippingPostalCode   string    `json:"default_shipping_postal_code"`
	DefaultShippingCountry      string    `json:"default_shipping_country"`
	CreatedAt                   time.Time `json:"created_at"`
	UpdatedAt                   time.Time `json:"updated_at"`
}

type ProfileInput struct {
	FullName                    string `json:"full_name" validate:"max=200"`
	DefaultShippingAddressLine1 string `json:"default_shipping_address_line1" validate:"max=200"`
	DefaultShippingAddressLine2 string `json:"default_shipping_address_line2" validate:"max=200"`
	DefaultShippingCity         string `json:"default_shipping_city" validate:"max=100"`
	DefaultShippingState        string `json:"default_shipping_state" validate:"max=100"`
	DefaultShippingPostalCode   string `json:"default_shipping_postal_code" validate:"max=20"`
	DefaultShippingCountry      string `json:"default_shipping_country" validate:"omitempty,len=2"`
}

type WishlistEntry struct {
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryProduct struct {
	ID   uuid.UUID `json:"id"`
	Slug string    `json:"slug"`
	Name string    `json:"name"`
}

type HistoryVariant struct {
	ID        uuid.UUID       `json:"id"`
	ColorName string          `json:"color_name"`
	Size      string          `json:"size"`
	SKU       string          `json:"sku"`
	Product   *HistoryProduct `json:"product"`
}

// HistoryItem is an order item with its variant and product resolved. Variant
// is nil when the variant has since been deleted.
type HistoryItem struct {
	order.Item
	Variant *HistoryVariant `json:"variant"`
}

type HistoryOrder struct {
	order.Order
	Items []HistoryItem `json:"items"`
}
