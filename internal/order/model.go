package order

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

// RevenueStatuses are the statuses whose orders count as revenue.
var RevenueStatuses = []Status{StatusPaid, StatusFulfilled, StatusShipped}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFulfilled, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsRevenue() bool {
	for _, r := range RevenueStatuses {
		if s == r {
			return true
		}
	}
	return false
}

type Shipping struct {
	Name         string `json:"name" validate:"omitempty,max=200"`
	Email        string `json:"email" validate:"omitempty,email"`
	AddressLine1 string `json:"address_line1" validate:"omitempty,max=200"`
	AddressLine2 string `json:"address_line2" validate:"omitempty,max=200"`
	City         string `json:"city" validate:"omitempty,max=100"`
	State        string `json:"state" validate:"omitempty,max=100"`
	PostalCode   string `json:"postal_code" validate:"omitempty,max=20"`
	Country      string `json:"country" validate:"omitempty,max=2"`
}

// Item snapshots a variant's price at the time the order was placed.
type Item struct {
	ID         uuid.UUID       `json:"id"`
	OrderID    uuid.UUID       `json:"order_id"`
	VariantID  *uuid.UUID      `json:"variant_id"`
	Quantity   int             `json:"quantity"`
	PriceCents int64           `json:"price_cents"`
	Config     json.RawMessage `json:"config"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Order struct {
	ID                    uuid.UUID  `json:"id"`
	CartID                *uuid.UUID `json:"cart_id"`
	AnonymousID           *string    `json:"anonymous_id"`
	UserID                *uuid.UUID `json:"user_id"`
	Status                Status     `json:"status"`
	SubtotalCents         int64      `json:"subtotal_cents"`
	Shipping              Shipping   `json:"shipping"`
	StripePaymentIntentID *string    `json:"stripe_payment_intent_id"`
	Items                 []Item     `json:"items"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Subtotal is the sum of price_cents x quantity over items.
func Subtotal(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return total
}

type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// UnitsSold is one order item's contribution to sales, used for top-product ranking.
type UnitsSold struct {
	VariantID uuid.UUID
	Quantity  int
}
