package payment

import (
	"context"
	"errors"
)

const EventPaymentIntentSucceeded = "payment_intent.succeeded"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
}

type CreateIntentParams struct {
	AmountCents  int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

// Event is the part of a provider webhook event the storefront acts on.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
}

// Provider is the card-processing backend used by checkout.
type Provider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	UpdateIntentAmount(ctx context.Context, intentID string, amountCents int64) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
	// ParseWebhook verifies signature against secret and decodes the event.
	ParseWebhook(payload []byte, signature, secret string) (*Event, error)
	// ParseUnverifiedWebhook decodes the event without checking its origin.
	ParseUnverifiedWebhook(payload []byte) (*Event, error)
}
