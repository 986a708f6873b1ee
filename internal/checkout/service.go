package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/cache"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/events"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/payment"
)

var (
	ErrCartRequired         = errors.New("anonymous_id is required")
	ErrCartEmpty            = errors.New("cart is empty")
	ErrBelowMinimum         = errors.New("order total is below the minimum charge")
	ErrItemUnavailable      = errors.New("a cart item is no longer available")
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
)

type Config struct {
	Currency                string
	MinChargeCents          int64
	WebhookSecret           string
	AllowUnverifiedWebhooks bool
}

type Input struct {
	AnonymousID string
	UserID      *uuid.UUID
	Shipping    *order.Shipping
}

type Result struct {
	ClientSecret    string    `json:"client_secret"`
	PaymentIntentID string    `json:"payment_intent_id"`
	TotalCents      int64     `json:"total_cents"`
	CartID          uuid.UUID `json:"cart_id"`
	OrderID         uuid.UUID `json:"order_id"`
}

type CartReader interface {
	FindByAnonymousID(ctx context.Context, anonymousID string) (*cart.Cart, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*cart.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error)
}

type VariantReader interface {
	GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	ReplacePending(ctx context.Context, o *order.Order) error
	FindPendingByCart(ctx context.Context, cartID uuid.UUID) (*order.Order, error)
	MarkPaidByPaymentIntent(ctx context.Context, paymentIntentID string) (*order.Order, bool, error)
}

type Service interface {
	CreateOrUpdatePaymentIntent(ctx context.Context, in Input) (*Result, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type service struct {
	carts     CartReader
	variants  VariantReader
	orders    OrderStore
	provider  payment.Provider
	dedupe    cache.EventStore
	publisher events.Publisher
	cfg       Config
}

func NewService(carts CartReader, variants VariantReader, orders OrderStore, provider payment.Provider,
	eventStore cache.EventStore, publisher events.Publisher, cfg Config) Service {
	return &service{
		carts:     carts,
		variants:  variants,
		orders:    orders,
		provider:  provider,
		dedupe:    eventStore,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *service) findCart(ctx context.Context, in Input) (*cart.Cart, error) {
	if in.AnonymousID != "" {
		return s.carts.FindByAnonymousID(ctx, in.AnonymousID)
	}
	if in.UserID != nil {
		return s.carts.FindByUserID(ctx, *in.UserID)
	}
	return nil, ErrCartRequired
}

// snapshot prices the cart's items at current variant prices.
func (s *service) snapshot(ctx context.Context, cartID uuid.UUID) ([]order.Item, error) {
	items, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VariantID)
	}
	variants, err := s.variants.GetVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load variants: %w", err)
	}
	byID := make(map[uuid.UUID]catalog.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	perVariant := make(map[uuid.UUID]int, len(items))
	snapshot := make([]order.Item, 0, len(items))
	for _, it := range items {
		v, ok := byID[it.VariantID]
		if !ok {
			return nil, ErrItemUnavailable
		}
		perVariant[v.ID] += it.Quantity
		if err := cart.CheckStock(v.Stock, perVariant[v.ID]-it.Quantity, it.Quantity); err != nil {
			return nil, err
		}

		variantID := v.ID
		snapshot = append(snapshot, order.Item{
			VariantID:  &variantID,
			Quantity:   it.Quantity,
			PriceCents: v.PriceCents,
			Config:     it.Config,
		})
	}
	return snapshot, nil
}

func (s *service) CreateOrUpdatePaymentIntent(ctx context.Context, in Input) (*Result, error) {
	c, err := s.findCart(ctx, in)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrCartEmpty
		}
		return nil, err
	}

	items, err := s.snapshot(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	total := order.Subtotal(items)
	if total < s.cfg.MinChargeCents {
		log.Warn().Stringer("cart_id", c.ID).Int64("total_cents", total).Msg("service: checkout below minimum charge")
		return nil, ErrBelowMinimum
	}

	pending, err := s.orders.FindPendingByCart(ctx, c.ID)
	switch {
	case err == nil:
		return s.updatePending(ctx, c, pending, items, total, in)
	case errors.Is(err, order.ErrOrderNotFound):
		return s.createPending(ctx, c, items, total, in)
	default:
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to look up pending order")
		return nil, fmt.Errorf("service: failed to look up pending order: %w", err)
	}
}

func (s *service) updatePending(ctx context.Context, c *cart.Cart, o *order.Order, items []order.Item, total int64, in Input) (*Result, error) {
	intentID := *o.StripePaymentIntentID
	intent, err := s.provider.UpdateIntentAmount(ctx, intentID, total)
	if err != nil {
		log.Error().Err(err).Str("payment_intent_id", intentID).Msg("service: failed to update payment intent")
		return nil, fmt.Errorf("service: failed to update payment intent: %w", err)
	}

	o.Items = items
	o.SubtotalCents = total
	if in.Shipping != nil {
		o.Shipping = *in.Shipping
	}
	if in.UserID != nil {
		o.UserID = in.UserID
	}
	if err := s.orders.ReplacePending(ctx, o); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to refresh pending order")
		return nil, fmt.Errorf("service: failed to refresh pending order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("payment_intent_id", intentID).Int64("total_cents", total).
		Msg("service: payment intent reused")
	return &Result{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID, TotalCents: total, CartID: c.ID, OrderID: o.ID}, nil
}

func (s *service) createPending(ctx context.Context, c *cart.Cart, items []order.Item, total int64, in Input) (*Result, error) {
	params := payment.CreateIntentParams{
		AmountCents: total,
		Currency:    s.cfg.Currency,
		Metadata:    map[string]string{"cart_id": c.ID.String()},
	}
	if in.AnonymousID != "" {
		params.Metadata["anonymous_id"] = in.AnonymousID
	}
	if in.Shipping != nil {
		params.ReceiptEmail = in.Shipping.Email
	}

	intent, err := s.provider.CreateIntent(ctx, params)
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to create payment intent")
		return nil, fmt.Errorf("service: failed to create payment intent: %w", err)
	}

	cartID := c.ID
	intentID := intent.ID
	o := &order.Order{
		CartID:                &cartID,
		UserID:                in.UserID,
		Status:                order.StatusPending,
		SubtotalCents:         total,
		StripePaymentIntentID: &intentID,
		Items:                 items,
	}
	if in.AnonymousID != "" {
		anonymousID := in.AnonymousID
		o.AnonymousID = &anonymousID
	}
	if in.Shipping != nil {
		o.Shipping = *in.Shipping
	}
	if err := s.orders.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, order.ErrPendingOrderExists) {
			return s.joinConcurrentPending(ctx, c, intentID, items, total, in)
		}
		log.Error().Err(err).Str("payment_intent_id", intentID).Msg("service: failed to persist pending order")
		return nil, fmt.Errorf("service: failed to persist pending order: %w", err)
	}

	log.Info().Stringer("order_id", o.ID).Str("payment_intent_id", intentID).Int64("total_cents", total).
		Msg("service: payment intent created")
	return &Result{ClientSecret: intent.ClientSecret, PaymentIntentID: intentID, TotalCents: total, CartID: c.ID, OrderID: o.ID}, nil
}

func (s *service) parseEvent(payload []byte, signature string) (*payment.Event, error) {
	if s.cfg.WebhookSecret != "" {
		return s.provider.ParseWebhook(payload, signature, s.cfg.WebhookSecret)
	}
	if !s.cfg.AllowUnverifiedWebhooks {
		return nil, ErrWebhookNotConfigured
	}
	log.Warn().Msg("service: accepting unverified webhook event, no webhook secret configured")
	return s.provider.ParseUnverifiedWebhook(payload)
}

// HandleWebhook marks the order paid when the provider reports a succeeded payment intent.
// Other event types are acknowledged and ignored.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.parseEvent(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != payment.EventPaymentIntentSucceeded {
		log.Debug().Str("event_type", event.Type).Msg("service: ignoring webhook event")
		return nil
	}

	if event.ID != "" {
		first, err := s.dedupe.Claim(ctx, event.ID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("service: event dedupe unavailable, processing anyway")
		} else if !first {
			log.Info().Str("event_id", event.ID).Msg("service: duplicate webhook event skipped")
			return nil
		}
	}

	o, changed, err := s.orders.MarkPaidByPaymentIntent(ctx, event.PaymentIntentID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			log.Warn().Str("payment_intent_id", event.PaymentIntentID).Msg("service: no order for succeeded payment intent")
			return nil
		}
		if event.ID != "" {
			if relErr := s.dedupe.Release(ctx, event.ID); relErr != nil {
				log.Warn().Err(relErr).Str("event_id", event.ID).Msg("service: failed to release webhook event")
			}
		}
		log.Error().Err(err).Str("payment_intent_id", event.PaymentIntentID).Msg("service: failed to mark order paid")
		return fmt.Errorf("service: failed to mark order paid: %w", err)
	}
	if !changed {
		if o.Status == order.StatusCancelled {
			log.Error().Stringer("order_id", o.ID).Str("payment_intent_id", event.PaymentIntentID).
				Msg("service: payment succeeded for cancelled order, needs refund or reinstatement")
			return nil
		}
		log.Info().Stringer("order_id", o.ID).Stringer("status", o.Status).Msg("service: order already past pending")
		return nil
	}

	log.Info().Stringer("order_id", o.ID).Str("payment_intent_id", event.PaymentIntentID).Msg("service: order paid")
	err = s.publisher.PublishOrderPaid(ctx, events.OrderPaid{
		OrderID:         o.ID,
		UserID:          o.UserID,
		PaymentIntentID: event.PaymentIntentID,
		SubtotalCents:   o.SubtotalCents,
		PaidAt:          time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to publish order paid event")
	}
	return nil
}

// joinConcurrentPending handles losing the race to create the cart's pending
// order: the fresh intent is cancelled and the winner's order is updated instead.
func (s *service) joinConcurrentPending(ctx context.Context, c *cart.Cart, orphanIntentID string, items []order.Item, total int64, in Input) (*Result, error) {
	log.Warn().Stringer("cart_id", c.ID).Str("payment_intent_id", orphanIntentID).
		Msg("service: concurrent checkout created a pending order first, reusing it")
	if err := s.provider.CancelIntent(ctx, orphanIntentID); err != nil {
		log.Error().Err(err).Str("payment_intent_id", orphanIntentID).Msg("service: failed to cancel orphaned payment intent")
	}

	pending, err := s.orders.FindPendingByCart(ctx, c.ID)
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to load concurrent pending order")
		return nil, fmt.Errorf("service: failed to load concurrent pending order: %w", err)
	}
	return s.updatePending(ctx, c, pending, items, total, in)
}
