package checkout_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront-service/internal/cache"
	"github.com/vasiliy-maslov/storefront-service/internal/cart"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/checkout"
	"github.com/vasiliy-maslov/storefront-service/internal/events"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
	"github.com/vasiliy-maslov/storefront-service/internal/payment"
)

type stubCarts struct {
	cart  *cart.Cart
	items []cart.Item
}

func (s *stubCarts) FindByAnonymousID(ctx context.Context, anonymousID string) (*cart.Cart, error) {
	if s.cart == nil || s.cart.AnonymousID == nil || *s.cart.AnonymousID != anonymousID {
		return nil, cart.ErrCartNotFound
	}
	return s.cart, nil
}

func (s *stubCarts) FindByUserID(ctx context.Context, userID uuid.UUID) (*cart.Cart, error) {
	return nil, cart.ErrCartNotFound
}

func (s *stubCarts) ListItems(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	return s.items, nil
}

type stubVariants map[uuid.UUID]catalog.Variant

func (s stubVariants) GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	out := make([]catalog.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := s[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type memOrders struct {
	orders []*order.Order
	// lookupMisses makes FindPendingByCart report no order that many times.
	lookupMisses int
}

func (m *memOrders) CreateOrder(ctx context.Context, o *order.Order) error {
	for _, existing := range m.orders {
		if existing.Status == order.StatusPending && o.Status == order.StatusPending &&
			existing.CartID != nil && o.CartID != nil && *existing.CartID == *o.CartID {
			return order.ErrPendingOrderExists
		}
	}
	o.ID = uuid.Must(uuid.NewV4())
	m.orders = append(m.orders, o)
	return nil
}

func (m *memOrders) ReplacePending(ctx context.Context, o *order.Order) error {
	for i, existing := range m.orders {
		if existing.ID == o.ID && existing.Status == order.StatusPending {
			m.orders[i] = o
			return nil
		}
	}
	return order.ErrOrderNotFound
}

func (m *memOrders) FindPendingByCart(ctx context.Context, cartID uuid.UUID) (*order.Order, error) {
	if m.lookupMisses > 0 {
		m.lookupMisses--
		return nil, order.ErrOrderNotFound
	}
	for _, o := range m.orders {
		if o.CartID != nil && *o.CartID == cartID && o.Status == order.StatusPending && o.StripePaymentIntentID != nil {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *memOrders) MarkPaidByPaymentIntent(ctx context.Context, intentID string) (*order.Order, bool, error) {
	for _, o := range m.orders {
		if o.StripePaymentIntentID != nil && *o.StripePaymentIntentID == intentID {
			if o.Status != order.StatusPending {
				return o, false, nil
			}
			o.Status = order.StatusPaid
			return o, true, nil
		}
	}
	return nil, false, order.ErrOrderNotFound
}

func (m *memOrders) pending() int {
	n := 0
	for _, o := range m.orders {
		if o.Status == order.StatusPending {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	created   int
	updated   int
	cancelled []string
	amounts   map[string]int64
	event     *payment.Event
	parseErr  error
	verified  bool
}

func (f *fakeProvider) CreateIntent(ctx context.Context, p payment.CreateIntentParams) (*payment.Intent, error) {
	f.created++
	id := fmt.Sprintf("pi_%d", f.created)
	f.amounts[id] = p.AmountCents
	return &payment.Intent{ID: id, ClientSecret: id + "_secret", AmountCents: p.AmountCents}, nil
}

func (f *fakeProvider) UpdateIntentAmount(ctx context.Context, id string, amount int64) (*payment.Intent, error) {
	f.updated++
	f.amounts[id] = amount
	return &payment.Intent{ID: id, ClientSecret: id + "_secret", AmountCents: amount}, nil
}

func (f *fakeProvider) CancelIntent(ctx context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeProvider) ParseWebhook(payload []byte, signature, secret string) (*payment.Event, error) {
	f.verified = true
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

func (f *fakeProvider) ParseUnverifiedWebhook(payload []byte) (*payment.Event, error) {
	f.verified = false
	return f.event, nil
}

type recordingPublisher struct {
	published []events.OrderPaid
}

func (p *recordingPublisher) PublishOrderPaid(ctx context.Context, e events.OrderPaid) error {
	p.published = append(p.published, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	carts     *stubCarts
	orders    *memOrders
	provider  *fakeProvider
	publisher *recordingPublisher
	variant   catalog.Variant
	svc       checkout.Service
}

func newFixture(cfg checkout.Config) *fixture {
	anonymousID := "anon-1"
	variant := catalog.Variant{ID: uuid.Must(uuid.NewV4()), PriceCents: 2500}
	c := &cart.Cart{ID: uuid.Must(uuid.NewV4()), AnonymousID: &anonymousID}

	f := &fixture{
		carts:     &stubCarts{cart: c, items: []cart.Item{{ID: uuid.Must(uuid.NewV4()), CartID: c.ID, VariantID: variant.ID, Quantity: 2}}},
		orders:    &memOrders{},
		provider:  &fakeProvider{amounts: map[string]int64{}},
		publisher: &recordingPublisher{},
		variant:   variant,
	}
	f.svc = checkout.NewService(f.carts, stubVariants{variant.ID: variant}, f.orders, f.provider,
		cache.NewNoopEventStore(), f.publisher, cfg)
	return f
}

func TestCreateOrUpdatePaymentIntent_ReusesIntent(t *testing.T) {
	f := newFixture(checkout.Config{Currency: "usd", MinChargeCents: 50})
	ctx := context.Background()

	first, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), first.TotalCents)
	assert.Equal(t, "pi_1_secret", first.ClientSecret)

	second, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)

	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, f.provider.created)
	assert.Equal(t, 1, f.orders.pending())
	require.Len(t, f.orders.orders, 1)
	assert.Equal(t, order.Subtotal(f.orders.orders[0].Items), f.orders.orders[0].SubtotalCents)
}

func TestCreateOrUpdatePaymentIntent_ReSnapshotsChangedCart(t *testing.T) {
	f := newFixture(checkout.Config{Currency: "usd", MinChargeCents: 50})
	ctx := context.Background()

	_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)

	f.carts.items[0].Quantity = 3
	shipping := &order.Shipping{Name: "Ada Lovelace", Email: "ada@example.com"}
	res, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1", Shipping: shipping})
	require.NoError(t, err)

	assert.Equal(t, int64(7500), res.TotalCents)
	assert.Equal(t, int64(7500), f.provider.amounts[res.PaymentIntentID])
	assert.Equal(t, 1, f.provider.updated)
	stored := f.orders.orders[0]
	assert.Equal(t, int64(7500), stored.SubtotalCents)
	assert.Equal(t, "Ada Lovelace", stored.Shipping.Name)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.Equal(t, int64(2500), stored.Items[0].PriceCents)
}

func TestCreateOrUpdatePaymentIntent_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no_cart", func(t *testing.T) {
		f := newFixture(checkout.Config{})
		_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "someone-else"})
		assert.ErrorIs(t, err, checkout.ErrCartEmpty)
	})

	t.Run("empty_cart", func(t *testing.T) {
		f := newFixture(checkout.Config{})
		f.carts.items = nil
		_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
		assert.ErrorIs(t, err, checkout.ErrCartEmpty)
	})

	t.Run("no_identity", func(t *testing.T) {
		f := newFixture(checkout.Config{})
		_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{})
		assert.ErrorIs(t, err, checkout.ErrCartRequired)
	})

	t.Run("below_minimum", func(t *testing.T) {
		f := newFixture(checkout.Config{MinChargeCents: 10000})
		_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
		assert.ErrorIs(t, err, checkout.ErrBelowMinimum)
		assert.Zero(t, f.provider.created)
	})

	t.Run("variant_gone", func(t *testing.T) {
		f := newFixture(checkout.Config{})
		f.carts.items[0].VariantID = uuid.Must(uuid.NewV4())
		_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
		assert.ErrorIs(t, err, checkout.ErrItemUnavailable)
	})
}

func succeeded(intentID string) *payment.Event {
	return &payment.Event{ID: "evt_" + intentID, Type: payment.EventPaymentIntentSucceeded, PaymentIntentID: intentID}
}

func TestHandleWebhook_MarksOrderPaid(t *testing.T) {
	f := newFixture(checkout.Config{Currency: "usd", WebhookSecret: "whsec"})
	ctx := context.Background()

	res, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)

	f.provider.event = succeeded(res.PaymentIntentID)
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "t=1,v1=abc"))
	assert.True(t, f.provider.verified)
	assert.Equal(t, order.StatusPaid, f.orders.orders[0].Status)
	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, res.OrderID, f.publisher.published[0].OrderID)

	// Redelivery is a no-op.
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "t=1,v1=abc"))
	assert.Len(t, f.publisher.published, 1)
}

func TestHandleWebhook_SecretPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("missing_secret_rejected", func(t *testing.T) {
		f := newFixture(checkout.Config{})
		f.provider.event = succeeded("pi_1")
		err := f.svc.HandleWebhook(ctx, []byte("{}"), "")
		assert.ErrorIs(t, err, checkout.ErrWebhookNotConfigured)
	})

	t.Run("missing_secret_allowed_unverified", func(t *testing.T) {
		f := newFixture(checkout.Config{AllowUnverifiedWebhooks: true})
		_, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
		require.NoError(t, err)

		f.provider.verified = true
		f.provider.event = succeeded("pi_1")
		require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), ""))
		assert.False(t, f.provider.verified)
		assert.Equal(t, order.StatusPaid, f.orders.orders[0].Status)
	})

	t.Run("bad_signature", func(t *testing.T) {
		f := newFixture(checkout.Config{WebhookSecret: "whsec"})
		f.provider.parseErr = payment.ErrInvalidSignature
		err := f.svc.HandleWebhook(ctx, []byte("{}"), "bogus")
		assert.True(t, errors.Is(err, payment.ErrInvalidSignature))
	})
}

func TestHandleWebhook_IgnoresOtherEventsAndUnknownIntents(t *testing.T) {
	f := newFixture(checkout.Config{WebhookSecret: "whsec"})
	ctx := context.Background()

	f.provider.event = &payment.Event{ID: "evt_x", Type: "charge.refunded"}
	assert.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	f.provider.event = succeeded("pi_unknown")
	assert.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "sig"))
	assert.Empty(t, f.publisher.published)
}

func TestCreateOrUpdatePaymentIntent_LosesCreateRace(t *testing.T) {
	f := newFixture(checkout.Config{Currency: "usd", MinChargeCents: 50})
	ctx := context.Background()

	winner, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)

	// The second caller looked before the winner's order was committed.
	f.orders.lookupMisses = 1
	loser, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)

	assert.Equal(t, winner.OrderID, loser.OrderID)
	assert.Equal(t, winner.PaymentIntentID, loser.PaymentIntentID)
	assert.Equal(t, 1, f.orders.pending())
	assert.Equal(t, 2, f.provider.created)
	assert.Equal(t, []string{"pi_2"}, f.provider.cancelled)
}

func TestHandleWebhook_CancelledOrderIsReportedNotPaid(t *testing.T) {
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })

	f := newFixture(checkout.Config{Currency: "usd", WebhookSecret: "whsec"})
	ctx := context.Background()

	res, err := f.svc.CreateOrUpdatePaymentIntent(ctx, checkout.Input{AnonymousID: "anon-1"})
	require.NoError(t, err)
	f.orders.orders[0].Status = order.StatusCancelled

	f.provider.event = succeeded(res.PaymentIntentID)
	require.NoError(t, f.svc.HandleWebhook(ctx, []byte("{}"), "t=1,v1=abc"))

	assert.Equal(t, order.StatusCancelled, f.orders.orders[0].Status)
	assert.Empty(t, f.publisher.published)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "payment succeeded for cancelled order")
}
