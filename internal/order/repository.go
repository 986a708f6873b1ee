package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentIntentInUse = errors.New("payment intent already attached to another order")
	ErrPendingOrderExists = errors.New("cart already has a pending order")
)

type Repository interface {
	CreateOrder(ctx context.Context, o *Order) error
	ReplacePending(ctx context.Context, o *Order) error
	FindPendingByCart(ctx context.Context, cartID uuid.UUID) (*Order, error)
	MarkPaidByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, bool, error)

	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	ListRevenueOrders(ctx context.Context, since *time.Time) ([]Order, error)
	ListUnitsSold(ctx context.Context) ([]UnitsSold, error)
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(database db.DB) Repository {
	return &postgresRepository{db: database}
}

// pendingPerCartIndex allows at most one pending order per cart.
const pendingPerCartIndex = "orders_pending_cart_uidx"

const orderColumns = `id, cart_id, anonymous_id, user_id, status, subtotal_cents,
	shipping_name, shipping_email, shipping_address_line1, shipping_address_line2,
	shipping_city, shipping_state, shipping_postal_code, shipping_country,
	stripe_payment_intent_id, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CartID, &o.AnonymousID, &o.UserID, &o.Status, &o.SubtotalCents,
		&o.Shipping.Name, &o.Shipping.Email, &o.Shipping.AddressLine1, &o.Shipping.AddressLine2,
		&o.Shipping.City, &o.Shipping.State, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.StripePaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) { return scanOrder(row) })
}

// CreateOrder inserts the order and its items in one transaction.
func (r *postgresRepository) CreateOrder(ctx context.Context, o *Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.Must(uuid.NewV4())
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO orders (id, cart_id, anonymous_id, user_id, status, subtotal_cents,
				shipping_name, shipping_email, shipping_address_line1, shipping_address_line2,
				shipping_city, shipping_state, shipping_postal_code, shipping_country,
				stripe_payment_intent_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`
		_, err := tx.Exec(ctx, query, o.ID, o.CartID, o.AnonymousID, o.UserID, string(o.Status), o.SubtotalCents,
			o.Shipping.Name, o.Shipping.Email, o.Shipping.AddressLine1, o.Shipping.AddressLine2,
			o.Shipping.City, o.Shipping.State, o.Shipping.PostalCode, o.Shipping.Country,
			o.StripePaymentIntentID, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			if db.IsUniqueViolationOf(err, pendingPerCartIndex) {
				return ErrPendingOrderExists
			}
			if db.IsUniqueViolation(err) {
				return ErrPaymentIntentInUse
			}
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}
		return insertItems(ctx, tx, o)
	})
}

// ReplacePending rewrites the subtotal, shipping and item snapshot of a pending order.
func (r *postgresRepository) ReplacePending(ctx context.Context, o *Order) error {
	o.UpdatedAt = time.Now().UTC()

	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE orders
			SET subtotal_cents = $1, user_id = COALESCE($2, user_id),
				shipping_name = $3, shipping_email = $4, shipping_address_line1 = $5, shipping_address_line2 = $6,
				shipping_city = $7, shipping_state = $8, shipping_postal_code = $9, shipping_country = $10,
				updated_at = $11
			WHERE id = $12 AND status = $13
		`
		cmdTag, err := tx.Exec(ctx, query, o.SubtotalCents, o.UserID,
			o.Shipping.Name, o.Shipping.Email, o.Shipping.AddressLine1, o.Shipping.AddressLine2,
			o.Shipping.City, o.Shipping.State, o.Shipping.PostalCode, o.Shipping.Country,
			o.UpdatedAt, o.ID, string(StatusPending))
		if err != nil {
			return fmt.Errorf("repository: failed to update pending order %s: %w", o.ID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrOrderNotFound
		}

		if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", o.ID); err != nil {
			return fmt.Errorf("repository: failed to clear items for order %s: %w", o.ID, err)
		}
		return insertItems(ctx, tx, o)
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, o *Order) error {
	query := `
		INSERT INTO order_items (id, order_id, variant_id, quantity, price_cents, config, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now().UTC()
	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.Must(uuid.NewV4())
		it.OrderID = o.ID
		it.CreatedAt = now
		it.Config = normalizeConfig(it.Config)

		if _, err := tx.Exec(ctx, query, it.ID, it.OrderID, it.VariantID, it.Quantity, it.PriceCents, []byte(it.Config), it.CreatedAt); err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}
	return nil
}

// FindPendingByCart returns the newest pending order for cartID that already carries a payment intent.
func (r *postgresRepository) FindPendingByCart(ctx context.Context, cartID uuid.UUID) (*Order, error) {
	query := "SELECT " + orderColumns + ` FROM orders
		WHERE cart_id = $1 AND status = $2 AND stripe_payment_intent_id IS NOT NULL
		ORDER BY created_at DESC LIMIT 1`
	o, err := scanOrder(r.db.QueryRow(ctx, query, cartID, string(StatusPending)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select pending order for cart %s: %w", cartID, err)
	}
	return &o, nil
}

// MarkPaidByPaymentIntent moves the pending order for paymentIntentID to paid.
// The bool reports whether this call changed the status; re-delivery returns false.
func (r *postgresRepository) MarkPaidByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, bool, error) {
	query := "UPDATE orders SET status = $1, updated_at = now() WHERE stripe_payment_intent_id = $2 AND status = $3 RETURNING " + orderColumns
	o, err := scanOrder(r.db.QueryRow(ctx, query, string(StatusPaid), paymentIntentID, string(StatusPending)))
	if err == nil {
		return &o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("repository: failed to mark order paid for intent %s: %w", paymentIntentID, err)
	}

	o, err = scanOrder(r.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE stripe_payment_intent_id = $1", paymentIntentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrOrderNotFound
		}
		return nil, false, fmt.Errorf("repository: failed to select order for intent %s: %w", paymentIntentID, err)
	}
	return &o, false, nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	orders := []Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	rows, err := r.db.Query(ctx, "SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user %s: %w", userID, err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan orders for user %s: %w", userID, err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context, f ListFilter) ([]Order, int, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM orders WHERE ($1::text IS NULL OR status = $1)", status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + orderColumns + " FROM orders WHERE ($1::text IS NULL OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	rows, err := r.db.Query(ctx, query, status, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to scan orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachItems loads the items of all orders with a single ANY($1) query.
func (r *postgresRepository) attachItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		orders[i].Items = make([]Item, 0)
	}

	query := `
		SELECT id, order_id, variant_id, quantity, price_cents, config, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		var config []byte
		err := row.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.Quantity, &it.PriceCents, &config, &it.CreatedAt)
		it.Config = json.RawMessage(config)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("repository: failed to scan order items: %w", err)
	}

	index := make(map[uuid.UUID]int, len(orders))
	for i := range orders {
		index[orders[i].ID] = i
	}
	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status Status) error {
	cmdTag, err := r.db.Exec(ctx, "UPDATE orders SET status = $1, updated_at = now() WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update status for order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	log.Info().Stringer("order_id", id).Msg("repository: order deleted")
	return nil
}

// ListRevenueOrders returns revenue-status orders without items, optionally created at or after since.
func (r *postgresRepository) ListRevenueOrders(ctx context.Context, since *time.Time) ([]Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE status = ANY($1) AND ($2::timestamptz IS NULL OR created_at >= $2) ORDER BY created_at"
	rows, err := r.db.Query(ctx, query, statusStrings(RevenueStatuses), since)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query revenue orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan revenue orders: %w", err)
	}
	return orders, nil
}

// ListUnitsSold returns one row per order item of a revenue-status order, in order-item creation order.
func (r *postgresRepository) ListUnitsSold(ctx context.Context) ([]UnitsSold, error) {
	query := `
		SELECT oi.variant_id, oi.quantity
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status = ANY($1) AND oi.variant_id IS NOT NULL
		ORDER BY oi.created_at, oi.id
	`
	rows, err := r.db.Query(ctx, query, statusStrings(RevenueStatuses))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query units sold: %w", err)
	}
	units, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (UnitsSold, error) {
		var u UnitsSold
		err := row.Scan(&u.VariantID, &u.Quantity)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan units sold: %w", err)
	}
	return units, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func normalizeConfig(config json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(config)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`)
	}
	return config
}
