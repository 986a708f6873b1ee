package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("cart item not found")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Cart, error)
	FindByAnonymousID(ctx context.Context, anonymousID string) (*Cart, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	AssignUser(ctx context.Context, cartID, userID uuid.UUID) error

	ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	CreateItem(ctx context.Context, it *Item) error
	UpdateItemQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	ApplyMerge(ctx context.Context, plan MergePlan) error
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(database db.DB) Repository {
	return &postgresRepository{db: database}
}

const cartColumns = `id, anonymous_id, user_id, created_at, updated_at`

func scanCart(row pgx.Row) (*Cart, error) {
	var c Cart
	if err := row.Scan(&c.ID, &c.AnonymousID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Cart, error) {
	c, err := scanCart(r.db.QueryRow(ctx, "SELECT "+cartColumns+" FROM carts WHERE id = $1", id))
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, fmt.Errorf("repository: failed to select cart %s: %w", id, err)
	}
	return c, err
}

// FindByAnonymousID returns the most recently created cart tagged with anonymousID.
func (r *postgresRepository) FindByAnonymousID(ctx context.Context, anonymousID string) (*Cart, error) {
	query := "SELECT " + cartColumns + " FROM carts WHERE anonymous_id = $1 ORDER BY created_at DESC LIMIT 1"
	c, err := scanCart(r.db.QueryRow(ctx, query, anonymousID))
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, fmt.Errorf("repository: failed to select cart by anonymous id: %w", err)
	}
	return c, err
}

func (r *postgresRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	query := "SELECT " + cartColumns + " FROM carts WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1"
	c, err := scanCart(r.db.QueryRow(ctx, query, userID))
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, fmt.Errorf("repository: failed to select cart for user %s: %w", userID, err)
	}
	return c, err
}

func (r *postgresRepository) Create(ctx context.Context, c *Cart) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV4())
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `INSERT INTO carts (id, anonymous_id, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.Exec(ctx, query, c.ID, c.AnonymousID, c.UserID, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("repository: failed to insert cart: %w", err)
	}
	return nil
}

func (r *postgresRepository) AssignUser(ctx context.Context, cartID, userID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, "UPDATE carts SET user_id = $1, updated_at = now() WHERE id = $2", userID, cartID)
	if err != nil {
		return fmt.Errorf("repository: failed to assign user to cart %s: %w", cartID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCartNotFound
	}
	return nil
}

const itemColumns = `id, cart_id, variant_id, quantity, config, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	var config []byte
	err := row.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity, &config, &it.CreatedAt, &it.UpdatedAt)
	it.Config = json.RawMessage(config)
	return it, err
}

func (r *postgresRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, "SELECT "+itemColumns+" FROM cart_items WHERE cart_id = $1 ORDER BY created_at", cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query items for cart %s: %w", cartID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) { return scanItem(row) })
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan items for cart %s: %w", cartID, err)
	}
	return items, nil
}

func (r *postgresRepository) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, "SELECT "+itemColumns+" FROM cart_items WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", id, err)
	}
	return &it, nil
}

func (r *postgresRepository) CreateItem(ctx context.Context, it *Item) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.Must(uuid.NewV4())
	}
	it.Config = normalizeConfig(it.Config)
	now := time.Now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now

	query := `
		INSERT INTO cart_items (id, cart_id, variant_id, quantity, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, it.ID, it.CartID, it.VariantID, it.Quantity, []byte(it.Config), it.CreatedAt, it.UpdatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrCartNotFound
		}
		return fmt.Errorf("repository: failed to insert cart item: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateItemQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	cmdTag, err := r.db.Exec(ctx, "UPDATE cart_items SET quantity = $1, updated_at = now() WHERE id = $2", quantity, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM cart_items WHERE id = $1", id); err != nil {
		return fmt.Errorf("repository: failed to delete cart item %s: %w", id, err)
	}
	return nil
}

// ApplyMerge folds the source cart into the target and drops the source, in one transaction.
func (r *postgresRepository) ApplyMerge(ctx context.Context, plan MergePlan) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for itemID, quantity := range plan.Quantities {
			if _, err := tx.Exec(ctx, "UPDATE cart_items SET quantity = $1, updated_at = now() WHERE id = $2", quantity, itemID); err != nil {
				return fmt.Errorf("repository: failed to update merged item %s: %w", itemID, err)
			}
		}
		if len(plan.Moves) > 0 {
			_, err := tx.Exec(ctx, "UPDATE cart_items SET cart_id = $1, updated_at = now() WHERE id = ANY($2)", plan.TargetCartID, plan.Moves)
			if err != nil {
				return fmt.Errorf("repository: failed to move cart items: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM carts WHERE id = $1", plan.SourceCartID); err != nil {
			return fmt.Errorf("repository: failed to delete merged cart %s: %w", plan.SourceCartID, err)
		}
		_, err := tx.Exec(ctx, "UPDATE carts SET anonymous_id = $1, updated_at = now() WHERE id = $2", plan.AnonymousID, plan.TargetCartID)
		if err != nil {
			return fmt.Errorf("repository: failed to retag cart %s: %w", plan.TargetCartID, err)
		}
		return nil
	})
}

func normalizeConfig(config json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(config)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`)
	}
	return config
}

func sameConfig(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, normalizeConfig(a)); err != nil {
		return false
	}
	if err := json.Compact(&cb, normalizeConfig(b)); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
