package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
)

var ErrProfileNotFound = errors.New("profile not found")

type Repository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error

	ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error)
	AddWishlistItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveWishlistItem(ctx context.Context, userID, productID uuid.UUID) error
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(database db.Querier) Repository {
	return &postgresRepository{db: database}
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	query := `
		SELECT id, full_name, default_shipping_address_line1, default_shipping_address_line2,
		       default_shipping_city, default_shipping_state, default_shipping_postal_code,
		       default_shipping_country, created_at, updated_at
		FROM user_profiles WHERE id = $1
	`
	var p Profile
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.FullName, &p.DefaultShippingAddressLine1,
		&p.DefaultShippingAddressLine2, &p.DefaultShippingCity, &p.DefaultShippingState,
		&p.DefaultShippingPostalCode, &p.DefaultShippingCountry, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("repository: failed to select profile %s: %w", userID, err)
	}
	return &p, nil
}

func (r *postgresRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO user_profiles (id, full_name, default_shipping_address_line1, default_shipping_address_line2,
			default_shipping_city, default_shipping_state, default_shipping_postal_code,
			default_shipping_country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			default_shipping_address_line1 = EXCLUDED.default_shipping_address_line1,
			default_shipping_address_line2 = EXCLUDED.default_shipping_address_line2,
			default_shipping_city = EXCLUDED.default_shipping_city,
			default_shipping_state = EXCLUDED.default_shipping_state,
			default_shipping_postal_code = EXCLUDED.default_shipping_postal_code,
			default_shipping_country = EXCLUDED.default_shipping_country,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, p.ID, p.FullName, p.DefaultShippingAddressLine1,
		p.DefaultShippingAddressLine2, p.DefaultShippingCity, p.DefaultShippingState,
		p.DefaultShippingPostalCode, p.DefaultShippingCountry, now).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert profile %s: %w", p.ID, err)
	}
	return nil
}

func (r *postgresRepository) ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error) {
	query := `
		SELECT user_id, product_id, created_at
		FROM wishlist_items WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query wishlist: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (WishlistEntry, error) {
		var e WishlistEntry
		err := row.Scan(&e.UserID, &e.ProductID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan wishlist: %w", err)
	}
	return entries, nil
}

func (r *postgresRepository) AddWishlistItem(ctx context.Context, userID, productID uuid.UUID) error {
	query := `
		INSERT INTO wishlist_items (user_id, product_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, userID, productID, time.Now().UTC()); err != nil {
		return fmt.Errorf("repository: failed to add wishlist item: %w", err)
	}
	return nil
}

func (r *postgresRepository) RemoveWishlistItem(ctx context.Context, userID, productID uuid.UUID) error {
	query := `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`
	if _, err := r.db.Exec(ctx, query, userID, productID); err != nil {
		return fmt.Errorf("repository: failed to remove wishlist item: %w", err)
	}
	return nil
}
