package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/db"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrImageNotFound      = errors.New("image not found")
	ErrSlugExists         = errors.New("product with this slug already exists")
	ErrCategorySlugExists = errors.New("category with this slug already exists")
	ErrVariantExists      = errors.New("variant with this color and size already exists")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrRatingConflict     = errors.New("product rating changed concurrently")
)

type Repository interface {
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error)
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	GetVariantByID(ctx context.Context, id uuid.UUID) (*Variant, error)
	GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]Variant, error)
	ListVariantsByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]Variant, error)
	CreateVariants(ctx context.Context, variants []Variant) error
	UpdateVariant(ctx context.Context, v *Variant) error
	UpdateVariantStock(ctx context.Context, id uuid.UUID, stock *int) error
	DeleteVariant(ctx context.Context, id uuid.UUID) error

	GetImageByID(ctx context.Context, id uuid.UUID) (*Image, error)
	ListImagesByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]Image, error)
	CreateImage(ctx context.Context, img *Image) error
	DeleteImage(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListReviews(ctx context.Context, productID uuid.UUID) ([]Review, error)
	CreateReview(ctx context.Context, review *Review) (*Product, error)
}

type postgresRepository struct {
	db db.DB
}

func NewRepository(database db.DB) Repository {
	return &postgresRepository{db: database}
}

const productColumns = `id, slug, name, description, category_id, base_rating, rating_count, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.CategoryID,
		&p.BaseRating, &p.RatingCount, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *postgresRepository) ListProducts(ctx context.Context, f ListFilter) ([]Product, int, error) {
	where := "WHERE ($1::uuid IS NULL OR category_id = $1) AND (NOT $2 OR is_active)"

	var total int
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM products "+where, f.CategoryID, f.OnlyActive).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count products: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + productColumns + " FROM products " + where + " ORDER BY created_at DESC LIMIT $3 OFFSET $4"
	rows, err := r.db.Query(ctx, query, f.CategoryID, f.OnlyActive, limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) { return scanProduct(row) })
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to scan products: %w", err)
	}

	return products, total, nil
}

func (r *postgresRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}
	return &p, nil
}

func (r *postgresRepository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE slug = $1", slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by slug %q: %w", slug, err)
	}
	return &p, nil
}

func (r *postgresRepository) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	rows, err := r.db.Query(ctx, "SELECT "+productColumns+" FROM products WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) { return scanProduct(row) })
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan products by ids: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.Must(uuid.NewV4())
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO products (id, slug, name, description, category_id, base_rating, rating_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Slug, p.Name, p.Description, p.CategoryID,
		p.BaseRating, p.RatingCount, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE products
		SET slug = $1, name = $2, description = $3, category_id = $4, is_active = $5, updated_at = $6
		WHERE id = $7
	`
	cmdTag, err := r.db.Exec(ctx, query, p.Slug, p.Name, p.Description, p.CategoryID, p.IsActive, p.UpdatedAt, p.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

const variantColumns = `id, product_id, color_name, color_hex, size, price_cents, sku, stock, created_at, updated_at`

func scanVariant(row pgx.Row) (Variant, error) {
	var v Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.ColorName, &v.ColorHex, &v.Size,
		&v.PriceCents, &v.SKU, &v.Stock, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *postgresRepository) GetVariantByID(ctx context.Context, id uuid.UUID) (*Variant, error) {
	v, err := scanVariant(r.db.QueryRow(ctx, "SELECT "+variantColumns+" FROM product_variants WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("repository: failed to select variant %s: %w", id, err)
	}
	return &v, nil
}

func (r *postgresRepository) GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]Variant, error) {
	if len(ids) == 0 {
		return []Variant{}, nil
	}
	rows, err := r.db.Query(ctx, "SELECT "+variantColumns+" FROM product_variants WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query variants by ids: %w", err)
	}
	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Variant, error) { return scanVariant(row) })
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan variants: %w", err)
	}
	return variants, nil
}

func (r *postgresRepository) ListVariantsByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]Variant, error) {
	if len(productIDs) == 0 {
		return []Variant{}, nil
	}
	query := "SELECT " + variantColumns + " FROM product_variants WHERE product_id = ANY($1) ORDER BY created_at, color_name, size"
	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query variants by product ids: %w", err)
	}
	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Variant, error) { return scanVariant(row) })
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan variants: %w", err)
	}
	return variants, nil
}

func (r *postgresRepository) CreateVariants(ctx context.Context, variants []Variant) error {
	if len(variants) == 0 {
		return nil
	}
	query := `
		INSERT INTO product_variants (id, product_id, color_name, color_hex, size, price_cents, sku, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for i := range variants {
			v := &variants[i]
			if v.ID == uuid.Nil {
				v.ID = uuid.Must(uuid.NewV4())
			}
			v.CreatedAt, v.UpdatedAt = now, now
			_, err := tx.Exec(ctx, query, v.ID, v.ProductID, v.ColorName, v.ColorHex, v.Size,
				v.PriceCents, v.SKU, v.Stock, v.CreatedAt, v.UpdatedAt)
			if err != nil {
				if db.IsForeignKeyViolation(err) {
					return ErrProductNotFound
				}
				return fmt.Errorf("repository: failed to insert variant %s/%s: %w", v.ColorName, v.Size, err)
			}
		}
		return nil
	})
}

func (r *postgresRepository) UpdateVariant(ctx context.Context, v *Variant) error {
	v.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE product_variants
		SET color_name = $1, color_hex = $2, size = $3, price_cents = $4, sku = $5, stock = $6, updated_at = $7
		WHERE id = $8
	`
	cmdTag, err := r.db.Exec(ctx, query, v.ColorName, v.ColorHex, v.Size, v.PriceCents, v.SKU, v.Stock, v.UpdatedAt, v.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update variant %s: %w", v.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateVariantStock(ctx context.Context, id uuid.UUID, stock *int) error {
	cmdTag, err := r.db.Exec(ctx, "UPDATE product_variants SET stock = $1, updated_at = now() WHERE id = $2", stock, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update stock for variant %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM product_variants WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete variant %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

const imageColumns = `id, product_id, url, color_name, angle, sort_order, created_at`

func scanImage(row pgx.Row) (Image, error) {
	var img Image
	err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.ColorName, &img.Angle, &img.SortOrder, &img.CreatedAt)
	return img, err
}

func (r *postgresRepository) GetImageByID(ctx context.Context, id uuid.UUID) (*Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx, "SELECT "+imageColumns+" FROM product_images WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("repository: failed to select image %s: %w", id, err)
	}
	return &img, nil
}

func (r *postgresRepository) ListImagesByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]Image, error) {
	if len(productIDs) == 0 {
		return []Image{}, nil
	}
	query := "SELECT " + imageColumns + " FROM product_images WHERE product_id = ANY($1) ORDER BY sort_order, created_at"
	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query images: %w", err)
	}
	images, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Image, error) { return scanImage(row) })
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan images: %w", err)
	}
	return images, nil
}

func (r *postgresRepository) CreateImage(ctx context.Context, img *Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.Must(uuid.NewV4())
	}
	img.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO product_images (id, product_id, url, color_name, angle, sort_order, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, img.ID, img.ProductID, img.URL, img.ColorName, img.Angle, img.SortOrder, img.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("repository: failed to insert image: %w", err)
	}
	return nil
}

func (r *postgresRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM product_images WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete image %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

const categoryColumns = `id, slug, name, image_url, sort_order, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.ImageURL, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *postgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY sort_order, name")
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) { return scanCategory(row) })
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan categories: %w", err)
	}
	return categories, nil
}

func (r *postgresRepository) GetCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("repository: failed to select category %s: %w", id, err)
	}
	return &c, nil
}

func (r *postgresRepository) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE slug = $1", slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("repository: failed to select category %q: %w", slug, err)
	}
	return &c, nil
}

func (r *postgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.Must(uuid.NewV4())
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	query := `
		INSERT INTO categories (id, slug, name, image_url, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, c.ID, c.Slug, c.Name, c.ImageURL, c.SortOrder, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrCategorySlugExists
		}
		return fmt.Errorf("repository: failed to insert category: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateCategory(ctx context.Context, c *Category) error {
	c.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE categories
		SET slug = $1, name = $2, image_url = $3, sort_order = $4, updated_at = $5
		WHERE id = $6
	`
	cmdTag, err := r.db.Exec(ctx, query, c.Slug, c.Name, c.ImageURL, c.SortOrder, c.UpdatedAt, c.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrCategorySlugExists
		}
		return fmt.Errorf("repository: failed to update category %s: %w", c.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *postgresRepository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete category %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *postgresRepository) ListReviews(ctx context.Context, productID uuid.UUID) ([]Review, error) {
	query := `
		SELECT id, product_id, user_id, anonymous_id, rating, comment, reviewer_name, created_at
		FROM product_reviews
		WHERE product_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query reviews for product %s: %w", productID, err)
	}
	reviews, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Review, error) {
		var rv Review
		err := row.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.AnonymousID, &rv.Rating, &rv.Comment, &rv.ReviewerName, &rv.CreatedAt)
		return rv, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan reviews for product %s: %w", productID, err)
	}
	return reviews, nil
}

// CreateReview inserts the review and folds its rating into the product mean in one transaction.
// The product row is locked and the update is guarded by the count it was read with.
func (r *postgresRepository) CreateReview(ctx context.Context, review *Review) (*Product, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.Must(uuid.NewV4())
	}
	review.CreatedAt = time.Now().UTC()

	var updated *Product
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		p, err := scanProduct(tx.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", review.ProductID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("repository: failed to lock product %s: %w", review.ProductID, err)
		}

		insert := `
			INSERT INTO product_reviews (id, product_id, user_id, anonymous_id, rating, comment, reviewer_name, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := tx.Exec(ctx, insert, review.ID, review.ProductID, review.UserID, review.AnonymousID,
			review.Rating, review.Comment, review.ReviewerName, review.CreatedAt); err != nil {
			return fmt.Errorf("repository: failed to insert review: %w", err)
		}

		mean, count := NextRating(p.BaseRating, p.RatingCount, review.Rating)
		cmdTag, err := tx.Exec(ctx,
			"UPDATE products SET base_rating = $1, rating_count = $2, updated_at = now() WHERE id = $3 AND rating_count = $4",
			mean, count, p.ID, p.RatingCount)
		if err != nil {
			return fmt.Errorf("repository: failed to update rating for product %s: %w", p.ID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			log.Warn().Stringer("product_id", p.ID).Int("rating_count", p.RatingCount).Msg("repository: rating count moved under lock")
			return ErrRatingConflict
		}

		p.BaseRating, p.RatingCount = mean, count
		updated = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
