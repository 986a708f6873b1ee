package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/storage"
)

var ErrInvalidSlug = errors.New("slug must contain at least one letter or digit")

type ProductInput struct {
	Name        string     `json:"name" validate:"required,max=200"`
	Slug        string     `json:"slug" validate:"max=200"`
	Description string     `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id"`
	IsActive    *bool      `json:"is_active"`
}

type VariantInput struct {
	ColorName  string `json:"color_name" validate:"required,max=100"`
	ColorHex   string `json:"color_hex" validate:"omitempty,hexcolor"`
	Size       string `json:"size" validate:"required,max=20"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
	SKU        string `json:"sku" validate:"max=100"`
	Stock      *int   `json:"stock" validate:"omitempty,gte=0"`
}

type BulkVariantsInput struct {
	Colors     []catalog.ColorInput `json:"colors" validate:"required,min=1,dive"`
	Sizes      []string             `json:"sizes" validate:"required,min=1,dive,required"`
	PriceCents int64                `json:"price_cents" validate:"gte=0"`
	Stock      *int                 `json:"stock" validate:"omitempty,gte=0"`
	SKUPrefix  string               `json:"sku_prefix" validate:"max=20"`
}

type ImageInput struct {
	URL       string  `json:"url" validate:"required,url"`
	ColorName *string `json:"color_name"`
	Angle     string  `json:"angle" validate:"omitempty,oneof=front back"`
	SortOrder int     `json:"sort_order"`
}

type CategoryInput struct {
	Name      string  `json:"name" validate:"required,max=100"`
	Slug      string  `json:"slug" validate:"max=100"`
	ImageURL  *string `json:"image_url" validate:"omitempty,url"`
	SortOrder int     `json:"sort_order"`
}

// CatalogService is the back-office side of the catalog. Unlike the public
// catalog it sees inactive products.
type CatalogService interface {
	ListProducts(ctx context.Context, limit, offset int) ([]catalog.ProductSummary, int, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductDetail, error)
	CreateProduct(ctx context.Context, in ProductInput) (*catalog.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateVariant(ctx context.Context, productID uuid.UUID, in VariantInput) (*catalog.Variant, error)
	BulkCreateVariants(ctx context.Context, productID uuid.UUID, in BulkVariantsInput) ([]catalog.Variant, error)
	UpdateVariant(ctx context.Context, id uuid.UUID, in VariantInput) (*catalog.Variant, error)
	UpdateVariantStock(ctx context.Context, id uuid.UUID, raw json.RawMessage) (*catalog.Variant, error)
	DeleteVariant(ctx context.Context, id uuid.UUID) error

	CreateImage(ctx context.Context, productID uuid.UUID, in ImageInput) (*catalog.Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (*catalog.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	repo  catalog.Repository
	store storage.Storage
}

func NewCatalogService(repo catalog.Repository, store storage.Storage) CatalogService {
	return &catalogService{repo: repo, store: store}
}

func slugFor(explicit, name string) (string, error) {
	source := explicit
	if strings.TrimSpace(source) == "" {
		source = name
	}
	slug := catalog.ToSlug(source)
	if strings.Trim(slug, "-") == "" {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

func (s *catalogService) ListProducts(ctx context.Context, limit, offset int) ([]catalog.ProductSummary, int, error) {
	products, total, err := s.repo.ListProducts(ctx, catalog.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, 0, fmt.Errorf("service: failed to list products: %w", err)
	}
	summaries, err := catalog.Summarize(ctx, s.repo, products)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductDetail, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return catalog.LoadDetail(ctx, s.repo, p)
}

func (s *catalogService) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	_, err := s.repo.GetCategoryByID(ctx, *id)
	return err
}

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*catalog.Product, error) {
	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	p := &catalog.Product{
		Slug:        slug,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CategoryID:  in.CategoryID,
		IsActive:    in.IsActive == nil || *in.IsActive,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, catalog.ErrSlugExists) {
			return nil, catalog.ErrSlugExists
		}
		log.Error().Err(err).Str("slug", slug).Msg("service: failed to create product")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}
	log.Info().Stringer("product_id", p.ID).Str("slug", p.Slug).Msg("service: product created")
	return p, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*catalog.Product, error) {
	p, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	p.Slug = slug
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.CategoryID = in.CategoryID
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, catalog.ErrSlugExists) || errors.Is(err, catalog.ErrProductNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to update product")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes the product; variants, images and reviews cascade.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}
	return nil
}

func (s *catalogService) existingVariants(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	variants, err := s.repo.ListVariantsByProductIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to load variants: %w", err)
	}
	return variants, nil
}

func hasVariant(variants []catalog.Variant, color, size string, except uuid.UUID) bool {
	for _, v := range variants {
		if v.ID != except && v.ColorName == color && v.Size == size {
			return true
		}
	}
	return false
}

func (s *catalogService) CreateVariant(ctx context.Context, productID uuid.UUID, in VariantInput) (*catalog.Variant, error) {
	existing, err := s.existingVariants(ctx, productID)
	if err != nil {
		return nil, err
	}
	color, size := strings.TrimSpace(in.ColorName), strings.TrimSpace(in.Size)
	if hasVariant(existing, color, size, uuid.Nil) {
		return nil, catalog.ErrVariantExists
	}

	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		sku = catalog.BuildSKU(catalog.SKUPrefix("", productID), color, size)
	}
	v := catalog.Variant{
		ProductID:  productID,
		ColorName:  color,
		ColorHex:   in.ColorHex,
		Size:       size,
		PriceCents: in.PriceCents,
		SKU:        sku,
		Stock:      in.Stock,
	}
	created := []catalog.Variant{v}
	if err := s.repo.CreateVariants(ctx, created); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to create variant")
		return nil, fmt.Errorf("service: failed to create variant: %w", err)
	}
	return &created[0], nil
}

func (s *catalogService) BulkCreateVariants(ctx context.Context, productID uuid.UUID, in BulkVariantsInput) ([]catalog.Variant, error) {
	existing, err := s.existingVariants(ctx, productID)
	if err != nil {
		return nil, err
	}

	colors := make([]catalog.ColorInput, 0, len(in.Colors))
	for _, c := range in.Colors {
		colors = append(colors, catalog.ColorInput{Name: strings.TrimSpace(c.Name), Hex: c.Hex})
	}
	sizes := make([]string, 0, len(in.Sizes))
	for _, size := range in.Sizes {
		sizes = append(sizes, strings.TrimSpace(size))
	}

	planned := catalog.PlanBulkVariants(productID, existing, catalog.BulkVariantInput{
		Colors:     colors,
		Sizes:      sizes,
		PriceCents: in.PriceCents,
		Stock:      in.Stock,
		SKUPrefix:  in.SKUPrefix,
	})
	if len(planned) == 0 {
		return planned, nil
	}
	if err := s.repo.CreateVariants(ctx, planned); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Int("count", len(planned)).Msg("service: failed to create variants")
		return nil, fmt.Errorf("service: failed to create variants: %w", err)
	}
	log.Info().Stringer("product_id", productID).Int("created", len(planned)).Msg("service: bulk variants created")
	return planned, nil
}

func (s *catalogService) UpdateVariant(ctx context.Context, id uuid.UUID, in VariantInput) (*catalog.Variant, error) {
	v, err := s.repo.GetVariantByID(ctx, id)
	if err != nil {
		return nil, err
	}
	siblings, err := s.repo.ListVariantsByProductIDs(ctx, []uuid.UUID{v.ProductID})
	if err != nil {
		return nil, fmt.Errorf("service: failed to load variants: %w", err)
	}
	color, size := strings.TrimSpace(in.ColorName), strings.TrimSpace(in.Size)
	if hasVariant(siblings, color, size, v.ID) {
		return nil, catalog.ErrVariantExists
	}

	v.ColorName = color
	v.ColorHex = in.ColorHex
	v.Size = size
	v.PriceCents = in.PriceCents
	if sku := strings.TrimSpace(in.SKU); sku != "" {
		v.SKU = sku
	}
	v.Stock = in.Stock
	if err := s.repo.UpdateVariant(ctx, v); err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("variant_id", id).Msg("service: failed to update variant")
		return nil, fmt.Errorf("service: failed to update variant: %w", err)
	}
	return v, nil
}

func (s *catalogService) UpdateVariantStock(ctx context.Context, id uuid.UUID, raw json.RawMessage) (*catalog.Variant, error) {
	stock, err := catalog.ParseStock(raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateVariantStock(ctx, id, stock); err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("variant_id", id).Msg("service: failed to update stock")
		return nil, fmt.Errorf("service: failed to update stock: %w", err)
	}
	return s.repo.GetVariantByID(ctx, id)
}

func (s *catalogService) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteVariant(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("variant_id", id).Msg("service: failed to delete variant")
		return fmt.Errorf("service: failed to delete variant: %w", err)
	}
	return nil
}

func (s *catalogService) CreateImage(ctx context.Context, productID uuid.UUID, in ImageInput) (*catalog.Image, error) {
	if _, err := s.repo.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	angle := in.Angle
	if angle == "" {
		angle = catalog.AngleFront
	}
	img := &catalog.Image{
		ProductID: productID,
		URL:       in.URL,
		ColorName: in.ColorName,
		Angle:     angle,
		SortOrder: in.SortOrder,
	}
	if err := s.repo.CreateImage(ctx, img); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to create image")
		return nil, fmt.Errorf("service: failed to create image: %w", err)
	}
	return img, nil
}

// DeleteImage removes the image row, then the stored object when the URL
// points into our bucket. Storage failures are logged, not returned.
func (s *catalogService) DeleteImage(ctx context.Context, id uuid.UUID) error {
	img, err := s.repo.GetImageByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteImage(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrImageNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("image_id", id).Msg("service: failed to delete image")
		return fmt.Errorf("service: failed to delete image: %w", err)
	}

	objectPath, ok := s.store.ObjectPath(img.URL)
	if !ok {
		log.Debug().Str("url", img.URL).Msg("service: image url is not a storage object, skipping cleanup")
		return nil
	}
	if err := s.store.Delete(ctx, objectPath); err != nil {
		log.Warn().Err(err).Str("path", objectPath).Msg("service: failed to delete image object")
	}
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, in CategoryInput) (*catalog.Category, error) {
	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	c := &catalog.Category{
		Slug:      slug,
		Name:      strings.TrimSpace(in.Name),
		ImageURL:  in.ImageURL,
		SortOrder: in.SortOrder,
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, catalog.ErrCategorySlugExists) {
			return nil, err
		}
		log.Error().Err(err).Str("slug", slug).Msg("service: failed to create category")
		return nil, fmt.Errorf("service: failed to create category: %w", err)
	}
	return c, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*catalog.Category, error) {
	c, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	slug, err := slugFor(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	c.Slug = slug
	c.Name = strings.TrimSpace(in.Name)
	c.ImageURL = in.ImageURL
	c.SortOrder = in.SortOrder
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		if errors.Is(err, catalog.ErrCategorySlugExists) || errors.Is(err, catalog.ErrCategoryNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("category_id", id).Msg("service: failed to update category")
		return nil, fmt.Errorf("service: failed to update category: %w", err)
	}
	return c, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrCategoryNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("category_id", id).Msg("service: failed to delete category")
		return fmt.Errorf("service: failed to delete category: %w", err)
	}
	return nil
}
