package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var ErrReviewerRequired = errors.New("review requires a user or an anonymous id")

type ListParams struct {
	CategorySlug string
	Limit        int
	Offset       int
}

type ReviewInput struct {
	UserID       *uuid.UUID
	AnonymousID  string
	Rating       int
	Comment      string
	ReviewerName string
}

// Service is the public, read-mostly view of the catalog.
type Service interface {
	ListProducts(ctx context.Context, params ListParams) ([]ProductSummary, int, error)
	GetProduct(ctx context.Context, slug string) (*ProductDetail, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListReviews(ctx context.Context, slug string) ([]Review, error)
	SubmitReview(ctx context.Context, slug string, in ReviewInput) (*Review, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) ListProducts(ctx context.Context, params ListParams) ([]ProductSummary, int, error) {
	filter := ListFilter{OnlyActive: true, Limit: params.Limit, Offset: params.Offset}
	if params.CategorySlug != "" {
		category, err := s.repo.GetCategoryBySlug(ctx, params.CategorySlug)
		if err != nil {
			if errors.Is(err, ErrCategoryNotFound) {
				return []ProductSummary{}, 0, nil
			}
			return nil, 0, fmt.Errorf("service: failed to resolve category %q: %w", params.CategorySlug, err)
		}
		filter.CategoryID = &category.ID
	}

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return nil, 0, fmt.Errorf("service: failed to list products: %w", err)
	}

	summaries, err := Summarize(ctx, s.repo, products)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// Summarize loads variants and images for all products in two batched queries
// and derives the list-view fields.
func Summarize(ctx context.Context, repo Repository, products []Product) ([]ProductSummary, error) {
	summaries := make([]ProductSummary, 0, len(products))
	if len(products) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	variants, err := repo.ListVariantsByProductIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load variants: %w", err)
	}
	images, err := repo.ListImagesByProductIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load images: %w", err)
	}

	variantsByProduct := make(map[uuid.UUID][]Variant, len(products))
	for _, v := range variants {
		variantsByProduct[v.ProductID] = append(variantsByProduct[v.ProductID], v)
	}
	imagesByProduct := make(map[uuid.UUID][]Image, len(products))
	for _, img := range images {
		imagesByProduct[img.ProductID] = append(imagesByProduct[img.ProductID], img)
	}

	for _, p := range products {
		minPrice, colors, sizes := Facets(variantsByProduct[p.ID])
		summaries = append(summaries, ProductSummary{
			Product:       p,
			MinPriceCents: minPrice,
			Colors:        colors,
			Sizes:         sizes,
			Thumbnail:     Thumbnail(imagesByProduct[p.ID]),
		})
	}
	return summaries, nil
}

func (s *service) GetProduct(ctx context.Context, slug string) (*ProductDetail, error) {
	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Str("slug", slug).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	return LoadDetail(ctx, s.repo, p)
}

// LoadDetail assembles the detail view of p: category, variants, images and facets.
func LoadDetail(ctx context.Context, repo Repository, p *Product) (*ProductDetail, error) {
	ids := []uuid.UUID{p.ID}
	variants, err := repo.ListVariantsByProductIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load variants for product %s: %w", p.ID, err)
	}
	images, err := repo.ListImagesByProductIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load images for product %s: %w", p.ID, err)
	}

	detail := &ProductDetail{
		Product:       *p,
		Variants:      variants,
		Images:        images,
		ImagesByColor: GroupImagesByColor(images),
	}
	detail.MinPriceCents, detail.Colors, detail.Sizes = Facets(variants)

	if p.CategoryID != nil {
		category, err := repo.GetCategoryByID(ctx, *p.CategoryID)
		switch {
		case err == nil:
			detail.Category = category
		case errors.Is(err, ErrCategoryNotFound):
		default:
			return nil, fmt.Errorf("service: failed to load category for product %s: %w", p.ID, err)
		}
	}
	return detail, nil
}

// GroupImagesByColor keys images by color name; untagged images go under "".
func GroupImagesByColor(images []Image) map[string][]Image {
	grouped := make(map[string][]Image)
	for _, img := range images {
		key := ""
		if img.ColorName != nil {
			key = *img.ColorName
		}
		grouped[key] = append(grouped[key], img)
	}
	return grouped
}

func (s *service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories")
		return nil, fmt.Errorf("service: failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *service) ListReviews(ctx context.Context, slug string) ([]Review, error) {
	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, p.ID)
	if err != nil {
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to list reviews")
		return nil, fmt.Errorf("service: failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (s *service) SubmitReview(ctx context.Context, slug string, in ReviewInput) (*Review, error) {
	if !ValidRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	anonymousID := strings.TrimSpace(in.AnonymousID)
	if in.UserID == nil && anonymousID == "" {
		return nil, ErrReviewerRequired
	}

	p, err := s.repo.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	review := &Review{
		ProductID:    p.ID,
		UserID:       in.UserID,
		Rating:       in.Rating,
		Comment:      strings.TrimSpace(in.Comment),
		ReviewerName: strings.TrimSpace(in.ReviewerName),
	}
	if review.ReviewerName == "" {
		review.ReviewerName = "Anonymous"
	}
	if anonymousID != "" {
		review.AnonymousID = &anonymousID
	}

	updated, err := s.repo.CreateReview(ctx, review)
	if err != nil {
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to create review")
		return nil, fmt.Errorf("service: failed to create review: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Float64("base_rating", updated.BaseRating).
		Int("rating_count", updated.RatingCount).Msg("service: review recorded")
	return review, nil
}
