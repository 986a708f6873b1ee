package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/order"
)

type OrderReader interface {
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
}

type Service interface {
	// GetProfile returns the stored profile, or an empty one for users who never saved it.
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*Profile, error)
	OrderHistory(ctx context.Context, userID uuid.UUID) ([]HistoryOrder, error)
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]catalog.ProductSummary, error)
	AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error
	RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error
}

type service struct {
	repo    Repository
	orders  OrderReader
	catalog catalog.Repository
}

func NewService(repo Repository, orders OrderReader, catalogRepo catalog.Repository) Service {
	return &service{repo: repo, orders: orders, catalog: catalogRepo}
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return &Profile{ID: userID}, nil
		}
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch profile")
		return nil, fmt.Errorf("service: failed to fetch profile: %w", err)
	}
	return p, nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (*Profile, error) {
	p := &Profile{
		ID:                          userID,
		FullName:                    in.FullName,
		DefaultShippingAddressLine1: in.DefaultShippingAddressLine1,
		DefaultShippingAddressLine2: in.DefaultShippingAddressLine2,
		DefaultShippingCity:         in.DefaultShippingCity,
		DefaultShippingState:        in.DefaultShippingState,
		DefaultShippingPostalCode:   in.DefaultShippingPostalCode,
		DefaultShippingCountry:      in.DefaultShippingCountry,
	}
	if err := s.repo.UpsertProfile(ctx, p); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to save profile")
		return nil, fmt.Errorf("service: failed to save profile: %w", err)
	}
	return p, nil
}

func (s *service) OrderHistory(ctx context.Context, userID uuid.UUID) ([]HistoryOrder, error) {
	orders, err := s.orders.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch order history")
		return nil, fmt.Errorf("service: failed to fetch order history: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	var variantIDs []uuid.UUID
	for _, o := range orders {
		for _, item := range o.Items {
			if item.VariantID == nil {
				continue
			}
			if _, ok := seen[*item.VariantID]; !ok {
				seen[*item.VariantID] = struct{}{}
				variantIDs = append(variantIDs, *item.VariantID)
			}
		}
	}

	variants := make(map[uuid.UUID]catalog.Variant)
	products := make(map[uuid.UUID]catalog.Product)
	if len(variantIDs) > 0 {
		vs, err := s.catalog.GetVariantsByIDs(ctx, variantIDs)
		if err != nil {
			return nil, fmt.Errorf("service: failed to load order variants: %w", err)
		}
		productIDs := make([]uuid.UUID, 0, len(vs))
		for _, v := range vs {
			if _, ok := variants[v.ID]; ok {
				continue
			}
			variants[v.ID] = v
			productIDs = append(productIDs, v.ProductID)
		}
		ps, err := s.catalog.GetProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, fmt.Errorf("service: failed to load order products: %w", err)
		}
		for _, p := range ps {
			products[p.ID] = p
		}
	}

	history := make([]HistoryOrder, 0, len(orders))
	for _, o := range orders {
		h := HistoryOrder{Order: o, Items: make([]HistoryItem, 0, len(o.Items))}
		for _, item := range o.Items {
			hi := HistoryItem{Item: item}
			if item.VariantID != nil {
				if v, ok := variants[*item.VariantID]; ok {
					hv := &HistoryVariant{ID: v.ID, ColorName: v.ColorName, Size: v.Size, SKU: v.SKU}
					if p, ok := products[v.ProductID]; ok {
						hv.Product = &HistoryProduct{ID: p.ID, Slug: p.Slug, Name: p.Name}
					}
					hi.Variant = hv
				}
			}
			h.Items = append(h.Items, hi)
		}
		history = append(history, h)
	}
	return history, nil
}

func (s *service) ListWishlist(ctx context.Context, userID uuid.UUID) ([]catalog.ProductSummary, error) {
	entries, err := s.repo.ListWishlist(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch wishlist")
		return nil, fmt.Errorf("service: failed to fetch wishlist: %w", err)
	}
	if len(entries) == 0 {
		return []catalog.ProductSummary{}, nil
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ProductID
	}
	found, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load wishlist products: %w", err)
	}
	byID := make(map[uuid.UUID]catalog.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	// Keep wishlist order (newest first) and hide deactivated products.
	products := make([]catalog.Product, 0, len(entries))
	for _, e := range entries {
		if p, ok := byID[e.ProductID]; ok && p.IsActive {
			products = append(products, p)
		}
	}
	return catalog.Summarize(ctx, s.catalog, products)
}

func (s *service) AddToWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	p, err := s.catalog.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return catalog.ErrProductNotFound
		}
		return fmt.Errorf("service: failed to fetch product: %w", err)
	}
	if !p.IsActive {
		return catalog.ErrProductNotFound
	}
	if err := s.repo.AddWishlistItem(ctx, userID, productID); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to add wishlist item")
		return fmt.Errorf("service: failed to add wishlist item: %w", err)
	}
	return nil
}

func (s *service) RemoveFromWishlist(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.repo.RemoveWishlistItem(ctx, userID, productID); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to remove wishlist item")
		return fmt.Errorf("service: failed to remove wishlist item: %w", err)
	}
	return nil
}
