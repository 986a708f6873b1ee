package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
)

var (
	ErrOwnerRequired   = errors.New("cart owner is required")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// CatalogReader is the slice of the catalog the cart needs to validate and enrich lines.
type CatalogReader interface {
	GetVariantByID(ctx context.Context, id uuid.UUID) (*catalog.Variant, error)
	GetVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error)
	ListImagesByProductIDs(ctx context.Context, productIDs []uuid.UUID) ([]catalog.Image, error)
}

type Service interface {
	Get(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, in AddItemInput) (*Item, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int) (*Item, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	Merge(ctx context.Context, anonymousID string, userID uuid.UUID) (*View, error)
}

type service struct {
	repo    Repository
	catalog CatalogReader
}

func NewService(repo Repository, catalogReader CatalogReader) Service {
	return &service{repo: repo, catalog: catalogReader}
}

func (s *service) find(ctx context.Context, owner Owner) (*Cart, error) {
	if owner.UserID != nil {
		c, err := s.repo.FindByUserID(ctx, *owner.UserID)
		if err == nil || !errors.Is(err, ErrCartNotFound) || owner.AnonymousID == "" {
			return c, err
		}
	}
	return s.repo.FindByAnonymousID(ctx, owner.AnonymousID)
}

func (s *service) findOrCreate(ctx context.Context, owner Owner) (*Cart, error) {
	c, err := s.find(ctx, owner)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	c = &Cart{UserID: owner.UserID}
	if owner.AnonymousID != "" {
		anonymousID := owner.AnonymousID
		c.AnonymousID = &anonymousID
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Info().Stringer("cart_id", c.ID).Msg("service: cart created")
	return c, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	if owner.IsZero() {
		return emptyView(owner), nil
	}
	c, err := s.find(ctx, owner)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return emptyView(owner), nil
		}
		log.Error().Err(err).Msg("service: failed to find cart")
		return nil, fmt.Errorf("service: failed to find cart: %w", err)
	}
	return s.view(ctx, c)
}

func emptyView(owner Owner) *View {
	v := &View{Items: []Line{}}
	if owner.AnonymousID != "" {
		anonymousID := owner.AnonymousID
		v.AnonymousID = &anonymousID
	}
	return v
}

func (s *service) view(ctx context.Context, c *Cart) (*View, error) {
	items, err := s.repo.ListItems(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	lines, err := s.enrich(ctx, items)
	if err != nil {
		return nil, err
	}

	id := c.ID
	v := &View{ID: &id, AnonymousID: c.AnonymousID, Items: lines}
	for _, l := range lines {
		v.ItemCount += l.Quantity
		v.SubtotalCents += l.LineTotalCents
	}
	return v, nil
}

// enrich joins variants, products and images onto items with one batched query each.
func (s *service) enrich(ctx context.Context, items []Item) ([]Line, error) {
	lines := make([]Line, 0, len(items))
	if len(items) == 0 {
		return lines, nil
	}

	variantIDs := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		variantIDs = append(variantIDs, it.VariantID)
	}
	variants, err := s.catalog.GetVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load cart variants: %w", err)
	}
	variantByID := make(map[uuid.UUID]catalog.Variant, len(variants))
	productIDs := make([]uuid.UUID, 0, len(variants))
	for _, v := range variants {
		variantByID[v.ID] = v
		productIDs = append(productIDs, v.ProductID)
	}

	products, err := s.catalog.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load cart products: %w", err)
	}
	productByID := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	images, err := s.catalog.ListImagesByProductIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("service: failed to load cart images: %w", err)
	}
	imagesByProduct := make(map[uuid.UUID][]catalog.Image)
	for _, img := range images {
		imagesByProduct[img.ProductID] = append(imagesByProduct[img.ProductID], img)
	}

	for _, it := range items {
		line := Line{Item: it}
		if v, ok := variantByID[it.VariantID]; ok {
			line.Variant = &LineVariant{
				ID: v.ID, ColorName: v.ColorName, ColorHex: v.ColorHex, Size: v.Size,
				PriceCents: v.PriceCents, SKU: v.SKU, Stock: v.Stock,
			}
			line.LineTotalCents = v.PriceCents * int64(it.Quantity)
			if p, ok := productByID[v.ProductID]; ok {
				line.Product = &LineProduct{ID: p.ID, Slug: p.Slug, Name: p.Name}
			}
			line.Thumbnail = catalog.ThumbnailForColor(imagesByProduct[v.ProductID], v.ColorName)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, in AddItemInput) (*Item, error) {
	if owner.IsZero() {
		return nil, ErrOwnerRequired
	}
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.catalog.GetVariantByID(ctx, in.VariantID)
	if err != nil {
		return nil, err
	}

	c, err := s.findOrCreate(ctx, owner)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to resolve cart")
		return nil, fmt.Errorf("service: failed to resolve cart: %w", err)
	}

	items, err := s.repo.ListItems(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	inCart := 0
	var match *Item
	for i := range items {
		if items[i].VariantID != variant.ID {
			continue
		}
		inCart += items[i].Quantity
		if match == nil && sameConfig(items[i].Config, in.Config) {
			match = &items[i]
		}
	}

	if err := CheckStock(variant.Stock, inCart, in.Quantity); err != nil {
		log.Warn().Err(err).Stringer("variant_id", variant.ID).Int("in_cart", inCart).Int("requested", in.Quantity).
			Msg("service: add to cart rejected")
		return nil, err
	}

	if match != nil {
		match.Quantity += in.Quantity
		if err := s.repo.UpdateItemQuantity(ctx, match.ID, match.Quantity); err != nil {
			return nil, fmt.Errorf("service: failed to update cart item: %w", err)
		}
		return match, nil
	}

	it := &Item{CartID: c.ID, VariantID: variant.ID, Quantity: in.Quantity, Config: in.Config}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		log.Error().Err(err).Stringer("cart_id", c.ID).Msg("service: failed to add cart item")
		return nil, fmt.Errorf("service: failed to add cart item: %w", err)
	}
	return it, nil
}

func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int) (*Item, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	it, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	variant, err := s.catalog.GetVariantByID(ctx, it.VariantID)
	if err != nil {
		return nil, err
	}

	siblings, err := s.repo.ListItems(ctx, it.CartID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list cart items: %w", err)
	}
	inCart := 0
	for _, other := range siblings {
		if other.ID != it.ID && other.VariantID == it.VariantID {
			inCart += other.Quantity
		}
	}

	if err := CheckStock(variant.Stock, inCart, quantity); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItemQuantity(ctx, it.ID, quantity); err != nil {
		return nil, fmt.Errorf("service: failed to update cart item: %w", err)
	}
	it.Quantity = quantity
	return it, nil
}

func (s *service) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		log.Error().Err(err).Stringer("item_id", itemID).Msg("service: failed to remove cart item")
		return fmt.Errorf("service: failed to remove cart item: %w", err)
	}
	return nil
}

// Merge moves the anonymous cart's lines into the user's cart. The surviving
// cart keeps anonymousID so anonymous lookups still resolve after login.
func (s *service) Merge(ctx context.Context, anonymousID string, userID uuid.UUID) (*View, error) {
	owner := Owner{UserID: &userID}

	var anon *Cart
	if anonymousID != "" {
		c, err := s.repo.FindByAnonymousID(ctx, anonymousID)
		switch {
		case err == nil && c.UserID != nil && *c.UserID != userID:
			// The anonymous id now labels another user's cart; it is not ours to merge.
			log.Warn().Stringer("cart_id", c.ID).Stringer("user_id", userID).
				Msg("service: anonymous cart belongs to another user, skipping merge")
		case err == nil:
			anon = c
		case !errors.Is(err, ErrCartNotFound):
			return nil, fmt.Errorf("service: failed to find anonymous cart: %w", err)
		}
	}

	userCart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return nil, fmt.Errorf("service: failed to find user cart: %w", err)
	}

	switch {
	case anon == nil:
		if userCart == nil {
			if userCart, err = s.findOrCreate(ctx, owner); err != nil {
				return nil, fmt.Errorf("service: failed to create user cart: %w", err)
			}
		}
		return s.view(ctx, userCart)

	case userCart == nil || userCart.ID == anon.ID:
		if anon.UserID == nil || *anon.UserID != userID {
			if err := s.repo.AssignUser(ctx, anon.ID, userID); err != nil {
				return nil, fmt.Errorf("service: failed to claim anonymous cart: %w", err)
			}
			anon.UserID = &userID
		}
		log.Info().Stringer("cart_id", anon.ID).Stringer("user_id", userID).Msg("service: anonymous cart claimed")
		return s.view(ctx, anon)
	}

	userItems, err := s.repo.ListItems(ctx, userCart.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list user cart items: %w", err)
	}
	anonItems, err := s.repo.ListItems(ctx, anon.ID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list anonymous cart items: %w", err)
	}

	plan := PlanMerge(*userCart, *anon, userItems, anonItems, anonymousID)
	if err := s.repo.ApplyMerge(ctx, plan); err != nil {
		log.Error().Err(err).Stringer("cart_id", userCart.ID).Msg("service: failed to merge carts")
		return nil, fmt.Errorf("service: failed to merge carts: %w", err)
	}
	userCart.AnonymousID = &anonymousID

	log.Info().Stringer("cart_id", userCart.ID).Stringer("merged_cart_id", anon.ID).
		Int("moved", len(plan.Moves)).Int("combined", len(plan.Quantities)).Msg("service: carts merged")
	return s.view(ctx, userCart)
}
