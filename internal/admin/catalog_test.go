package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront-service/internal/admin"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
	"github.com/vasiliy-maslov/storefront-service/internal/storage"
)

// memCatalog keeps products, variants, images and categories in maps.
// Methods the admin service does not use panic through the nil embedded interface.
type memCatalog struct {
	catalog.Repository
	products   map[uuid.UUID]catalog.Product
	variants   []catalog.Variant
	images     map[uuid.UUID]catalog.Image
	categories map[uuid.UUID]catalog.Category
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		products:   map[uuid.UUID]catalog.Product{},
		images:     map[uuid.UUID]catalog.Image{},
		categories: map[uuid.UUID]catalog.Category{},
	}
}

func (m *memCatalog) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (m *memCatalog) CreateProduct(ctx context.Context, p *catalog.Product) error {
	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return catalog.ErrSlugExists
		}
	}
	p.ID = newID()
	m.products[p.ID] = *p
	return nil
}

func (m *memCatalog) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	for _, existing := range m.products {
		if existing.Slug == p.Slug && existing.ID != p.ID {
			return catalog.ErrSlugExists
		}
	}
	m.products[p.ID] = *p
	return nil
}

func (m *memCatalog) ListVariantsByProductIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	var out []catalog.Variant
	for _, v := range m.variants {
		for _, id := range ids {
			if v.ProductID == id {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

func (m *memCatalog) CreateVariants(ctx context.Context, variants []catalog.Variant) error {
	for i := range variants {
		variants[i].ID = newID()
		m.variants = append(m.variants, variants[i])
	}
	return nil
}

func (m *memCatalog) GetVariantByID(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	for _, v := range m.variants {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, catalog.ErrVariantNotFound
}

func (m *memCatalog) UpdateVariantStock(ctx context.Context, id uuid.UUID, stock *int) error {
	for i := range m.variants {
		if m.variants[i].ID == id {
			m.variants[i].Stock = stock
			return nil
		}
	}
	return catalog.ErrVariantNotFound
}

func (m *memCatalog) GetImageByID(ctx context.Context, id uuid.UUID) (*catalog.Image, error) {
	img, ok := m.images[id]
	if !ok {
		return nil, catalog.ErrImageNotFound
	}
	return &img, nil
}

func (m *memCatalog) DeleteImage(ctx context.Context, id uuid.UUID) error {
	delete(m.images, id)
	return nil
}

func (m *memCatalog) GetCategoryByID(ctx context.Context, id uuid.UUID) (*catalog.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	return &c, nil
}

func (m *memCatalog) CreateCategory(ctx context.Context, c *catalog.Category) error {
	c.ID = newID()
	m.categories[c.ID] = *c
	return nil
}

type fakeStorage struct {
	storage.Storage
	deleted   []string
	deleteErr error
}

func (f *fakeStorage) ObjectPath(publicURL string) (string, bool) {
	return storage.ParseObjectPath("https://cdn.test/bucket", publicURL)
}

func (f *fakeStorage) Delete(ctx context.Context, objectPath string) error {
	f.deleted = append(f.deleted, objectPath)
	return f.deleteErr
}

func TestCatalogService_CreateProduct(t *testing.T) {
	repo := newMemCatalog()
	svc := admin.NewCatalogService(repo, &fakeStorage{})
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, admin.ProductInput{Name: "Men's Cool T-Shirt!"})
	require.NoError(t, err)
	assert.Equal(t, "mens-cool-t-shirt", p.Slug)
	assert.True(t, p.IsActive)

	_, err = svc.CreateProduct(ctx, admin.ProductInput{Name: "Mens cool t-shirt"})
	assert.ErrorIs(t, err, catalog.ErrSlugExists)

	_, err = svc.CreateProduct(ctx, admin.ProductInput{Name: "!!!"})
	assert.ErrorIs(t, err, admin.ErrInvalidSlug)

	missing := newID()
	_, err = svc.CreateProduct(ctx, admin.ProductInput{Name: "Cap", CategoryID: &missing})
	assert.ErrorIs(t, err, catalog.ErrCategoryNotFound)

	inactive := false
	p, err = svc.CreateProduct(ctx, admin.ProductInput{Name: "Draft", Slug: "Draft Item", IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "draft-item", p.Slug)
	assert.False(t, p.IsActive)
}

func TestCatalogService_Variants(t *testing.T) {
	repo := newMemCatalog()
	svc := admin.NewCatalogService(repo, &fakeStorage{})
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, admin.ProductInput{Name: "Hoodie"})
	require.NoError(t, err)

	v, err := svc.CreateVariant(ctx, p.ID, admin.VariantInput{ColorName: "Black", Size: "M", PriceCents: 4000})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(v.SKU, "-BLAC-M"))

	_, err = svc.CreateVariant(ctx, p.ID, admin.VariantInput{ColorName: "Black", Size: "M", PriceCents: 4000})
	assert.ErrorIs(t, err, catalog.ErrVariantExists)

	_, err = svc.CreateVariant(ctx, newID(), admin.VariantInput{ColorName: "Black", Size: "M"})
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	created, err := svc.BulkCreateVariants(ctx, p.ID, admin.BulkVariantsInput{
		Colors:     []catalog.ColorInput{{Name: "Black"}, {Name: "Sky Blue", Hex: "#87CEEB"}},
		Sizes:      []string{"M", "L"},
		PriceCents: 4200,
		SKUPrefix:  "HOOD",
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	skus := []string{created[0].SKU, created[1].SKU, created[2].SKU}
	assert.Equal(t, []string{"HOOD-BLAC-L", "HOOD-SKYB-M", "HOOD-SKYB-L"}, skus)
	assert.Len(t, repo.variants, 4)

	again, err := svc.BulkCreateVariants(ctx, p.ID, admin.BulkVariantsInput{
		Colors: []catalog.ColorInput{{Name: "Black"}}, Sizes: []string{"M"},
	})
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestCatalogService_UpdateVariantStock(t *testing.T) {
	repo := newMemCatalog()
	svc := admin.NewCatalogService(repo, &fakeStorage{})
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, admin.ProductInput{Name: "Tote"})
	require.NoError(t, err)
	v, err := svc.CreateVariant(ctx, p.ID, admin.VariantInput{ColorName: "Natural", Size: "OS"})
	require.NoError(t, err)

	updated, err := svc.UpdateVariantStock(ctx, v.ID, json.RawMessage(`7`))
	require.NoError(t, err)
	require.NotNil(t, updated.Stock)
	assert.Equal(t, 7, *updated.Stock)

	updated, err = svc.UpdateVariantStock(ctx, v.ID, json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Nil(t, updated.Stock)

	for _, raw := range []string{`-1`, `"5"`, `1.5`, ``} {
		_, err = svc.UpdateVariantStock(ctx, v.ID, json.RawMessage(raw))
		assert.ErrorIs(t, err, catalog.ErrInvalidStock, raw)
	}

	_, err = svc.UpdateVariantStock(ctx, newID(), json.RawMessage(`1`))
	assert.ErrorIs(t, err, catalog.ErrVariantNotFound)
}

func TestCatalogService_DeleteImage(t *testing.T) {
	repo := newMemCatalog()
	store := &fakeStorage{}
	svc := admin.NewCatalogService(repo, store)
	ctx := context.Background()

	stored := catalog.Image{ID: newID(), URL: "https://cdn.test/bucket/products/abc-front.png"}
	external := catalog.Image{ID: newID(), URL: "https://elsewhere.test/front.png"}
	repo.images[stored.ID] = stored
	repo.images[external.ID] = external

	require.NoError(t, svc.DeleteImage(ctx, stored.ID))
	assert.Equal(t, []string{"products/abc-front.png"}, store.deleted)

	require.NoError(t, svc.DeleteImage(ctx, external.ID))
	assert.Len(t, store.deleted, 1)
	assert.Empty(t, repo.images)

	store.deleteErr = errors.New("bucket unavailable")
	failing := catalog.Image{ID: newID(), URL: "https://cdn.test/bucket/products/x.png"}
	repo.images[failing.ID] = failing
	assert.NoError(t, svc.DeleteImage(ctx, failing.ID))

	assert.ErrorIs(t, svc.DeleteImage(ctx, newID()), catalog.ErrImageNotFound)
}

func TestCatalogService_CreateCategory(t *testing.T) {
	svc := admin.NewCatalogService(newMemCatalog(), &fakeStorage{})
	c, err := svc.CreateCategory(context.Background(), admin.CategoryInput{Name: "T-Shirts & Tops", SortOrder: 2})
	require.NoError(t, err)
	assert.Equal(t, "t-shirts-tops", c.Slug)
}
