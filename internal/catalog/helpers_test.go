package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront-service/internal/catalog"
)

func TestToSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Men's Cool T-Shirt!", "mens-cool-t-shirt"},
		{"  Hoodie   Deluxe  ", "hoodie-deluxe"},
		{"Crème Brûlée Tee", "crme-brle-tee"},
		{"already-a-slug", "already-a-slug"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, catalog.ToSlug(tt.in))
		})
	}
}

func TestNextRating(t *testing.T) {
	mean, count := catalog.NextRating(4.0, 3, 5)
	assert.Equal(t, 4.3, mean)
	assert.Equal(t, 4, count)

	mean, count = catalog.NextRating(0, 0, 2)
	assert.Equal(t, 2.0, mean)
	assert.Equal(t, 1, count)

	mean, count = catalog.NextRating(4.5, 2, 1)
	assert.Equal(t, 3.3, mean)
	assert.Equal(t, 3, count)
}

func TestValidRating(t *testing.T) {
	for r := 1; r <= 5; r++ {
		assert.True(t, catalog.ValidRating(r))
	}
	assert.False(t, catalog.ValidRating(0))
	assert.False(t, catalog.ValidRating(6))
}

func TestParseStock(t *testing.T) {
	five := 5
	zero := 0
	tests := []struct {
		name    string
		raw     string
		want    *int
		wantErr bool
	}{
		{name: "null_is_unlimited", raw: "null", want: nil},
		{name: "zero", raw: "0", want: &zero},
		{name: "positive", raw: " 5 ", want: &five},
		{name: "negative", raw: "-1", wantErr: true},
		{name: "fraction", raw: "5.5", wantErr: true},
		{name: "string", raw: `"abc"`, wantErr: true},
		{name: "numeric_string", raw: `"5"`, wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "too_large", raw: "99999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.ParseStock(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, catalog.ErrInvalidStock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildSKU(t *testing.T) {
	assert.Equal(t, "TEE-NAVY-XL", catalog.BuildSKU("TEE", "Navy Blue", "xl"))
	assert.Equal(t, "TEE-RED-M", catalog.BuildSKU("TEE", "red", "M"))
	assert.Equal(t, "TEE-HEAT-S", catalog.BuildSKU("TEE", "Heather-Grey", "S"))
}

func TestSKUPrefix(t *testing.T) {
	id := uuid.Must(uuid.FromString("1a2b3c4d-0000-4000-8000-000000000000"))
	assert.Equal(t, "1A2B3C4D", catalog.SKUPrefix("", id))
	assert.Equal(t, "CUSTOM", catalog.SKUPrefix(" CUSTOM ", id))
}

func TestPlanBulkVariants(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())
	stock := 10
	existing := []catalog.Variant{{ProductID: productID, ColorName: "Black", Size: "M"}}

	planned := catalog.PlanBulkVariants(productID, existing, catalog.BulkVariantInput{
		Colors:     []catalog.ColorInput{{Name: "Black", Hex: "#000000"}, {Name: "White", Hex: "#ffffff"}},
		Sizes:      []string{"S", "M", "M"},
		PriceCents: 2500,
		Stock:      &stock,
		SKUPrefix:  "TEE",
	})

	type pair struct{ Color, Size, SKU string }
	got := make([]pair, 0, len(planned))
	for _, v := range planned {
		got = append(got, pair{v.ColorName, v.Size, v.SKU})
		assert.Equal(t, int64(2500), v.PriceCents)
		require.NotNil(t, v.Stock)
		assert.Equal(t, 10, *v.Stock)
	}
	want := []pair{
		{"Black", "S", "TEE-BLAC-S"},
		{"White", "S", "TEE-WHIT-S"},
		{"White", "M", "TEE-WHIT-M"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PlanBulkVariants() mismatch (-want +got):\n%s", diff)
	}

	*planned[0].Stock = 1
	assert.Equal(t, 10, *planned[1].Stock)
}

func TestFacets(t *testing.T) {
	variants := []catalog.Variant{
		{ColorName: "Red", ColorHex: "#f00", Size: "XL", PriceCents: 3000},
		{ColorName: "Blue", ColorHex: "#00f", Size: "S", PriceCents: 2500},
		{ColorName: "Red", ColorHex: "#f00", Size: "M", PriceCents: 2700},
		{ColorName: "Blue", ColorHex: "#00f", Size: "OSFA", PriceCents: 2900},
	}

	minPrice, colors, sizes := catalog.Facets(variants)
	assert.Equal(t, int64(2500), minPrice)
	if diff := cmp.Diff([]catalog.ColorFacet{{Name: "Red", Hex: "#f00"}, {Name: "Blue", Hex: "#00f"}}, colors); diff != "" {
		t.Errorf("colors mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"S", "M", "XL", "OSFA"}, sizes)

	minPrice, colors, sizes = catalog.Facets(nil)
	assert.Zero(t, minPrice)
	assert.NotNil(t, colors)
	assert.Empty(t, colors)
	assert.NotNil(t, sizes)
	assert.Empty(t, sizes)
}

func TestThumbnail(t *testing.T) {
	red := "Red"
	images := []catalog.Image{
		{URL: "back.png", Angle: catalog.AngleBack, SortOrder: 0},
		{URL: "front-2.png", Angle: catalog.AngleFront, SortOrder: 2},
		{URL: "front-1.png", Angle: catalog.AngleFront, SortOrder: 1, ColorName: &red},
	}
	assert.Equal(t, "front-1.png", catalog.Thumbnail(images))
	assert.Equal(t, "back.png", catalog.Thumbnail(images[:1]))
	assert.Equal(t, "", catalog.Thumbnail(nil))
	assert.Equal(t, "front-1.png", catalog.ThumbnailForColor(images, "red"))
	assert.Equal(t, "front-1.png", catalog.ThumbnailForColor(images, "Green"))
}

func TestGroupImagesByColor(t *testing.T) {
	red := "Red"
	images := []catalog.Image{{URL: "a"}, {URL: "b", ColorName: &red}, {URL: "c", ColorName: &red}}
	grouped := catalog.GroupImagesByColor(images)
	assert.Len(t, grouped[""], 1)
	assert.Len(t, grouped["Red"], 2)
}
