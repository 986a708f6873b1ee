package catalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gofrs/uuid"
)

const colorAbbrevLen = 4

// SKUPrefix returns prefix when set, otherwise one derived from the product id.
func SKUPrefix(prefix string, productID uuid.UUID) string {
	if p := strings.TrimSpace(prefix); p != "" {
		return p
	}
	hex := strings.ReplaceAll(productID.String(), "-", "")
	return strings.ToUpper(hex[:8])
}

func ColorAbbrev(color string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(color) {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(r)
		if b.Len() == colorAbbrevLen {
			break
		}
	}
	return b.String()
}

func BuildSKU(prefix, color, size string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, ColorAbbrev(color), strings.ToUpper(strings.TrimSpace(size)))
}

type ColorInput struct {
	Name string `json:"name" validate:"required"`
	Hex  string `json:"hex"`
}

type BulkVariantInput struct {
	Colors     []ColorInput
	Sizes      []string
	PriceCents int64
	Stock      *int
	SKUPrefix  string
}

// PlanBulkVariants expands colors x sizes into new variants, skipping every
// (color name, size) pair the product already has. IDs are left unset.
func PlanBulkVariants(productID uuid.UUID, existing []Variant, in BulkVariantInput) []Variant {
	type key struct{ color, size string }
	seen := make(map[key]bool, len(existing))
	for _, v := range existing {
		seen[key{v.ColorName, v.Size}] = true
	}

	prefix := SKUPrefix(in.SKUPrefix, productID)
	planned := make([]Variant, 0, len(in.Colors)*len(in.Sizes))
	for _, c := range in.Colors {
		for _, size := range in.Sizes {
			k := key{c.Name, size}
			if seen[k] {
				continue
			}
			seen[k] = true

			var stock *int
			if in.Stock != nil {
				s := *in.Stock
				stock = &s
			}
			planned = append(planned, Variant{
				ProductID:  productID,
				ColorName:  c.Name,
				ColorHex:   c.Hex,
				Size:       size,
				PriceCents: in.PriceCents,
				SKU:        BuildSKU(prefix, c.Name, size),
				Stock:      stock,
			})
		}
	}
	return planned
}
