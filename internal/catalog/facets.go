package catalog

import (
	"sort"
	"strings"
)

var sizeRank = map[string]int{
	"XXS": 0, "XS": 1, "S": 2, "M": 3, "L": 4, "XL": 5,
	"2XL": 6, "XXL": 6, "3XL": 7, "XXXL": 7, "4XL": 8, "5XL": 9,
}

// Facets scans the variants of one product and returns the lowest price,
// the distinct colors in first-seen order and the distinct sizes in garment order.
func Facets(variants []Variant) (minPrice int64, colors []ColorFacet, sizes []string) {
	colors = make([]ColorFacet, 0)
	sizes = make([]string, 0)
	if len(variants) == 0 {
		return 0, colors, sizes
	}

	seenColor := make(map[string]bool)
	seenSize := make(map[string]bool)
	minPrice = variants[0].PriceCents
	for _, v := range variants {
		if v.PriceCents < minPrice {
			minPrice = v.PriceCents
		}
		if !seenColor[v.ColorName] {
			seenColor[v.ColorName] = true
			colors = append(colors, ColorFacet{Name: v.ColorName, Hex: v.ColorHex})
		}
		if !seenSize[v.Size] {
			seenSize[v.Size] = true
			sizes = append(sizes, v.Size)
		}
	}
	SortSizes(sizes)
	return minPrice, colors, sizes
}

// SortSizes orders known garment sizes from smallest to largest; unknown sizes follow, alphabetically.
func SortSizes(sizes []string) {
	sort.SliceStable(sizes, func(i, j int) bool {
		ri, iKnown := sizeRank[strings.ToUpper(sizes[i])]
		rj, jKnown := sizeRank[strings.ToUpper(sizes[j])]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		default:
			return sizes[i] < sizes[j]
		}
	})
}

// Thumbnail picks the first front image by sort order, falling back to the first image.
func Thumbnail(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	sorted := make([]Image, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SortOrder < sorted[j].SortOrder })
	for _, img := range sorted {
		if img.Angle == AngleFront {
			return img.URL
		}
	}
	return sorted[0].URL
}

// ThumbnailForColor prefers an image tagged with color, then any thumbnail.
func ThumbnailForColor(images []Image, color string) string {
	var tagged []Image
	for _, img := range images {
		if img.ColorName != nil && strings.EqualFold(*img.ColorName, color) {
			tagged = append(tagged, img)
		}
	}
	if len(tagged) > 0 {
		return Thumbnail(tagged)
	}
	return Thumbnail(images)
}
