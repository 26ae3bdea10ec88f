// Package variant resolves size/color selections against a product's
// variants. All functions are pure: identical inputs always give identical
// outputs, and every returned list is ordered by first appearance in the
// input.
package variant

import (
	"slices"

	"github.com/samber/lo"

	"github.com/xenking/storefront-sync/internal/domain/product"
)

// Sizes returns every distinct size, available or not.
func Sizes(vs []product.Variant) []string {
	return lo.Uniq(lo.Map(vs, func(v product.Variant, _ int) string { return v.Size }))
}

// Colors returns every distinct color, available or not.
func Colors(vs []product.Variant) []string {
	return lo.Uniq(lo.Map(vs, func(v product.Variant, _ int) string { return v.Color }))
}

// SizesForColor returns the sizes that have an available variant in color.
func SizesForColor(vs []product.Variant, color string) []string {
	matching := lo.Filter(vs, func(v product.Variant, _ int) bool {
		return v.Color == color && v.Available()
	})
	return Sizes(matching)
}

// ColorsForSize returns the colors that have an available variant in size.
func ColorsForSize(vs []product.Variant, size string) []string {
	matching := lo.Filter(vs, func(v product.Variant, _ int) bool {
		return v.Size == size && v.Available()
	})
	return Colors(matching)
}

// Resolve returns the available variant matching size and color. It reports
// false when either axis is unset or no available variant matches. Should the
// data contain duplicates, the first match wins.
func Resolve(vs []product.Variant, size, color string) (product.Variant, bool) {
	if size == "" || color == "" {
		return product.Variant{}, false
	}
	return lo.Find(vs, func(v product.Variant) bool {
		return v.Size == size && v.Color == color && v.Available()
	})
}

// Selection is the shopper's current choice on both axes. An empty string
// means the axis is unset.
type Selection struct {
	Size  string
	Color string
}

// Complete reports whether both axes are set.
func (s Selection) Complete() bool {
	return s.Size != "" && s.Color != ""
}

// Initial picks the size and color of the first available variant, or an
// empty selection when nothing is available.
func Initial(vs []product.Variant) Selection {
	v, ok := lo.Find(vs, product.Variant.Available)
	if !ok {
		return Selection{}
	}
	return Selection{Size: v.Size, Color: v.Color}
}

// WithSize returns the selection after the shopper picks size. When the
// current color is not available together with the new size it is replaced by
// the first color that is, or cleared when there is none.
func (s Selection) WithSize(vs []product.Variant, size string) Selection {
	next := Selection{Size: size, Color: s.Color}
	if size == "" {
		return next
	}
	colors := ColorsForSize(vs, size)
	if next.Color == "" || !slices.Contains(colors, next.Color) {
		next.Color = first(colors)
	}
	return next
}

// WithColor is the mirror of WithSize.
func (s Selection) WithColor(vs []product.Variant, color string) Selection {
	next := Selection{Size: s.Size, Color: color}
	if color == "" {
		return next
	}
	sizes := SizesForColor(vs, color)
	if next.Size == "" || !slices.Contains(sizes, next.Size) {
		next.Size = first(sizes)
	}
	return next
}

// Resolve returns the variant the selection points at.
func (s Selection) Resolve(vs []product.Variant) (product.Variant, bool) {
	return Resolve(vs, s.Size, s.Color)
}

// Clamp bounds a requested quantity to [1, active.StockQuantity]. limited is
// true when the request exceeded the stock and was lowered. With no active
// variant only the lower bound applies. The lower bound wins over stock: a
// variant with no stock left yields 1 with limited set, so callers should
// only clamp against an Available variant.
func Clamp(requested int, active *product.Variant) (qty int, limited bool) {
	if requested < 1 {
		return 1, false
	}
	if active != nil && requested > active.StockQuantity {
		return max(active.StockQuantity, 1), true
	}
	return requested, false
}

func first(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
