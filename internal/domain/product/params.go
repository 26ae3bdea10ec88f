package product

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-sync/pkg/coalesce"
)

// Sort directions accepted by the listing endpoint.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// DefaultPageSize is used when ListParams.Size is zero.
const DefaultPageSize = 12

// ListParams filters, sorts and paginates a product listing.
type ListParams struct {
	Search     string
	CategoryID int64            `validate:"gte=0"`
	BrandID    int64            `validate:"gte=0"`
	MinPrice   *decimal.Decimal `validate:"-"`
	MaxPrice   *decimal.Decimal `validate:"-"`
	SortBy     string           `validate:"omitempty,oneof=name price createdAt"`
	SortDir    string           `validate:"omitempty,oneof=asc desc"`
	Page       int              `validate:"gte=0"`
	Size       int              `validate:"gte=0,lte=100"`
}

// WithDefaults returns a copy with the page size filled in.
func (p ListParams) WithDefaults() ListParams {
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.SortBy != "" && p.SortDir == "" {
		p.SortDir = SortAsc
	}
	return p
}

// Query returns the non-empty parameters keyed by their wire names.
func (p ListParams) Query() map[string]any {
	q := map[string]any{
		"page": p.Page,
		"size": p.Size,
	}
	if p.Search != "" {
		q["search"] = p.Search
	}
	if p.CategoryID > 0 {
		q["categoryId"] = p.CategoryID
	}
	if p.BrandID > 0 {
		q["brandId"] = p.BrandID
	}
	if p.MinPrice != nil {
		q["minPrice"] = p.MinPrice.String()
	}
	if p.MaxPrice != nil {
		q["maxPrice"] = p.MaxPrice.String()
	}
	if p.SortBy != "" {
		q["sortBy"] = p.SortBy
		q["sortDir"] = p.SortDir
	}
	return q
}

// Signature is the coalescing key of the listing request. Two parameter sets
// with the same effective values share a signature.
func (p ListParams) Signature() string {
	return coalesce.Signature("products", p.WithDefaults().Query())
}
