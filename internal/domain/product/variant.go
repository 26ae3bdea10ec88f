package product

// Variant is a purchasable size/color combination of a product. The tuple
// (ProductID, Size, Color) is unique among a product's variants.
type Variant struct {
	ID            int64
	ProductID     int64
	Size          string
	Color         string
	StockQuantity int
	Status        bool
	SKU           string
	ImageURL      string
}

// Available reports whether the variant can be added to a cart right now.
func (v Variant) Available() bool {
	return v.Status && v.StockQuantity > 0
}

// CloneVariants copies a variant slice. A nil input yields nil.
func CloneVariants(in []Variant) []Variant {
	if in == nil {
		return nil
	}
	out := make([]Variant, len(in))
	copy(out, in)
	return out
}
