package product

// UnknownID is the identifier carried by the Unknown sentinels.
const UnknownID int64 = 0

// Brand is a product manufacturer or label.
type Brand struct {
	ID      int64
	Name    string
	Slug    string
	LogoURL string
	Status  bool
}

// Category is a node in the catalog tree.
type Category struct {
	ID       int64
	Name     string
	Slug     string
	ParentID *int64
	Status   bool
}

// Clone returns a deep copy of the category.
func (c Category) Clone() Category {
	out := c
	if c.ParentID != nil {
		id := *c.ParentID
		out.ParentID = &id
	}
	return out
}

// Hierarchy is a category together with its direct subcategories.
type Hierarchy struct {
	Parent   Category
	Children []Category
}

// Clone returns a deep copy of the hierarchy.
func (h Hierarchy) Clone() Hierarchy {
	return Hierarchy{
		Parent:   h.Parent.Clone(),
		Children: CloneCategories(h.Children),
	}
}

// UnknownBrand is substituted when the backend omits a product's brand.
func UnknownBrand() Brand {
	return Brand{ID: UnknownID, Name: "Unknown Brand", Slug: "unknown"}
}

// UnknownCategory is substituted when the backend omits a product's category.
func UnknownCategory() Category {
	return Category{ID: UnknownID, Name: "Unknown Category", Slug: "unknown"}
}

// EmptyHierarchy is returned in place of a missing hierarchy.
func EmptyHierarchy() Hierarchy {
	return Hierarchy{Parent: UnknownCategory(), Children: []Category{}}
}

// CloneBrands copies a brand slice. A nil input yields nil.
func CloneBrands(in []Brand) []Brand {
	if in == nil {
		return nil
	}
	out := make([]Brand, len(in))
	copy(out, in)
	return out
}

// CloneCategories deep-copies a category slice. A nil input yields nil.
func CloneCategories(in []Category) []Category {
	if in == nil {
		return nil
	}
	out := make([]Category, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

// Substitution records which references Normalize had to fill in.
type Substitution struct {
	Brand    bool
	Category bool
}

// Any reports whether at least one reference was substituted.
func (s Substitution) Any() bool {
	return s.Brand || s.Category
}

// Normalize fills in missing brand and category references with the Unknown
// sentinels so downstream code can rely on both being set. A reference is
// missing when it has neither an ID nor a name.
func Normalize(p *Product) Substitution {
	var s Substitution
	if p.Brand.ID == UnknownID && p.Brand.Name == "" {
		p.Brand = UnknownBrand()
		s.Brand = true
	}
	if p.Category.ID == UnknownID && p.Category.Name == "" {
		p.Category = UnknownCategory()
		s.Category = true
	}
	return s
}
