package variant

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-sync/internal/domain/product"
)

func v(id int64, size, color string, stock int, status bool) product.Variant {
	return product.Variant{ID: id, ProductID: 1, Size: size, Color: color, StockQuantity: stock, Status: status}
}

// shirt: M/Red and L/Blue are purchasable; S/Red is out of stock; M/Blue is
// disabled.
func shirt() []product.Variant {
	return []product.Variant{
		v(1, "S", "Red", 0, true),
		v(2, "M", "Red", 3, true),
		v(3, "M", "Blue", 5, false),
		v(4, "L", "Blue", 2, true),
		v(5, "L", "Green", 1, true),
	}
}

func TestSizesAndColors(t *testing.T) {
	vs := shirt()
	assert.Equal(t, []string{"S", "M", "L"}, Sizes(vs))
	assert.Equal(t, []string{"Red", "Blue", "Green"}, Colors(vs))
	assert.Empty(t, Sizes(nil))
}

func TestAvailabilityByAxis(t *testing.T) {
	vs := shirt()

	assert.Equal(t, []string{"M"}, SizesForColor(vs, "Red"))
	assert.Equal(t, []string{"L"}, SizesForColor(vs, "Blue"))
	assert.Empty(t, SizesForColor(vs, "Black"))

	assert.Empty(t, ColorsForSize(vs, "S"))
	assert.Equal(t, []string{"Red"}, ColorsForSize(vs, "M"))
	assert.Equal(t, []string{"Blue", "Green"}, ColorsForSize(vs, "L"))
}

func TestResolve(t *testing.T) {
	vs := shirt()
	tests := []struct {
		name   string
		size   string
		color  string
		wantID int64
		wantOK bool
	}{
		{name: "available match", size: "M", color: "Red", wantID: 2, wantOK: true},
		{name: "out of stock", size: "S", color: "Red"},
		{name: "disabled", size: "M", color: "Blue"},
		{name: "no such pair", size: "S", color: "Green"},
		{name: "size unset", color: "Red"},
		{name: "color unset", size: "M"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(vs, tt.size, tt.color)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

func TestResolve_DuplicatesFirstWins(t *testing.T) {
	vs := []product.Variant{v(7, "M", "Red", 1, true), v(8, "M", "Red", 4, true)}
	got, ok := Resolve(vs, "M", "Red")
	require.True(t, ok)
	assert.Equal(t, int64(7), got.ID)
}

func TestSelection_CrossConstraint(t *testing.T) {
	vs := shirt()

	sel := Selection{}.WithSize(vs, "M")
	assert.Equal(t, Selection{Size: "M", Color: "Red"}, sel)

	// Red is not available in L: color falls back to the first L color.
	sel = sel.WithSize(vs, "L")
	assert.Equal(t, Selection{Size: "L", Color: "Blue"}, sel)

	// Green is available in L: size is kept.
	sel = sel.WithColor(vs, "Green")
	assert.Equal(t, Selection{Size: "L", Color: "Green"}, sel)

	// Nothing is available in S: color is cleared.
	sel = sel.WithSize(vs, "S")
	assert.Equal(t, Selection{Size: "S"}, sel)

	// Picking Red moves the size to the only size with Red in stock.
	sel = sel.WithColor(vs, "Red")
	assert.Equal(t, Selection{Size: "M", Color: "Red"}, sel)
	got, ok := sel.Resolve(vs)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID)
}

func TestSelection_ClearingAnAxis(t *testing.T) {
	vs := shirt()
	sel := Selection{Size: "M", Color: "Red"}
	assert.Equal(t, Selection{Color: "Red"}, sel.WithSize(vs, ""))
	assert.Equal(t, Selection{Size: "M"}, sel.WithColor(vs, ""))
	assert.False(t, sel.WithColor(vs, "").Complete())
}

func TestInitial(t *testing.T) {
	assert.Equal(t, Selection{Size: "M", Color: "Red"}, Initial(shirt()))
	assert.Equal(t, Selection{}, Initial([]product.Variant{v(1, "S", "Red", 0, true)}))
}

func TestClamp(t *testing.T) {
	active := v(2, "M", "Red", 3, true)
	tests := []struct {
		name        string
		requested   int
		active      *product.Variant
		want        int
		wantLimited bool
	}{
		{name: "stock limit", requested: 5, active: &active, want: 3, wantLimited: true},
		{name: "in range", requested: 2, active: &active, want: 2},
		{name: "at stock", requested: 3, active: &active, want: 3},
		{name: "zero", requested: 0, active: &active, want: 1},
		{name: "negative", requested: -4, active: &active, want: 1},
		{name: "no active variant", requested: 50, want: 50},
		{name: "no active variant lower bound", requested: 0, want: 1},
		{name: "out of stock", requested: 2, active: &product.Variant{Size: "M", Color: "Red", Status: true}, want: 1, wantLimited: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, limited := Clamp(tt.requested, tt.active)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLimited, limited)
		})
	}
}

func randomVariants(r *rand.Rand) []product.Variant {
	sizes := []string{"S", "M", "L", "XL"}
	colors := []string{"Red", "Blue", "Green"}
	var vs []product.Variant
	id := int64(1)
	for _, s := range sizes {
		for _, c := range colors {
			if r.IntN(3) == 0 {
				continue
			}
			vs = append(vs, v(id, s, c, r.IntN(4), r.IntN(4) != 0))
			id++
		}
	}
	return vs
}

func TestProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		vs := randomVariants(r)
		sizes := append(Sizes(vs), "")
		colors := append(Colors(vs), "")

		for _, s := range sizes {
			for _, c := range colors {
				// Joint availability.
				_, ok := Resolve(vs, s, c)
				want := slices.ContainsFunc(vs, func(x product.Variant) bool {
					return x.Size == s && x.Color == c && x.Status && x.StockQuantity > 0
				})
				require.Equal(t, want, ok, "size=%q color=%q", s, c)

				// Cross-constraint reset never leaves an unavailable pair.
				for _, s2 := range sizes {
					if s2 == "" {
						continue
					}
					next := Selection{Size: s, Color: c}.WithSize(vs, s2)
					allowed := ColorsForSize(vs, s2)
					if len(allowed) == 0 {
						require.Empty(t, next.Color)
					} else {
						require.Contains(t, allowed, next.Color)
					}
				}

				// Determinism.
				require.Equal(t, ColorsForSize(vs, s), ColorsForSize(vs, s))
			}
		}

		for _, x := range vs {
			if !x.Available() {
				continue
			}
			for req := -2; req <= x.StockQuantity+3; req++ {
				got, _ := Clamp(req, &x)
				require.GreaterOrEqual(t, got, 1)
				require.LessOrEqual(t, got, x.StockQuantity)
				if req >= 1 && req <= x.StockQuantity {
					require.Equal(t, req, got)
				}
			}
		}
	}
}
