package remote

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-sync/internal/domain/cart"
	"github.com/xenking/storefront-sync/internal/domain/coupon"
	"github.com/xenking/storefront-sync/internal/domain/product"
)

// Scalars. The backend is lax about types: ids and amounts may arrive as
// numbers or strings, and any field may be null.

func decStr(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	default:
		return "", errors.Errorf("unexpected %s for string", d.Next())
	}
}

func decInt64(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil || s == "" {
			return 0, err
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return d.Int64()
	}
}

func decInt(d *jx.Decoder) (int, error) {
	v, err := decInt64(d)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt || v > math.MaxInt {
		return 0, errors.Errorf("integer %d out of range", v)
	}
	return int(v), nil
}

// fieldErr names the object key a decode error came from. A nil err stays nil.
func fieldErr(key []byte, err error) error {
	if err != nil {
		return errors.Wrap(err, string(key))
	}
	return nil
}

func decBool(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Null:
		return false, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return false, err
		}
		return strconv.ParseBool(s)
	default:
		return d.Bool()
	}
}

func decDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	v, err := decDecimalPtr(d)
	if err != nil || v == nil {
		return decimal.Zero, err
	}
	return *v, nil
}

func decDecimalPtr(d *jx.Decoder) (*decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return nil, err
		}
		s = v
	default:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		s = n.String()
	}
	if s == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "amount %q", s)
	}
	return &v, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

func decTimePtr(d *jx.Decoder) (*time.Time, error) {
	s, err := decStr(d)
	if err != nil || s == "" {
		return nil, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Errorf("time %q: unknown layout", s)
}

func decTime(d *jx.Decoder) (time.Time, error) {
	t, err := decTimePtr(d)
	if err != nil || t == nil {
		return time.Time{}, err
	}
	return *t, nil
}

// Entities.

func decBrand(d *jx.Decoder) (product.Brand, error) {
	var b product.Brand
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "brandId", "id":
			b.ID, err = decInt64(d)
		case "name", "brandName":
			b.Name, err = decStr(d)
		case "slug":
			b.Slug, err = decStr(d)
		case "logoUrl":
			b.LogoURL, err = decStr(d)
		case "status":
			b.Status, err = decBool(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return b, err
}

func decCategory(d *jx.Decoder) (product.Category, error) {
	var c product.Category
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "categoryId", "id":
			c.ID, err = decInt64(d)
		case "name", "categoryName":
			c.Name, err = decStr(d)
		case "slug":
			c.Slug, err = decStr(d)
		case "parentId":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var id int64
			id, err = decInt64(d)
			c.ParentID = &id
		case "status":
			c.Status, err = decBool(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return c, err
}

// decProduct accepts both nested brand/category objects and the flat
// brandId/brandName/categoryId/categoryName form. References stay zero when
// absent; callers normalize them.
func decProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "productId", "id":
			p.ID, err = decInt64(d)
		case "name", "productName":
			p.Name, err = decStr(d)
		case "slug":
			p.Slug, err = decStr(d)
		case "description":
			p.Description, err = decStr(d)
		case "price":
			p.Price, err = decDecimal(d)
		case "salePrice":
			p.SalePrice, err = decDecimalPtr(d)
		case "category":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			p.Category, err = decCategory(d)
		case "brand":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			p.Brand, err = decBrand(d)
		case "categoryId":
			p.Category.ID, err = decInt64(d)
		case "categoryName":
			p.Category.Name, err = decStr(d)
		case "brandId":
			p.Brand.ID, err = decInt64(d)
		case "brandName":
			p.Brand.Name, err = decStr(d)
		case "status":
			p.Status, err = decBool(d)
		case "isFeatured", "featured":
			p.Featured, err = decBool(d)
		case "createdAt":
			p.CreatedAt, err = decTime(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return p, err
}

func decImage(d *jx.Decoder) (product.Image, error) {
	var img product.Image
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "imageId", "id":
			img.ID, err = decInt64(d)
		case "productId":
			img.ProductID, err = decInt64(d)
		case "imageUrl", "url":
			img.URL, err = decStr(d)
		case "altText":
			img.AltText, err = decStr(d)
		case "sortOrder":
			img.SortOrder, err = decInt(d)
		case "isPrimary", "primary":
			img.Primary, err = decBool(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return img, err
}

func decVariant(d *jx.Decoder) (product.Variant, error) {
	var v product.Variant
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "variantId", "id":
			v.ID, err = decInt64(d)
		case "productId":
			v.ProductID, err = decInt64(d)
		case "size":
			v.Size, err = decStr(d)
		case "color":
			v.Color, err = decStr(d)
		case "stockQuantity":
			v.StockQuantity, err = decInt(d)
		case "status":
			v.Status, err = decBool(d)
		case "sku":
			v.SKU, err = decStr(d)
		case "imageUrl":
			v.ImageURL, err = decStr(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	if v.StockQuantity < 0 {
		v.StockQuantity = 0
	}
	return v, err
}

// pageDTO keeps the raw content so the list can be decoded (and repaired)
// separately from the paging fields.
type pageDTO struct {
	content jx.Raw
	page    product.Page
}

func decPage(d *jx.Decoder) (pageDTO, error) {
	var p pageDTO
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "content", "items":
			p.content, err = d.Raw()
		case "page", "pageNumber":
			p.page.Page, err = decInt(d)
		case "size", "pageSize":
			p.page.Size, err = decInt(d)
		case "totalElements", "totalItems":
			p.page.TotalItems, err = decInt64(d)
		case "totalPages":
			p.page.TotalPages, err = decInt(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return p, err
}

type hierarchyDTO struct {
	parent   product.Category
	children jx.Raw
}

func decHierarchy(d *jx.Decoder) (hierarchyDTO, error) {
	var h hierarchyDTO
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "parent", "category":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			h.parent, err = decCategory(d)
		case "subcategories", "children":
			h.children, err = d.Raw()
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return h, err
}

func decCartItem(d *jx.Decoder) (cart.Item, error) {
	var it cart.Item
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "itemId", "cartItemId", "id":
			it.ID, err = decInt64(d)
		case "variantId":
			it.VariantID, err = decInt64(d)
		case "productId":
			it.ProductID, err = decInt64(d)
		case "productName":
			it.ProductName, err = decStr(d)
		case "productSlug":
			it.ProductSlug, err = decStr(d)
		case "imageUrl", "productImage":
			it.ImageURL, err = decStr(d)
		case "price", "unitPrice":
			it.Price, err = decDecimal(d)
		case "color":
			it.Color, err = decStr(d)
		case "size":
			it.Size, err = decStr(d)
		case "sku":
			it.SKU, err = decStr(d)
		case "stockQuantity":
			it.StockQuantity, err = decInt(d)
		case "quantity":
			it.Quantity, err = decInt(d)
		case "isSelected", "selected":
			it.Selected, err = decBool(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return it, err
}

type cartDTO struct {
	cart  cart.Cart
	items jx.Raw
}

func decCart(d *jx.Decoder) (cartDTO, error) {
	var c cartDTO
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "cartId", "id":
			c.cart.ID, err = decInt64(d)
		case "items", "cartItems":
			c.items, err = d.Raw()
		case "updatedAt":
			c.cart.UpdatedAt, err = decTime(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return c, err
}

func decCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "couponId", "id":
			c.ID, err = decInt64(d)
		case "code":
			var s string
			s, err = decStr(d)
			c.Code = coupon.NormalizeCode(s)
		case "description":
			c.Description, err = decStr(d)
		case "discountType", "type":
			var s string
			s, err = decStr(d)
			c.Type = coupon.DiscountType(strings.ToLower(s))
		case "discountValue", "value":
			c.Value, err = decDecimal(d)
		case "minOrderAmount":
			c.MinOrderAmount, err = decDecimalPtr(d)
		case "maxDiscountAmount":
			c.MaxDiscountAmount, err = decDecimalPtr(d)
		case "usageLimit":
			c.UsageLimit, err = decInt(d)
		case "usedCount":
			c.UsedCount, err = decInt(d)
		case "startDate":
			c.StartDate, err = decTimePtr(d)
		case "endDate":
			c.EndDate, err = decTimePtr(d)
		case "status":
			c.Status, err = decBool(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return c, err
}

func decValidation(d *jx.Decoder) (coupon.Validation, error) {
	var v coupon.Validation
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "valid", "isValid":
			v.Valid, err = decBool(d)
		case "message":
			v.Message, err = decStr(d)
		case "coupon":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			v.Coupon, err = decCoupon(d)
		case "orderAmount":
			v.OrderAmount, err = decDecimal(d)
		case "discountAmount":
			v.DiscountAmount, err = decDecimal(d)
		case "finalAmount":
			v.FinalAmount, err = decDecimal(d)
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return v, err
}

func decOrderStatus(d *jx.Decoder) (cart.OrderStatus, error) {
	var o cart.OrderStatus
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "orderId", "id":
			o.ID, err = decStr(d)
		case "paymentMethod":
			var s string
			s, err = decStr(d)
			o.PaymentMethod = strings.ToUpper(s)
		case "paymentStatus":
			var s string
			s, err = decStr(d)
			o.Paid = o.Paid || strings.EqualFold(s, "PAID")
		case "isPaid", "paid":
			var b bool
			b, err = decBool(d)
			o.Paid = o.Paid || b
		default:
			err = d.Skip()
		}
		return fieldErr(key, err)
	})
	return o, err
}
