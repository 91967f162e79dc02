package catalog

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image,omitempty"`
	Stock       int             `json:"stock"`
	SellerID    string          `json:"seller_id,omitempty"` // empty: unowned / admin-seeded
	Rating      float64         `json:"rating"`
	ReviewCount int             `json:"review_count"`
}

func (p Product) IDString() string { return strconv.FormatInt(p.ID, 10) }

// NewProduct is a product before the store assigned its id.
type NewProduct struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image,omitempty"`
	Stock       int             `json:"stock"`
	SellerID    string          `json:"seller_id,omitempty"`
}

// Patch is a shallow partial update. It carries no id, so an update can
// never move a product onto another product's id.
type Patch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	SellerID    *string          `json:"seller_id,omitempty"`
	Rating      *float64         `json:"rating,omitempty"`
	ReviewCount *int             `json:"review_count,omitempty"`
}

func (np NewProduct) validate(op string) error {
	if np.Name == "" {
		return apperr.Invalid(op, "name is required")
	}
	if np.Price.IsNegative() {
		return apperr.Invalid(op, "price must not be negative")
	}
	if np.Stock < 0 {
		return apperr.Invalid(op, "stock must not be negative")
	}
	return nil
}

func (p Patch) apply(op string, dst Product) (Product, error) {
	if p.Name != nil {
		if *p.Name == "" {
			return dst, apperr.Invalid(op, "name is required")
		}
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Price != nil {
		if p.Price.IsNegative() {
			return dst, apperr.Invalid(op, "price must not be negative")
		}
		dst.Price = *p.Price
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.Image != nil {
		dst.Image = *p.Image
	}
	if p.Stock != nil {
		if *p.Stock < 0 {
			return dst, apperr.Invalid(op, "stock must not be negative")
		}
		dst.Stock = *p.Stock
	}
	if p.SellerID != nil {
		dst.SellerID = *p.SellerID
	}
	if p.Rating != nil {
		if *p.Rating < 0 || *p.Rating > 5 {
			return dst, apperr.Invalid(op, "rating must be within 0..5")
		}
		dst.Rating = *p.Rating
	}
	if p.ReviewCount != nil {
		if *p.ReviewCount < 0 {
			return dst, apperr.Invalid(op, "review count must not be negative")
		}
		dst.ReviewCount = *p.ReviewCount
	}
	return dst, nil
}
