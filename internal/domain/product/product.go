package product

import (
	"fmt"
	"strconv"
)

// Product is a catalog record returned as a direct match.
type Product struct {
	ID          string  `json:"product_id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand,omitempty"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating,omitempty"`
	Stock       int     `json:"stock"`
	Description string  `json:"description,omitempty"`
}

// FromFields builds a Product from flat string fields (hash or search payload).
func FromFields(id string, f map[string]string) (Product, error) {
	p := Product{
		ID:          id,
		Name:        f["name"],
		Brand:       f["brand"],
		Category:    f["category"],
		Description: f["description"],
	}
	if v := f["product_id"]; v != "" {
		p.ID = v
	}
	if p.ID == "" {
		return Product{}, fmt.Errorf("product id is required")
	}

	var err error
	if v := f["price"]; v != "" {
		if p.Price, err = strconv.ParseFloat(v, 64); err != nil {
			return Product{}, fmt.Errorf("parse price %q: %w", v, err)
		}
	}
	if v := f["rating"]; v != "" {
		if p.Rating, err = strconv.ParseFloat(v, 64); err != nil {
			return Product{}, fmt.Errorf("parse rating %q: %w", v, err)
		}
	}
	if v := f["stock"]; v != "" {
		if p.Stock, err = strconv.Atoi(v); err != nil {
			return Product{}, fmt.Errorf("parse stock %q: %w", v, err)
		}
	}
	return p, nil
}

// InStock reports whether the product can be ordered.
func (p Product) InStock() bool { return p.Stock > 0 }
