package models

import "github.com/shopspring/decimal"

// Product is a stocked, priced catalog item.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category,omitempty"`
	Stock    int             `json:"stock"`
	Price    decimal.Decimal `json:"price"`
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
