package models

import (
	"bytes"
	"encoding/json"

	"github.com/diewo77/devisflow/validation"
)

// Number is a form value: a JSON number, or a string coerced by
// validation.ParseNumber. Anything else decodes to 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Number(validation.ParseNumber(s))
		return nil
	}
	*n = 0
	return nil
}

// Float returns n as a float64, nil for an absent value.
func (n *Number) Float() *float64 {
	if n == nil {
		return nil
	}
	f := float64(*n)
	return &f
}

// CompanyPatch is a partial update of a party. Nil fields are untouched.
type CompanyPatch struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Website *string `json:"website"`
	Logo    *string `json:"logo" validate:"omitempty,datauri"`
	Ninea   *string `json:"ninea"`
	RCCM    *string `json:"rccm"`
}

// Apply returns c with the non-nil fields of p.
func (p CompanyPatch) Apply(c CompanyDetails) CompanyDetails {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Name, p.Name)
	set(&c.Address, p.Address)
	set(&c.Email, p.Email)
	set(&c.Phone, p.Phone)
	set(&c.Website, p.Website)
	set(&c.Logo, p.Logo)
	set(&c.Ninea, p.Ninea)
	set(&c.RCCM, p.RCCM)
	return c
}

// ItemPatch is a partial update of a line item, also used as the draft of
// a new item.
type ItemPatch struct {
	Description *string `json:"description"`
	Quantity    *Number `json:"quantity"`
	Rate        *Number `json:"rate"`
}

// Apply returns it with the non-nil fields of p.
func (p ItemPatch) Apply(it LineItem) LineItem {
	if p.Description != nil {
		it.Description = *p.Description
	}
	if q := p.Quantity.Float(); q != nil {
		it.Quantity = *q
	}
	if r := p.Rate.Float(); r != nil {
		it.Rate = *r
	}
	return it
}

// NewLineItem builds an item from a draft. A missing or zero quantity
// defaults to 1 and a missing rate to 0.
func NewLineItem(draft ItemPatch) LineItem {
	it := draft.Apply(LineItem{ID: NewID(PrefixItem)})
	if it.Quantity == 0 {
		it.Quantity = 1
	}
	return it
}

// CatalogPatch is a partial update of a catalog entry.
type CatalogPatch struct {
	Description *string `json:"description"`
	Rate        *Number `json:"rate"`
}

// Apply returns c with the non-nil fields of p.
func (p CatalogPatch) Apply(c CatalogItem) CatalogItem {
	if p.Description != nil {
		c.Description = *p.Description
	}
	if r := p.Rate.Float(); r != nil {
		c.Rate = *r
	}
	return c
}
