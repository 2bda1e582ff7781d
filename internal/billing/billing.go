// Package billing derives the monetary totals of a document.
//
// Arithmetic is carried out on decimal values built from the float inputs, so
// a subtotal is an exact decimal sum whatever the order of the items. Nothing
// is rounded until display: see Round and Format.
package billing

import (
	"math"

	"github.com/diewo77/devisflow/internal/models"
	"github.com/shopspring/decimal"
)

// Totals groups the three amounts printed at the bottom of a document.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Subtotal returns the sum of quantity * rate over all items.
// Zero and negative values contribute their product like any other.
func Subtotal(items []models.LineItem) float64 {
	return subtotal(items).InexactFloat64()
}

// Tax returns subtotal * ratePercent / 100.
func Tax(subtotal, ratePercent float64) float64 {
	return tax(dec(subtotal), ratePercent).InexactFloat64()
}

// Total returns Subtotal(items) + Tax(Subtotal(items), ratePercent).
func Total(items []models.LineItem, ratePercent float64) float64 {
	sub := subtotal(items)
	return sub.Add(tax(sub, ratePercent)).InexactFloat64()
}

// Compute returns the three amounts at once.
func Compute(items []models.LineItem, ratePercent float64) Totals {
	sub := subtotal(items)
	t := tax(sub, ratePercent)
	return Totals{
		Subtotal: sub.InexactFloat64(),
		Tax:      t.InexactFloat64(),
		Total:    sub.Add(t).InexactFloat64(),
	}
}

// LineAmount is the derived amount of a single item.
func LineAmount(item models.LineItem) float64 {
	return dec(item.Quantity).Mul(dec(item.Rate)).InexactFloat64()
}

func subtotal(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(dec(it.Quantity).Mul(dec(it.Rate)))
	}
	return sum
}

func tax(sub decimal.Decimal, ratePercent float64) decimal.Decimal {
	return sub.Mul(dec(ratePercent)).Shift(-2)
}

// dec converts a float, mapping NaN and infinities to zero like the form
// layer does for anything that is not a number.
func dec(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
