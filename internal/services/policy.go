package services

import (
	"fmt"

	"github.com/diewo77/devisflow/i18n"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/validation"
)

// ItemPolicy decides which quantities and rates a line item may hold.
// The calculator accepts anything; the policy is applied on input.
type ItemPolicy struct {
	AllowNegative bool
	AllowZero     bool
}

// DefaultItemPolicy accepts zero and negative values.
func DefaultItemPolicy() ItemPolicy {
	return ItemPolicy{AllowNegative: true, AllowZero: true}
}

// Check validates a single item.
func (p ItemPolicy) Check(item models.LineItem) error {
	v := validation.Violations{}
	p.check("quantity", item.Quantity, v)
	p.check("rate", item.Rate, v)
	if v.Empty() {
		return nil
	}
	details := make(map[string]any, len(v))
	for field, code := range v {
		details[field] = i18n.T("en", code)
	}
	return ierr.NewErrorf("line item %s rejected", item.ID).
		WithHint("Quantity or rate is not allowed").
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}

// CheckItems validates every item, stopping at the first violation.
func (p ItemPolicy) CheckItems(items []models.LineItem) error {
	for i, it := range items {
		if err := p.Check(it); err != nil {
			return ierr.WithError(err).
				WithMessage(fmt.Sprintf("items[%d]", i)).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func (p ItemPolicy) check(field string, val float64, v validation.Violations) {
	if !p.AllowNegative {
		validation.NonNegativeFloat(field, val, v)
	}
	if !p.AllowZero {
		validation.NonZeroFloat(field, val, v)
	}
}
