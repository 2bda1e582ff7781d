package services

import (
	"github.com/diewo77/devisflow/internal/billing"
	"github.com/diewo77/devisflow/internal/models"
)

type InvoiceService struct{}

func NewInvoiceService() *InvoiceService {
	return &InvoiceService{}
}

// ComputeTotals calculates subtotal, tax and total for a document.
func (s *InvoiceService) ComputeTotals(doc *models.InvoiceData) billing.Totals {
	return billing.Compute(doc.Items, doc.TaxRate)
}

// Summary is the totals block of a document as printed.
type Summary struct {
	Number   string         `json:"invoiceNumber"`
	Client   string         `json:"client"`
	Currency string         `json:"currency"`
	Symbol   string         `json:"symbol"`
	Items    int            `json:"items"`
	Totals   billing.Totals `json:"totals"`
	Subtotal string         `json:"subtotal"`
	Tax      string         `json:"tax"`
	Total    string         `json:"total"`
}

// Summarize computes the totals and renders them in the document language.
func (s *InvoiceService) Summarize(doc *models.InvoiceData) Summary {
	t := s.ComputeTotals(doc)
	lang := string(doc.Language)
	return Summary{
		Number:   doc.InvoiceNumber,
		Client:   doc.Receiver.Name,
		Currency: doc.Currency,
		Symbol:   billing.CurrencySymbol(doc.Currency),
		Items:    len(doc.Items),
		Totals:   t,
		Subtotal: billing.FormatMoney(t.Subtotal, doc.Currency, lang),
		Tax:      billing.FormatMoney(t.Tax, doc.Currency, lang),
		Total:    billing.FormatMoney(t.Total, doc.Currency, lang),
	}
}
