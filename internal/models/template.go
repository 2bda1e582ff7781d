package models

import (
	"time"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/validator"
)

// TemplateData is the configuration part of a document. Parties, number
// and dates are deliberately absent.
type TemplateData struct {
	TaxRate      float64      `json:"taxRate"`
	Currency     string       `json:"currency" validate:"required"`
	Notes        string       `json:"notes"`
	Terms        string       `json:"terms"`
	ThemeID      string       `json:"themeId"`
	Language     Language     `json:"language" validate:"oneof=fr en"`
	DocumentType DocumentType `json:"documentType" validate:"oneof=invoice proforma"`
	Items        []LineItem   `json:"items"`
}

// InvoiceTemplate is a named snapshot of TemplateData.
type InvoiceTemplate struct {
	ID           string       `json:"id"`
	Name         string       `json:"name" validate:"required"`
	TemplateData TemplateData `json:"templateData"`
}

// NewTemplate snapshots the configuration of doc under name.
func NewTemplate(name string, doc InvoiceData) InvoiceTemplate {
	items := make([]LineItem, len(doc.Items))
	copy(items, doc.Items)
	return InvoiceTemplate{
		ID:   NewID(PrefixTpl),
		Name: name,
		TemplateData: TemplateData{
			TaxRate:      doc.TaxRate,
			Currency:     doc.Currency,
			Notes:        doc.Notes,
			Terms:        doc.Terms,
			ThemeID:      doc.ThemeID,
			Language:     doc.Language,
			DocumentType: doc.DocumentType,
			Items:        items,
		},
	}
}

// ApplyTemplate builds a new document from tpl. The receiver of current is
// kept, the sender is the given active profile, items get fresh ids and the
// number and dates are regenerated. A template that would leave the document
// without currency, language or document type is rejected whole.
func ApplyTemplate(tpl InvoiceTemplate, current InvoiceData, sender CompanyDetails, now time.Time, numbers func() string) (InvoiceData, error) {
	if err := validator.ValidateRequest(tpl.TemplateData); err != nil {
		return current.Clone(), ierr.WithError(err).
			WithHintf("Template %q is incomplete", tpl.Name).
			Mark(ierr.ErrValidation)
	}
	if numbers == nil {
		numbers = NewInvoiceNumber
	}

	data := tpl.TemplateData
	out := current.Clone()
	out.Sender = sender
	out.TaxRate = data.TaxRate
	out.Currency = data.Currency
	out.Notes = data.Notes
	out.Terms = data.Terms
	out.ThemeID = ThemeOrDefault(data.ThemeID).ID
	out.Language = data.Language
	out.DocumentType = data.DocumentType
	out.Items = make([]LineItem, 0, len(data.Items))
	for _, it := range data.Items {
		it.ID = NewID(PrefixItem)
		out.Items = append(out.Items, it)
	}
	out.Date, out.DueDate = Dates(now)
	out.InvoiceNumber = freshNumber(current.InvoiceNumber, numbers)
	return out, nil
}

// freshNumber draws from numbers until it differs from previous.
func freshNumber(previous string, numbers func() string) string {
	n := numbers()
	for i := 0; i < 16 && n == previous; i++ {
		n = numbers()
	}
	return n
}
