package models

import "github.com/diewo77/devisflow/internal/validator"

// ValidateDocument checks the enum, date and currency fields of a document.
func ValidateDocument(doc InvoiceData) error {
	return validator.ValidateRequest(doc)
}
