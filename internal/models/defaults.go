package models

import "time"

// DateLayout is the ISO calendar date used for date and dueDate.
const DateLayout = "2006-01-02"

// DueDays is the default payment delay.
const DueDays = 14

// DefaultSender is the profile created on first start.
func DefaultSender() CompanyDetails {
	return CompanyDetails{
		ID:      "default",
		Name:    "Ma Société Sénégal",
		Address: "Dakar Plateau, Rue 12\nSénégal",
		Email:   "contact@societe.sn",
		Phone:   "+221 33 000 00 00",
		Website: "www.societe.sn",
	}
}

// NewProfile is a copy of the default sender under a fresh id.
func NewProfile() CompanyDetails {
	p := DefaultSender()
	p.ID = NewID(PrefixProfile)
	p.Name = "Nouvelle Société"
	return p
}

// DefaultReceiver is the placeholder client of a fresh document.
func DefaultReceiver() CompanyDetails {
	return CompanyDetails{
		ID:      "client-default",
		Name:    "Nom du Client",
		Address: "Avenue Cheikh Anta Diop\nDakar, Sénégal",
		Email:   "client@email.sn",
	}
}

// NewInvoice builds a fresh document for sender, dated now.
func NewInvoice(sender CompanyDetails, now time.Time, number string) InvoiceData {
	date, due := Dates(now)
	return InvoiceData{
		InvoiceNumber: number,
		Date:          date,
		DueDate:       due,
		Sender:        sender,
		Receiver:      DefaultReceiver(),
		Items: []LineItem{
			{ID: NewID(PrefixItem), Description: "Prestation de Services", Quantity: 1, Rate: 50000},
		},
		TaxRate:      18,
		Currency:     "XOF",
		Notes:        "Merci de votre confiance !",
		Terms:        "Paiement attendu sous 14 jours par virement ou chèque.",
		ThemeID:      themes[0].ID,
		DocumentType: DocumentTypeInvoice,
		Language:     LanguageFR,
	}
}

// Dates returns the issue date and the due date for now.
func Dates(now time.Time) (date, due string) {
	return now.Format(DateLayout), now.AddDate(0, 0, DueDays).Format(DateLayout)
}
