package models

// DocumentType selects the printed title of a document.
type DocumentType string

const (
	DocumentTypeInvoice  DocumentType = "invoice"
	DocumentTypeProforma DocumentType = "proforma"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeProforma
}

// Language selects the display strings of a document.
type Language string

const (
	LanguageFR Language = "fr"
	LanguageEN Language = "en"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	return l == LanguageFR || l == LanguageEN
}

// LineItem is one billable row.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

// CatalogItem is a reusable description and unit price.
type CatalogItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Rate        float64 `json:"rate"`
}

// ToLineItem instantiates the catalog entry as a new row with quantity 1.
func (c CatalogItem) ToLineItem() LineItem {
	return LineItem{
		ID:          NewID(PrefixItem),
		Description: c.Description,
		Quantity:    1,
		Rate:        c.Rate,
	}
}

// CompanyDetails describes a party: the sender (a profile) or the receiver.
// Ninea and RCCM are the Senegalese business registration numbers.
type CompanyDetails struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
	Logo    string `json:"logo,omitempty"`
	Ninea   string `json:"ninea,omitempty"`
	RCCM    string `json:"rccm,omitempty"`
}

// InvoiceData is the whole document.
type InvoiceData struct {
	InvoiceNumber string         `json:"invoiceNumber"`
	Date          string         `json:"date" validate:"omitempty,datetime=2006-01-02"`
	DueDate       string         `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Sender        CompanyDetails `json:"sender"`
	Receiver      CompanyDetails `json:"receiver"`
	Items         []LineItem     `json:"items"`
	TaxRate       float64        `json:"taxRate"`
	Currency      string         `json:"currency" validate:"required"`
	Notes         string         `json:"notes"`
	Terms         string         `json:"terms"`
	ThemeID       string         `json:"themeId"`
	DocumentType  DocumentType   `json:"documentType" validate:"oneof=invoice proforma"`
	Language      Language       `json:"language" validate:"oneof=fr en"`
}

// Clone returns a deep copy; documents are handed out as values and the
// item slice must not be shared with the session.
func (d InvoiceData) Clone() InvoiceData {
	out := d
	if d.Items != nil {
		out.Items = make([]LineItem, len(d.Items))
		copy(out.Items, d.Items)
	}
	return out
}

// ItemIndex returns the position of the item with the given id, or -1.
func (d InvoiceData) ItemIndex(id string) int {
	for i, it := range d.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// ClientName is the receiver name used in export filenames.
func (d InvoiceData) ClientName() string {
	return d.Receiver.Name
}
