package i18n

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultLang is used when nothing better is known.
const DefaultLang = "fr"

var supported = []language.Tag{language.French, language.English}

var matcher = language.NewMatcher(supported)

var translations = map[string]map[string]string{
	"fr": {
		// document
		"invoiceTitle":         "Facture",
		"proformaInvoiceTitle": "Facture Proforma",
		"date":                 "Date",
		"dueDate":              "Échéance",
		"billedTo":             "Facturé à",
		"description":          "Description",
		"quantity":             "Qté",
		"rate":                 "P.U.",
		"amount":               "Montant",
		"noItems":              "Aucun article",
		"subtotal":             "Sous-Total",
		"tax":                  "TVA",
		"totalDue":             "Total à Payer",
		"notes":                "Notes",
		"terms":                "Conditions",
		"legalInfo":            "Infos légales",
		"defaultNote":          "Merci pour votre confiance.",
		"generatedWith":        "Généré avec DevisFlow SN",
		"print":                "Imprimer",
		"page":                 "Page",
		// assistant
		"assistantGreeting": "Comment puis-je vous aider ?",
		"assistantError":    "Erreur, réessayez.",
		// validation
		"required":             "Requis",
		"must_be_positive":     "Doit être positif",
		"must_not_be_negative": "Ne doit pas être négatif",
		"must_not_be_zero":     "Ne doit pas être nul",
		"out_of_range":         "Hors limites",
	},
	"en": {
		"invoiceTitle":         "Invoice",
		"proformaInvoiceTitle": "Proforma Invoice",
		"date":                 "Date",
		"dueDate":              "Due Date",
		"billedTo":             "Billed To",
		"description":          "Description",
		"quantity":             "Qty",
		"rate":                 "Rate",
		"amount":               "Amount",
		"noItems":              "No items",
		"subtotal":             "Subtotal",
		"tax":                  "Tax",
		"totalDue":             "Total Due",
		"notes":                "Notes",
		"terms":                "Terms",
		"legalInfo":            "Legal Info",
		"defaultNote":          "Thank you for your business.",
		"generatedWith":        "Generated with DevisFlow SN",
		"print":                "Print",
		"page":                 "Page",
		"assistantGreeting":    "How can I help you?",
		"assistantError":       "Error, please try again.",
		"required":             "Required",
		"must_be_positive":     "Must be positive",
		"must_not_be_negative": "Must not be negative",
		"must_not_be_zero":     "Must not be zero",
		"out_of_range":         "Out of range",
	},
}

// T returns the translation of code in lang. Unknown languages fall back to
// French, unknown codes to the code itself.
func T(lang, code string) string {
	if m, ok := translations[Normalize(lang)]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := translations[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Normalize lowercases lang and keeps supported values, anything else is "".
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, ok := translations[lang]; ok {
		return lang
	}
	return ""
}

// DetectLanguage picks fr or en from an Accept-Language header.
func DetectLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	tag, _, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := tag.Base()
	return base.String()
}

type langKey struct{}

// WithLang stores the display language in ctx.
func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, langKey{}, lang)
}

// LangFrom returns the display language stored in ctx, or DefaultLang.
func LangFrom(ctx context.Context) string {
	if lang, ok := ctx.Value(langKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLang
}

var dateLayouts = map[string]string{
	"fr": "02/01/2006",
	"en": "Jan 2, 2006",
}

// FormatDate renders an ISO date (YYYY-MM-DD) for lang. Values that do not
// parse are returned as they are.
func FormatDate(iso, lang string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	layout, ok := dateLayouts[Normalize(lang)]
	if !ok {
		layout = dateLayouts[DefaultLang]
	}
	return t.Format(layout)
}
