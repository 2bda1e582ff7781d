package view

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/devisflow/i18n"
	"github.com/diewo77/devisflow/internal/billing"
	"github.com/diewo77/devisflow/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Context key for theme
type themeKey struct{}

// WithTheme returns a new context with the given display theme.
func WithTheme(ctx context.Context, theme string) context.Context {
	return context.WithValue(ctx, themeKey{}, theme)
}

// ThemeFromContext retrieves the display theme from context, defaulting to "system".
func ThemeFromContext(ctx context.Context) string {
	if theme, ok := ctx.Value(themeKey{}).(string); ok && models.ValidDisplay(theme) {
		return theme
	}
	return models.DisplaySystem
}

var (
	once    sync.Once
	tpl     *template.Template
	tplErr  error
	nowFunc = time.Now
)

// Page is the data of the preview template.
type Page struct {
	Doc     models.InvoiceData
	Totals  billing.Totals
	Theme   models.InvoiceTheme
	Display string // light, dark or system
	Print   bool   // open the print dialog on load
	Notice  string // shown above the document, outside the printed area
}

// NewPage prepares the preview of doc. The document palette comes from
// its theme id, the display theme from ctx.
func NewPage(ctx context.Context, doc models.InvoiceData, totals billing.Totals) Page {
	return Page{
		Doc:     doc,
		Totals:  totals,
		Theme:   models.ThemeOrDefault(doc.ThemeID),
		Display: ThemeFromContext(ctx),
	}
}

// Funcs returns the template helpers bound to the document language and currency.
func Funcs(doc models.InvoiceData) template.FuncMap {
	lang := string(doc.Language)
	return template.FuncMap{
		"t":      func(code string) string { return i18n.T(lang, code) },
		"lang":   func() string { return lang },
		"money":  func(v float64) string { return billing.FormatMoney(v, doc.Currency, lang) },
		"amount": func(it models.LineItem) string { return billing.FormatMoney(billing.LineAmount(it), doc.Currency, lang) },
		"qty":    func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
		"date":   func(iso string) string { return i18n.FormatDate(iso, lang) },
		"logo":   logoURL,
		"initial": func(name string) string {
			name = strings.TrimSpace(name)
			if name == "" {
				return "?"
			}
			return strings.ToUpper(string([]rune(name)[:1]))
		},
		"title": func() string {
			if doc.DocumentType == models.DocumentTypeProforma {
				return i18n.T(lang, "proformaInvoiceTitle")
			}
			return i18n.T(lang, "invoiceTitle")
		},
		"year": func() int { return nowFunc().Year() },
	}
}

// logoURL lets image data URIs through the URL sanitizer, anything else is dropped.
func logoURL(uri string) template.URL {
	if strings.HasPrefix(uri, "data:image/") && strings.Contains(uri, ";base64,") {
		return template.URL(uri)
	}
	return ""
}

func parse() {
	// funcs are rebound per render, these only satisfy the parser
	tpl, tplErr = template.New("preview.html").
		Funcs(Funcs(models.InvoiceData{})).
		ParseFS(templatesFS, "templates/*.html")
}

// Render writes the preview page of p.
func Render(w io.Writer, p Page) error {
	once.Do(parse)
	if tplErr != nil {
		return tplErr
	}
	t, err := tpl.Clone()
	if err != nil {
		return err
	}
	return t.Funcs(Funcs(p.Doc)).ExecuteTemplate(w, "preview.html", p)
}
