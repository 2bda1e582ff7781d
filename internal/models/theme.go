package models

// InvoiceTheme is a cosmetic palette for the rendered document.
type InvoiceTheme struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Primary string `json:"primary"`
	Accent  string `json:"accent"`
}

var themes = []InvoiceTheme{
	{ID: "professional", Name: "Elite Slate", Primary: "#0f172a", Accent: "#6366f1"},
	{ID: "modern-blue", Name: "Azure Tide", Primary: "#1e3a8a", Accent: "#3b82f6"},
	{ID: "emerald", Name: "Forest Mint", Primary: "#064e3b", Accent: "#10b981"},
	{ID: "ruby", Name: "Velvet Rose", Primary: "#881337", Accent: "#f43f5e"},
	{ID: "midnight", Name: "Onyx Noir", Primary: "#09090b", Accent: "#71717a"},
}

// Themes returns a copy of the palette.
func Themes() []InvoiceTheme {
	out := make([]InvoiceTheme, len(themes))
	copy(out, themes)
	return out
}

// LookupTheme returns the theme with the given id.
func LookupTheme(id string) (InvoiceTheme, bool) {
	for _, t := range themes {
		if t.ID == id {
			return t, true
		}
	}
	return InvoiceTheme{}, false
}

// ThemeOrDefault falls back to the first theme for unknown ids.
func ThemeOrDefault(id string) InvoiceTheme {
	if t, ok := LookupTheme(id); ok {
		return t
	}
	return themes[0]
}

// Display preferences of the editor itself (not the document theme).
const (
	DisplayLight  = "light"
	DisplayDark   = "dark"
	DisplaySystem = "system"
)

// ValidDisplay reports whether v is a known display preference.
func ValidDisplay(v string) bool {
	return v == DisplayLight || v == DisplayDark || v == DisplaySystem
}
