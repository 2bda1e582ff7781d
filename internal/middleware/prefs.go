package middleware

import (
	"net/http"

	"github.com/diewo77/devisflow/i18n"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/view"
)

const prefCookieAge = 86400 * 30

// Prefs extracts language/theme preferences (query > cookie > header) and stores them in context.
// Query-provided prefs are persisted in cookies for ~30 days.
func Prefs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := ""
		if c, err := r.Cookie("lang"); err == nil {
			lang = i18n.Normalize(c.Value)
		}
		if ql := i18n.Normalize(r.URL.Query().Get("lang")); ql != "" {
			lang = ql
			http.SetCookie(w, &http.Cookie{Name: "lang", Value: lang, Path: "/", MaxAge: prefCookieAge})
		}
		if lang == "" {
			lang = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		}

		theme := ""
		if c, err := r.Cookie("theme"); err == nil && models.ValidDisplay(c.Value) {
			theme = c.Value
		}
		if qt := r.URL.Query().Get("theme"); models.ValidDisplay(qt) {
			theme = qt
			http.SetCookie(w, &http.Cookie{Name: "theme", Value: theme, Path: "/", MaxAge: prefCookieAge})
		}

		ctx := i18n.WithLang(r.Context(), lang)
		if theme != "" {
			ctx = view.WithTheme(ctx, theme)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LangFrom returns language preference from context or fallback.
func LangFrom(r *http.Request) string {
	return i18n.LangFrom(r.Context())
}

// ThemeFrom returns the display theme from context, the session preference
// when the request carries none.
func ThemeFrom(r *http.Request, fallback string) string {
	if t := view.ThemeFromContext(r.Context()); t != models.DisplaySystem || fallback == "" {
		return t
	}
	return fallback
}
