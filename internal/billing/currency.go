package billing

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultSymbol is printed for every currency code not listed below.
const DefaultSymbol = "$"

var symbols = map[string]string{
	"XOF": "FCFA",
	"EUR": "€",
}

// minor units per currency; two when absent.
var minorUnits = map[string]int32{
	"XOF": 0,
	"XAF": 0,
	"JPY": 0,
}

// CurrencySymbol maps a currency code to its display symbol.
// Unknown codes fall back to DefaultSymbol.
func CurrencySymbol(code string) string {
	if s, ok := symbols[code]; ok {
		return s
	}
	return DefaultSymbol
}

// Currencies lists the codes offered by the editor, in display order.
func Currencies() []string {
	return []string{"XOF", "EUR", "USD"}
}

// MinorUnits returns the number of decimals displayed for code.
func MinorUnits(code string) int32 {
	if n, ok := minorUnits[strings.ToUpper(code)]; ok {
		return n
	}
	return 2
}

// Round rounds half away from zero to the currency's minor units.
// It is the only place amounts get rounded.
func Round(amount float64, currency string) float64 {
	return dec(amount).Round(MinorUnits(currency)).InexactFloat64()
}

// Format renders a rounded amount with the grouping and decimal separators of lang.
func Format(amount float64, currency, lang string) string {
	tag := language.French
	if lang == "en" {
		tag = language.English
	}
	verb := fmt.Sprintf("%%.%df", MinorUnits(currency))
	return message.NewPrinter(tag).Sprintf(verb, Round(amount, currency))
}

// FormatMoney is Format followed by the currency symbol.
func FormatMoney(amount float64, currency, lang string) string {
	return Format(amount, currency, lang) + " " + CurrencySymbol(currency)
}
