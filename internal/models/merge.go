package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/samber/lo"
)

// ErrPatchUnparseable is returned when a patch is not a JSON object.
// The document is returned unchanged alongside it.
var ErrPatchUnparseable = ierr.New("patch_unparseable", "could not apply patch")

// MergeReport describes what a patch did.
type MergeReport struct {
	Applied      []string `json:"applied,omitempty"`
	Ignored      []string `json:"ignored,omitempty"`
	DroppedItems int      `json:"droppedItems,omitempty"`
}

// Changed reports whether at least one field was taken from the patch.
func (r MergeReport) Changed() bool {
	return len(r.Applied) > 0
}

func (r *MergeReport) apply(field string)  { r.Applied = append(r.Applied, field) }
func (r *MergeReport) ignore(field string) { r.Ignored = append(r.Ignored, field) }

type mergeOptions struct {
	trustedSender bool
	formNumbers   bool
	newItemID     func() string
}

func (o mergeOptions) number(dst *float64, raw json.RawMessage) bool {
	if o.formNumbers {
		return coerceNumber(dst, raw)
	}
	return setNumber(dst, raw)
}

// MergeOption customises MergePatch.
type MergeOption func(*mergeOptions)

// WithTrustedSender lets the patch overwrite the sender. Only state restored
// from the store is trusted; patches from users or the assistant never are.
func WithTrustedSender() MergeOption {
	return func(o *mergeOptions) { o.trustedSender = true }
}

// WithFormNumbers coerces numeric fields the way form input is: comma
// decimals are accepted and anything that does not parse becomes 0 instead
// of keeping the current value.
func WithFormNumbers() MergeOption {
	return func(o *mergeOptions) { o.formNumbers = true }
}

// WithItemIDs replaces the generator used for items that arrive without id.
func WithItemIDs(gen func() string) MergeOption {
	return func(o *mergeOptions) {
		if gen != nil {
			o.newItemID = gen
		}
	}
}

// MergePatch overlays a JSON object on current. A field that is present and
// well typed replaces the current value; absent or ill-typed fields keep it.
// An empty or null patch is a no-op.
func MergePatch(current InvoiceData, raw []byte, opts ...MergeOption) (InvoiceData, MergeReport, error) {
	o := mergeOptions{newItemID: func() string { return NewID(PrefixItem) }}
	for _, opt := range opts {
		opt(&o)
	}

	var report MergeReport
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return current.Clone(), report, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return current.Clone(), report, ierr.WithError(ErrPatchUnparseable).
			WithMessage(err.Error()).
			WithHint("The change could not be applied").
			Mark(ierr.ErrValidation)
	}

	out := current.Clone()
	keys := lo.Keys(fields)
	slices.Sort(keys)
	for _, key := range keys {
		val := fields[key]
		if isNull(val) {
			report.ignore(key)
			continue
		}
		ok := true
		switch key {
		case "invoiceNumber":
			ok = setString(&out.InvoiceNumber, val)
		case "notes":
			ok = setString(&out.Notes, val)
		case "terms":
			ok = setString(&out.Terms, val)
		case "date":
			ok = setDate(&out.Date, val)
		case "dueDate":
			ok = setDate(&out.DueDate, val)
		case "taxRate":
			ok = o.number(&out.TaxRate, val)
		case "currency":
			ok = setCurrency(&out.Currency, val)
		case "themeId":
			var id string
			if ok = setString(&id, val) && isTheme(id); ok {
				out.ThemeID = id
			}
		case "documentType":
			var s string
			if ok = setString(&s, val) && DocumentType(s).Valid(); ok {
				out.DocumentType = DocumentType(s)
			}
		case "language":
			var s string
			if ok = setString(&s, val) && Language(s).Valid(); ok {
				out.Language = Language(s)
			}
		case "receiver":
			ok = mergeCompany(&out.Receiver, "receiver", val, &report)
		case "sender":
			ok = o.trustedSender && mergeCompany(&out.Sender, "sender", val, &report)
		case "items":
			var items []LineItem
			items, ok = mergeItems(current.Items, val, o, &report)
			if ok {
				out.Items = items
			}
		default:
			ok = false
		}
		if ok {
			report.apply(key)
		} else {
			report.ignore(key)
		}
	}

	if err := ValidateDocument(out); err != nil {
		return current.Clone(), MergeReport{}, err
	}
	return out, report, nil
}

func mergeCompany(dst *CompanyDetails, prefix string, raw json.RawMessage, report *MergeReport) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	targets := map[string]*string{
		"id":      &dst.ID,
		"name":    &dst.Name,
		"address": &dst.Address,
		"email":   &dst.Email,
		"phone":   &dst.Phone,
		"website": &dst.Website,
		"logo":    &dst.Logo,
		"ninea":   &dst.Ninea,
		"rccm":    &dst.RCCM,
	}
	for k, v := range fields {
		target, known := targets[k]
		if !known || isNull(v) || !setString(target, v) {
			report.ignore(prefix + "." + k)
		}
	}
	return true
}

// mergeItems replaces the item list. Elements that are not objects are
// dropped. Fields fall back to the existing item with the same id, else to
// the add-item defaults.
func mergeItems(existing []LineItem, raw json.RawMessage, o mergeOptions, report *MergeReport) ([]LineItem, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	byID := lo.KeyBy(existing, func(it LineItem) string { return it.ID })
	seen := make(map[string]bool, len(elems))
	items := make([]LineItem, 0, len(elems))
	for i, el := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(el, &obj); err != nil || obj == nil {
			report.DroppedItems++
			continue
		}
		var id string
		if v, ok := obj["id"]; ok && !isNull(v) {
			setString(&id, v)
		}
		id = strings.TrimSpace(id)

		item, found := byID[id]
		if !found {
			item = LineItem{Quantity: 1}
		}
		if id == "" || seen[id] {
			id = o.newItemID()
		}
		item.ID = id
		seen[id] = true

		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if v, ok := obj["description"]; ok && (isNull(v) || !setString(&item.Description, v)) {
			report.ignore(field("description"))
		}
		if v, ok := obj["quantity"]; ok && (isNull(v) || !o.number(&item.Quantity, v)) {
			report.ignore(field("quantity"))
		}
		if v, ok := obj["rate"]; ok && (isNull(v) || !o.number(&item.Rate, v)) {
			report.ignore(field("rate"))
		}
		items = append(items, item)
	}
	return items, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func setString(dst *string, raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	*dst = s
	return true
}

// setNumber accepts JSON numbers and strings holding a finite number.
func setNumber(dst *float64, raw json.RawMessage) bool {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	*dst = f
	return true
}

// coerceNumber never fails: strings go through validation.ParseNumber and
// values that are neither numbers nor strings become 0.
func coerceNumber(dst *float64, raw json.RawMessage) bool {
	var n Number
	_ = n.UnmarshalJSON(raw)
	*dst = float64(n)
	return true
}

// setDate accepts YYYY-MM-DD, or an RFC 3339 timestamp reduced to its date.
func setDate(dst *string, raw json.RawMessage) bool {
	var s string
	if !setString(&s, raw) {
		return false
	}
	s = strings.TrimSpace(s)
	if _, err := time.Parse(DateLayout, s); err == nil {
		*dst = s
		return true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*dst = t.Format(DateLayout)
		return true
	}
	return false
}

func setCurrency(dst *string, raw json.RawMessage) bool {
	var s string
	if !setString(&s, raw) {
		return false
	}
	code := strings.ToUpper(strings.TrimSpace(s))
	if !IsCurrencyCode(code) {
		return false
	}
	*dst = code
	return true
}

// IsCurrencyCode reports whether code looks like an ISO 4217 code.
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func isTheme(id string) bool {
	_, ok := LookupTheme(id)
	return ok
}
