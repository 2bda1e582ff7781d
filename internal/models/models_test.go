package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func sampleDoc() InvoiceData {
	doc := NewInvoice(DefaultSender(), fixedNow, "FAC-1234")
	doc.Items = []LineItem{
		{ID: "a", Description: "Design", Quantity: 10, Rate: 100},
		{ID: "b", Description: "Hosting", Quantity: 1, Rate: 500},
	}
	return doc
}

func TestNewInvoiceDefaults(t *testing.T) {
	doc := NewInvoice(DefaultSender(), fixedNow, "FAC-4321")

	assert.Equal(t, "FAC-4321", doc.InvoiceNumber)
	assert.Equal(t, "2025-03-10", doc.Date)
	assert.Equal(t, "2025-03-24", doc.DueDate)
	assert.Equal(t, "default", doc.Sender.ID)
	assert.Equal(t, "Nom du Client", doc.Receiver.Name)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Prestation de Services", doc.Items[0].Description)
	assert.Equal(t, 1.0, doc.Items[0].Quantity)
	assert.Equal(t, 50000.0, doc.Items[0].Rate)
	assert.Equal(t, 18.0, doc.TaxRate)
	assert.Equal(t, "XOF", doc.Currency)
	assert.Equal(t, "professional", doc.ThemeID)
	assert.Equal(t, DocumentTypeInvoice, doc.DocumentType)
	assert.Equal(t, LanguageFR, doc.Language)
	assert.NoError(t, ValidateDocument(doc))
}

func TestNewProfile(t *testing.T) {
	p := NewProfile()
	assert.Equal(t, "Nouvelle Société", p.Name)
	assert.True(t, strings.HasPrefix(p.ID, PrefixProfile+"_"))
	assert.Equal(t, DefaultSender().Address, p.Address)
}

func TestNewInvoiceNumber(t *testing.T) {
	re := regexp.MustCompile(`^FAC-\d{4}$`)
	for i := 0; i < 500; i++ {
		n := NewInvoiceNumber()
		require.Regexp(t, re, n)
		var v int
		_, err := fmt.Sscanf(n, "FAC-%d", &v)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, 1000)
		require.LessOrEqual(t, v, 9999)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := NewID(PrefixItem)
		require.True(t, strings.HasPrefix(id, "item_"))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.NotContains(t, NewID(""), "_")
}

func TestThemes(t *testing.T) {
	require.Len(t, Themes(), 5)
	assert.Equal(t, "Azure Tide", ThemeOrDefault("modern-blue").Name)
	assert.Equal(t, "professional", ThemeOrDefault("unknown").ID)
	_, ok := LookupTheme("")
	assert.False(t, ok)
}

func TestMergePatchNoop(t *testing.T) {
	doc := sampleDoc()
	for _, raw := range []string{"", "  ", "null"} {
		got, report, err := MergePatch(doc, []byte(raw))
		require.NoError(t, err, "patch %q", raw)
		assert.Equal(t, doc, got)
		assert.False(t, report.Changed())
	}
}

func TestMergePatchUnparseable(t *testing.T) {
	doc := sampleDoc()
	for _, raw := range []string{"not json", "[1,2]", `"text"`, "42", `{"taxRate": 5`} {
		got, _, err := MergePatch(doc, []byte(raw))
		require.Error(t, err, "patch %q", raw)
		assert.True(t, ierr.Is(err, ErrPatchUnparseable))
		assert.True(t, ierr.IsValidation(err))
		assert.Equal(t, doc, got)
	}
}

func TestMergePatchFields(t *testing.T) {
	tests := []struct {
		name    string
		patch   string
		check   func(t *testing.T, doc InvoiceData)
		ignored []string
	}{
		{
			name:  "scalar fields",
			patch: `{"invoiceNumber":"FAC-9999","notes":"Merci","taxRate":10,"documentType":"proforma","language":"en"}`,
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, "FAC-9999", doc.InvoiceNumber)
				assert.Equal(t, "Merci", doc.Notes)
				assert.Equal(t, 10.0, doc.TaxRate)
				assert.Equal(t, DocumentTypeProforma, doc.DocumentType)
				assert.Equal(t, LanguageEN, doc.Language)
			},
		},
		{
			name:    "ill typed fields are retained",
			patch:   `{"taxRate":"abc","notes":42,"documentType":"receipt","language":"de","themeId":"neon"}`,
			ignored: []string{"documentType", "language", "notes", "taxRate", "themeId"},
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, 18.0, doc.TaxRate)
				assert.Equal(t, "Merci de votre confiance !", doc.Notes)
				assert.Equal(t, DocumentTypeInvoice, doc.DocumentType)
				assert.Equal(t, LanguageFR, doc.Language)
				assert.Equal(t, "professional", doc.ThemeID)
			},
		},
		{
			name:  "numeric string accepted",
			patch: `{"taxRate":"12.5"}`,
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, 12.5, doc.TaxRate)
			},
		},
		{
			name:    "currency normalised",
			patch:   `{"currency":"eur","dueDate":"2025-04-01T00:00:00Z","date":"10/03/2025"}`,
			ignored: []string{"date"},
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, "EUR", doc.Currency)
				assert.Equal(t, "2025-04-01", doc.DueDate)
				assert.Equal(t, "2025-03-10", doc.Date)
			},
		},
		{
			name:    "bad currency ignored",
			patch:   `{"currency":"EURO"}`,
			ignored: []string{"currency"},
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, "XOF", doc.Currency)
			},
		},
		{
			name:    "sender never taken from a patch",
			patch:   `{"sender":{"name":"Evil Corp"}}`,
			ignored: []string{"sender"},
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, "Ma Société Sénégal", doc.Sender.Name)
			},
		},
		{
			name:    "receiver merged field by field",
			patch:   `{"receiver":{"name":"Orange SN","phone":7,"foo":"bar"}}`,
			ignored: []string{"receiver.foo", "receiver.phone"},
			check: func(t *testing.T, doc InvoiceData) {
				assert.Equal(t, "Orange SN", doc.Receiver.Name)
				assert.Equal(t, "client@email.sn", doc.Receiver.Email)
			},
		},
		{
			name:    "unknown keys ignored",
			patch:   `{"total":99999,"status":"paid"}`,
			ignored: []string{"status", "total"},
			check:   func(t *testing.T, doc InvoiceData) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, report, err := MergePatch(sampleDoc(), []byte(tt.patch))
			require.NoError(t, err)
			tt.check(t, got)
			for _, f := range tt.ignored {
				assert.Contains(t, report.Ignored, f)
			}
		})
	}
}

func TestMergePatchTrustedSender(t *testing.T) {
	got, report, err := MergePatch(sampleDoc(), []byte(`{"sender":{"id":"p1","name":"Saved Co"}}`), WithTrustedSender())
	require.NoError(t, err)
	assert.Equal(t, "p1", got.Sender.ID)
	assert.Equal(t, "Saved Co", got.Sender.Name)
	assert.Contains(t, report.Applied, "sender")
}

func TestMergePatchItems(t *testing.T) {
	next := 0
	ids := WithItemIDs(func() string {
		next++
		return fmt.Sprintf("new-%d", next)
	})
	patch := `{"items":[
		{"id":"a","quantity":"lots","rate":120},
		{"description":"Formation","quantity":2,"rate":"75000"},
		"garbage",
		42,
		{"id":"a","description":"dup"},
		{"id":"zzz","rate":true}
	]}`

	got, report, err := MergePatch(sampleDoc(), []byte(patch), ids)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DroppedItems)
	require.Len(t, got.Items, 4)

	// existing item: bad quantity falls back to the stored one
	assert.Equal(t, LineItem{ID: "a", Description: "Design", Quantity: 10, Rate: 120}, got.Items[0])
	// no id: fresh id, defaults for absent fields
	assert.Equal(t, LineItem{ID: "new-1", Description: "Formation", Quantity: 2, Rate: 75000}, got.Items[1])
	// duplicated id is replaced
	assert.Equal(t, "new-2", got.Items[2].ID)
	assert.Equal(t, "dup", got.Items[2].Description)
	// unknown id: add-item defaults
	assert.Equal(t, LineItem{ID: "zzz", Quantity: 1, Rate: 0}, got.Items[3])

	assert.Contains(t, report.Ignored, "items[0].quantity")
	assert.Contains(t, report.Ignored, "items[5].rate")
}

func TestMergePatchFormNumbers(t *testing.T) {
	tests := []struct {
		name  string
		patch string
		opts  []MergeOption
		tax   float64
		qty   float64
		rate  float64
	}{
		{"comma decimal", `{"taxRate":"8,5","items":[{"id":"a","quantity":"2,5","rate":"1 000"}]}`, []MergeOption{WithFormNumbers()}, 8.5, 2.5, 0},
		{"invalid becomes zero", `{"taxRate":"abc","items":[{"id":"a","quantity":true,"rate":"x"}]}`, []MergeOption{WithFormNumbers()}, 0, 0, 0},
		{"json numbers", `{"taxRate":5,"items":[{"id":"a","quantity":3,"rate":40}]}`, []MergeOption{WithFormNumbers()}, 5, 3, 40},
		{"untrusted keeps current", `{"taxRate":"abc","items":[{"id":"a","quantity":"2,5","rate":"x"}]}`, nil, 18, 10, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, report, err := MergePatch(sampleDoc(), []byte(tt.patch), tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.tax, got.TaxRate)
			require.Len(t, got.Items, 1)
			assert.Equal(t, tt.qty, got.Items[0].Quantity)
			assert.Equal(t, tt.rate, got.Items[0].Rate)
			if tt.opts == nil {
				assert.Contains(t, report.Ignored, "taxRate")
			} else {
				assert.Contains(t, report.Applied, "taxRate")
				assert.NotContains(t, report.Ignored, "taxRate")
			}
		})
	}
}

func TestMergePatchItemsNotArray(t *testing.T) {
	doc := sampleDoc()
	got, report, err := MergePatch(doc, []byte(`{"items":{"id":"a"}}`))
	require.NoError(t, err)
	assert.Equal(t, doc.Items, got.Items)
	assert.Contains(t, report.Ignored, "items")
}

func TestMergePatchDoesNotAliasItems(t *testing.T) {
	doc := sampleDoc()
	got, _, err := MergePatch(doc, []byte(`{"notes":"x"}`))
	require.NoError(t, err)
	got.Items[0].Rate = 1
	assert.Equal(t, 100.0, doc.Items[0].Rate)
}

func TestApplyTemplate(t *testing.T) {
	src := sampleDoc()
	src.Currency = "EUR"
	src.TaxRate = 20
	src.ThemeID = "ruby"
	tpl := NewTemplate("Monthly", src)
	assert.True(t, strings.HasPrefix(tpl.ID, PrefixTpl+"_"))

	current := sampleDoc()
	current.Receiver.Name = "Keep Me"
	active := CompanyDetails{ID: "p2", Name: "Active Co"}
	calls := 0
	numbers := func() string {
		calls++
		if calls == 1 {
			return current.InvoiceNumber
		}
		return "FAC-5555"
	}
	later := fixedNow.AddDate(0, 1, 0)

	got, err := ApplyTemplate(tpl, current, active, later, numbers)
	require.NoError(t, err)
	assert.Equal(t, "FAC-5555", got.InvoiceNumber)
	assert.Equal(t, "2025-04-10", got.Date)
	assert.Equal(t, "2025-04-24", got.DueDate)
	assert.Equal(t, "Keep Me", got.Receiver.Name)
	assert.Equal(t, active, got.Sender)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, 20.0, got.TaxRate)
	assert.Equal(t, "ruby", got.ThemeID)
	require.Len(t, got.Items, len(src.Items))
	for i, it := range got.Items {
		assert.NotEqual(t, src.Items[i].ID, it.ID)
		assert.Equal(t, src.Items[i].Description, it.Description)
	}
}

func TestApplyTemplateRejectsIncomplete(t *testing.T) {
	current := sampleDoc()
	tests := map[string]TemplateData{
		"no currency":  {Language: LanguageFR, DocumentType: DocumentTypeInvoice},
		"bad language": {Currency: "XOF", Language: "de", DocumentType: DocumentTypeInvoice},
		"no type":      {Currency: "XOF", Language: LanguageEN},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ApplyTemplate(InvoiceTemplate{ID: "t", Name: name, TemplateData: data}, current, current.Sender, fixedNow, nil)
			require.Error(t, err)
			assert.True(t, ierr.IsValidation(err))
			assert.Equal(t, current, got)
		})
	}
}

func TestNumberUnmarshal(t *testing.T) {
	var p ItemPatch
	require.NoError(t, json.Unmarshal([]byte(`{"quantity":"3","rate":"abc"}`), &p))
	require.NotNil(t, p.Quantity)
	assert.Equal(t, Number(3), *p.Quantity)
	assert.Equal(t, Number(0), *p.Rate)
	assert.Nil(t, p.Description)

	item := NewLineItem(ItemPatch{})
	assert.Equal(t, 1.0, item.Quantity)
	assert.Equal(t, 0.0, item.Rate)
	assert.True(t, strings.HasPrefix(item.ID, "item_"))
}

func TestCompanyPatchApply(t *testing.T) {
	name := "New Name"
	empty := ""
	got := CompanyPatch{Name: &name, Ninea: &empty}.Apply(CompanyDetails{ID: "x", Name: "Old", Ninea: "123", Email: "a@b.sn"})
	assert.Equal(t, CompanyDetails{ID: "x", Name: "New Name", Email: "a@b.sn"}, got)
}

func TestCatalogItemToLineItem(t *testing.T) {
	it := CatalogItem{ID: "cat_1", Description: "Audit", Rate: 250000}.ToLineItem()
	assert.Equal(t, 1.0, it.Quantity)
	assert.Equal(t, 250000.0, it.Rate)
	assert.NotEqual(t, "cat_1", it.ID)
}
