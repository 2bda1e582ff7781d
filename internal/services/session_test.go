package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/diewo77/devisflow/internal/assistant"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Entry{}))
	return db
}

// sequence returns FAC-1001, FAC-1002, ...
func sequence() func() string {
	n := 1000
	return func() string {
		n++
		return fmt.Sprintf("FAC-%d", n)
	}
}

func newTestSession(t *testing.T, st store.Store, opts ...Option) *Session {
	base := []Option{WithClock(func() time.Time { return testNow }), WithNumbers(sequence())}
	s := NewSession(st, append(base, opts...)...)
	require.NoError(t, s.Hydrate(context.Background()))
	return s
}

// failingStore accepts reads and rejects every write.
type failingStore struct{ store.Store }

func (failingStore) Put(context.Context, string, any) error {
	return ierr.NewError("disk full").WithHint("Could not save").Mark(ierr.ErrPersistence)
}

type fakeAssistant struct {
	mu          sync.Mutex
	chat        func(message string, doc models.InvoiceData) (*assistant.ChatResult, error)
	suggestions []assistant.Suggestion
	err         error
	gate        chan struct{}
	calls       int
}

func (f *fakeAssistant) Chat(ctx context.Context, message string, doc models.InvoiceData) (*assistant.ChatResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.chat(message, doc)
}

func (f *fakeAssistant) Suggest(ctx context.Context, sender, receiver string) ([]assistant.Suggestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.suggestions, nil
}

func TestHydrateDefaults(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))

	res := s.Document()
	assert.Equal(t, "default", res.ActiveProfileID)
	assert.Equal(t, "2025-06-01", res.Document.Date)
	assert.Equal(t, "2025-06-15", res.Document.DueDate)
	assert.Equal(t, 59000.0, res.Totals.Total)
	assert.Len(t, s.Profiles(), 1)
	assert.Equal(t, models.DisplaySystem, s.Theme())
	assert.Equal(t, []Message{{Role: RoleAssistant, Text: "Comment puis-je vous aider ?"}}, s.Conversation())
}

func TestHydrateRestoresState(t *testing.T) {
	ctx := context.Background()
	st := store.NewGormStore(setupTestDB(t))

	first := newTestSession(t, st)
	_, p := first.AddProfile(ctx)
	_, err := first.UpdateSender(ctx, models.CompanyPatch{Name: strPtr("Kër Consulting")})
	require.NoError(t, err)
	_, _, err = first.UpdateDocument(ctx, []byte(`{"taxRate":10,"currency":"EUR"}`))
	require.NoError(t, err)
	_, err = first.SetTheme(ctx, models.DisplayDark)
	require.NoError(t, err)

	second := newTestSession(t, st)
	res := second.Document()
	assert.Equal(t, p.ID, res.ActiveProfileID)
	assert.Equal(t, "Kër Consulting", res.Document.Sender.Name)
	assert.Equal(t, 10.0, res.Document.TaxRate)
	assert.Equal(t, "EUR", res.Document.Currency)
	assert.Len(t, second.Profiles(), 2)
	assert.Equal(t, models.DisplayDark, second.Theme())
}

func TestHydrateUnknownSenderRebound(t *testing.T) {
	ctx := context.Background()
	st := store.NewGormStore(setupTestDB(t))
	profiles := []models.CompanyDetails{{ID: "p1", Name: "One"}, {ID: "p2", Name: "Two"}}
	require.NoError(t, st.Put(ctx, models.KeyProfiles, profiles))
	require.NoError(t, st.Put(ctx, models.KeyCurrentInvoice, map[string]any{
		"invoiceNumber": "FAC-7777",
		"sender":        map[string]any{"id": "ghost", "name": "Ghost"},
	}))

	s := newTestSession(t, st)
	res := s.Document()
	assert.Equal(t, "p1", res.ActiveProfileID)
	assert.Equal(t, "One", res.Document.Sender.Name)
	assert.Equal(t, "FAC-7777", res.Document.InvoiceNumber)
}

func TestHydrateCorruptValue(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.Entry{Key: models.KeyProfiles, Value: []byte(`"oops"`)}).Error)

	s := NewSession(store.NewGormStore(db))
	err := s.Hydrate(ctx)
	require.Error(t, err)
	assert.True(t, ierr.IsPersistence(err))
	assert.Len(t, s.Profiles(), 1)
	assert.Equal(t, "default", s.ActiveProfileID())
}

func TestUpdateDocumentIgnoresSender(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	res, report, err := s.UpdateDocument(context.Background(), []byte(`{"sender":{"name":"Hacker"},"notes":"ok"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ma Société Sénégal", res.Document.Sender.Name)
	assert.Equal(t, "ok", res.Document.Notes)
	assert.Contains(t, report.Ignored, "sender")
}

func TestUpdateDocumentUnparseable(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	before := s.Document().Document
	res, _, err := s.UpdateDocument(context.Background(), []byte(`nope`))
	require.Error(t, err)
	assert.True(t, ierr.Is(err, models.ErrPatchUnparseable))
	assert.Equal(t, before, res.Document)
}

func TestSenderWritesBackToActiveProfile(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	_, p := s.AddProfile(ctx)

	_, err := s.UpdateSender(ctx, models.CompanyPatch{Ninea: strPtr("123456789"), RCCM: strPtr("SN-DKR-2024-B-1")})
	require.NoError(t, err)

	profiles := s.Profiles()
	require.Len(t, profiles, 2)
	assert.Empty(t, profiles[0].Ninea)
	assert.Equal(t, p.ID, profiles[1].ID)
	assert.Equal(t, "123456789", profiles[1].Ninea)
	assert.Equal(t, "SN-DKR-2024-B-1", s.Document().Document.Sender.RCCM)
}

func TestUpdateSenderInvalidEmail(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	_, err := s.UpdateSender(context.Background(), models.CompanyPatch{Email: strPtr("not-an-email")})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Equal(t, "contact@societe.sn", s.Document().Document.Sender.Email)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))

	_, err := s.DeleteProfile(ctx, "default")
	require.Error(t, err)
	assert.True(t, ierr.IsInvalidOperation(err))

	_, p := s.AddProfile(ctx)
	assert.Equal(t, p.ID, s.ActiveProfileID())
	assert.Equal(t, "Nouvelle Société", s.Document().Document.Sender.Name)

	res, err := s.SwitchProfile(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "default", res.ActiveProfileID)

	_, err = s.SwitchProfile(ctx, "missing")
	assert.True(t, ierr.IsNotFound(err))

	// deleting the active profile activates the first remaining one
	res, err = s.DeleteProfile(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.ActiveProfileID)
	assert.Len(t, s.Profiles(), 1)

	_, err = s.DeleteProfile(ctx, "missing")
	assert.True(t, ierr.IsNotFound(err))
}

func TestItems(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))

	qty, rate := models.Number(2), models.Number(25000)
	res, item, err := s.AddItem(ctx, models.ItemPatch{Description: strPtr("Maintenance"), Quantity: &qty, Rate: &rate})
	require.NoError(t, err)
	require.Len(t, res.Document.Items, 2)
	assert.Equal(t, 100000.0, res.Totals.Subtotal)
	assert.Equal(t, 118000.0, res.Totals.Total)

	newRate := models.Number(30000)
	res, err = s.UpdateItem(ctx, item.ID, models.ItemPatch{Rate: &newRate})
	require.NoError(t, err)
	assert.Equal(t, 110000.0, res.Totals.Subtotal)

	res, err = s.RemoveItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, res.Document.Items, 1)

	_, err = s.RemoveItem(ctx, item.ID)
	assert.True(t, ierr.IsNotFound(err))
	_, err = s.UpdateItem(ctx, "nope", models.ItemPatch{})
	assert.True(t, ierr.IsNotFound(err))
}

func TestItemPolicy(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithItemPolicy(ItemPolicy{AllowNegative: false, AllowZero: true}))

	neg := models.Number(-5)
	_, _, err := s.AddItem(ctx, models.ItemPatch{Rate: &neg})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	assert.Len(t, s.Document().Document.Items, 1)

	_, _, err = s.UpdateDocument(ctx, []byte(`{"items":[{"description":"Avoir","quantity":1,"rate":-100}]}`))
	require.Error(t, err)
	assert.Len(t, s.Document().Document.Items, 1)

	zero := models.Number(0)
	_, _, err = s.AddItem(ctx, models.ItemPatch{Rate: &zero})
	assert.NoError(t, err)
}

func TestDefaultPolicyAcceptsNegative(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	neg := models.Number(-10000)
	res, _, err := s.AddItem(context.Background(), models.ItemPatch{Rate: &neg})
	require.NoError(t, err)
	assert.Equal(t, 40000.0, res.Totals.Subtotal)
}

func TestHydrateDrawsOneNumber(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	assert.Equal(t, "FAC-1001", s.Document().Document.InvoiceNumber)
	assert.Equal(t, "FAC-1002", s.Reset(context.Background()).Document.InvoiceNumber)
}

func TestUpdateDocumentCoercesNumbers(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))

	res, report, err := s.UpdateDocument(ctx, []byte(`{"taxRate":"8,5"}`))
	require.NoError(t, err)
	assert.Equal(t, 8.5, res.Document.TaxRate)
	assert.Contains(t, report.Applied, "taxRate")

	res, _, err = s.UpdateDocument(ctx, []byte(`{"taxRate":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Document.TaxRate)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	_, p := s.AddProfile(ctx)
	_, _, err := s.UpdateDocument(ctx, []byte(`{"notes":"custom","items":[]}`))
	require.NoError(t, err)

	res := s.Reset(ctx)
	assert.Equal(t, p.ID, res.Document.Sender.ID)
	assert.Equal(t, "Merci de votre confiance !", res.Document.Notes)
	assert.Len(t, res.Document.Items, 1)
}

func TestTemplates(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	_, _, err := s.UpdateDocument(ctx, []byte(`{"currency":"EUR","taxRate":20,"receiver":{"name":"Client A"}}`))
	require.NoError(t, err)

	_, _, err = s.SaveTemplate(ctx, "   ")
	assert.True(t, ierr.IsValidation(err))

	tpl, warning, err := s.SaveTemplate(ctx, "Europe")
	require.NoError(t, err)
	assert.Empty(t, warning)
	require.Len(t, s.Templates(), 1)

	_, _, err = s.UpdateDocument(ctx, []byte(`{"currency":"XOF","taxRate":18,"receiver":{"name":"Client B"}}`))
	require.NoError(t, err)
	before := s.Document().Document

	res, err := s.ApplyTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", res.Document.Currency)
	assert.Equal(t, 20.0, res.Document.TaxRate)
	assert.Equal(t, "Client B", res.Document.Receiver.Name)
	assert.Equal(t, before.Sender, res.Document.Sender)
	assert.NotEqual(t, before.InvoiceNumber, res.Document.InvoiceNumber)
	assert.NotEqual(t, before.Items[0].ID, res.Document.Items[0].ID)

	_, err = s.ApplyTemplate(ctx, "missing")
	assert.True(t, ierr.IsNotFound(err))

	require.NoError(t, s.DeleteTemplate(ctx, tpl.ID))
	assert.Empty(t, s.Templates())
	assert.True(t, ierr.IsNotFound(s.DeleteTemplate(ctx, tpl.ID)))
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))

	_, err := s.AddCatalogItem(ctx, models.CatalogPatch{})
	assert.True(t, ierr.IsValidation(err))

	rate := models.Number(150000)
	entry, err := s.AddCatalogItem(ctx, models.CatalogPatch{Description: strPtr("Audit"), Rate: &rate})
	require.NoError(t, err)

	newRate := models.Number(175000)
	entry, err = s.UpdateCatalogItem(ctx, entry.ID, models.CatalogPatch{Rate: &newRate})
	require.NoError(t, err)
	assert.Equal(t, 175000.0, entry.Rate)

	res, item, err := s.InsertCatalogItem(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Audit", item.Description)
	assert.Equal(t, 1.0, item.Quantity)
	assert.Len(t, res.Document.Items, 2)

	require.NoError(t, s.DeleteCatalogItem(ctx, entry.ID))
	assert.Empty(t, s.Catalog())
	_, _, err = s.InsertCatalogItem(ctx, entry.ID)
	assert.True(t, ierr.IsNotFound(err))
	_, err = s.UpdateCatalogItem(ctx, entry.ID, models.CatalogPatch{})
	assert.True(t, ierr.IsNotFound(err))
}

func TestSetTheme(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	_, err := s.SetTheme(context.Background(), "neon")
	assert.True(t, ierr.IsValidation(err))
	pref, err := s.SetTheme(context.Background(), models.DisplayLight)
	require.NoError(t, err)
	assert.Equal(t, models.DisplayLight, pref.Theme)
}

func TestPersistenceFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	st := failingStore{store.NewGormStore(setupTestDB(t))}
	s := newTestSession(t, st)

	res, _, err := s.UpdateDocument(ctx, []byte(`{"notes":"kept in memory"}`))
	require.NoError(t, err)
	assert.Equal(t, "kept in memory", res.Document.Notes)
	assert.Equal(t, "Could not save", res.Warning)

	// the warning is reported once
	assert.Empty(t, s.Document().Warning)
	assert.Equal(t, "kept in memory", s.Document().Document.Notes)

	_, _, err = s.SaveTemplate(ctx, "T")
	require.NoError(t, err)
	require.NoError(t, s.DeleteTemplate(ctx, s.Templates()[0].ID))
	assert.True(t, ierr.IsPersistence(s.TakeWarning()))
	assert.Nil(t, s.TakeWarning())
}

func TestSnapshotKeepsPendingWarning(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, failingStore{store.NewGormStore(setupTestDB(t))})

	_, _, err := s.SaveTemplate(ctx, "T")
	require.NoError(t, err)
	// deleting leaves the save failure pending
	require.NoError(t, s.DeleteTemplate(ctx, s.Templates()[0].ID))

	assert.Empty(t, s.Snapshot().Warning)
	_, err = s.RemoveItem(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, "Could not save", s.Document().Warning)
	assert.Empty(t, s.Document().Warning)
}

func TestChatAppliesPatch(t *testing.T) {
	fa := &fakeAssistant{chat: func(message string, doc models.InvoiceData) (*assistant.ChatResult, error) {
		return &assistant.ChatResult{
			UpdatedInvoice:   json.RawMessage(`{"taxRate":0,"sender":{"name":"x"},"items":[{"description":"Conseil","quantity":3,"rate":1000}]}`),
			AssistantMessage: "TVA supprimée",
		}, nil
	}}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithAssistant(fa))

	out, err := s.Chat(context.Background(), "supprime la TVA")
	require.NoError(t, err)
	assert.Equal(t, "TVA supprimée", out.Reply)
	assert.True(t, out.Applied)
	assert.Empty(t, out.PatchError)
	assert.Equal(t, 3000.0, out.Totals.Total)
	assert.Equal(t, "Ma Société Sénégal", out.Document.Sender.Name)
	require.Len(t, out.Conversation, 3)
	assert.Equal(t, Message{Role: RoleUser, Text: "supprime la TVA"}, out.Conversation[1])
	assert.Equal(t, Message{Role: RoleAssistant, Text: "TVA supprimée"}, out.Conversation[2])
}

func TestChatFailureLeavesDocument(t *testing.T) {
	fa := &fakeAssistant{err: ierr.NewError("timeout").Mark(ierr.ErrAssistant)}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithAssistant(fa))
	before := s.Document().Document

	out, err := s.Chat(context.Background(), "ajoute une ligne")
	require.Error(t, err)
	assert.True(t, ierr.IsAssistant(err))
	assert.Equal(t, before, out.Document)
	assert.Equal(t, "Erreur, réessayez.", out.Conversation[len(out.Conversation)-1].Text)
}

func TestChatMalformedPatchKeepsDocument(t *testing.T) {
	fa := &fakeAssistant{chat: func(string, models.InvoiceData) (*assistant.ChatResult, error) {
		return &assistant.ChatResult{UpdatedInvoice: json.RawMessage(`"garbage"`), AssistantMessage: "Fait"}, nil
	}}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithAssistant(fa))
	before := s.Document().Document

	out, err := s.Chat(context.Background(), "fais quelque chose")
	require.NoError(t, err)
	assert.Equal(t, before, out.Document)
	assert.False(t, out.Report.Changed())
	assert.False(t, out.Applied)
	assert.Equal(t, "The change could not be applied", out.PatchError)
	assert.Equal(t, "Fait", out.Reply)
}

func TestChatPatchOutsidePolicy(t *testing.T) {
	fa := &fakeAssistant{chat: func(string, models.InvoiceData) (*assistant.ChatResult, error) {
		return &assistant.ChatResult{UpdatedInvoice: json.RawMessage(`{"items":[{"description":"Remise","quantity":1,"rate":-500}]}`), AssistantMessage: "Remise ajoutée"}, nil
	}}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithAssistant(fa), WithItemPolicy(ItemPolicy{AllowZero: true}))
	before := s.Document().Document

	out, err := s.Chat(context.Background(), "ajoute une remise")
	require.NoError(t, err)
	assert.Equal(t, before, out.Document)
	assert.False(t, out.Applied)
	assert.NotEmpty(t, out.PatchError)
}

func TestChatWithoutChanges(t *testing.T) {
	fa := &fakeAssistant{chat: func(string, models.InvoiceData) (*assistant.ChatResult, error) {
		return &assistant.ChatResult{UpdatedInvoice: json.RawMessage(`{}`), AssistantMessage: "Bonjour"}, nil
	}}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithAssistant(fa))

	out, err := s.Chat(context.Background(), "salut")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Empty(t, out.PatchError)
}

func TestChatBusy(t *testing.T) {
	gate := make(chan struct{})
	fa := &fakeAssistant{gate: gate, chat: func(string, models.InvoiceData) (*assistant.ChatResult, error) {
		return &assistant.ChatResult{AssistantMessage: "ok"}, nil
	}}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)), WithAssistant(fa))

	done := make(chan error, 1)
	go func() {
		_, err := s.Chat(context.Background(), "first")
		done <- err
	}()
	require.Eventually(t, func() bool {
		fa.mu.Lock()
		defer fa.mu.Unlock()
		return fa.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := s.Chat(context.Background(), "second")
	assert.True(t, ierr.IsBusy(err))
	_, _, err = s.Suggest(context.Background())
	assert.True(t, ierr.IsBusy(err))

	// the session stays usable while the assistant works
	_, _, err = s.UpdateDocument(context.Background(), []byte(`{"notes":"edited meanwhile"}`))
	require.NoError(t, err)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, "edited meanwhile", s.Document().Document.Notes)
}

func TestChatWithoutAssistant(t *testing.T) {
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)))
	_, err := s.Chat(context.Background(), "hello")
	assert.True(t, ierr.IsAssistant(err))
	_, err = s.Chat(context.Background(), "  ")
	assert.True(t, ierr.IsValidation(err))
}

func TestSuggest(t *testing.T) {
	fa := &fakeAssistant{suggestions: []assistant.Suggestion{
		{Description: "Audit", Quantity: 1, Rate: 150000},
		{Description: "Remise", Quantity: 1, Rate: -5000},
		{Description: "Formation", Quantity: 0, Rate: 75000},
	}}
	s := newTestSession(t, store.NewGormStore(setupTestDB(t)),
		WithAssistant(fa), WithItemPolicy(ItemPolicy{AllowNegative: false, AllowZero: true}))

	res, added, err := s.Suggest(context.Background())
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "Audit", added[0].Description)
	assert.Equal(t, 1.0, added[1].Quantity)
	assert.Len(t, res.Document.Items, 3)
}

func strPtr(s string) *string { return &s }
