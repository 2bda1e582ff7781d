package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diewo77/devisflow/i18n"
	"github.com/diewo77/devisflow/internal/assistant"
	"github.com/diewo77/devisflow/internal/billing"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/models"
	"github.com/diewo77/devisflow/internal/store"
	"github.com/diewo77/devisflow/internal/validator"
	"github.com/samber/lo"
)

// Assistant produces document patches and item suggestions.
type Assistant interface {
	Chat(ctx context.Context, message string, doc models.InvoiceData) (*assistant.ChatResult, error)
	Suggest(ctx context.Context, senderName, receiverName string) ([]assistant.Suggestion, error)
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the assistant conversation.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Result is the state returned by document operations. Warning is set when
// the change is kept in memory but could not be saved.
type Result struct {
	Document        models.InvoiceData `json:"document"`
	Totals          billing.Totals     `json:"totals"`
	ActiveProfileID string             `json:"activeProfileId"`
	Warning         string             `json:"warning,omitempty"`
}

// ChatOutcome is the result of a chat turn.
type ChatOutcome struct {
	Result
	Reply        string             `json:"reply"`
	Report       models.MergeReport `json:"report"`
	Conversation []Message          `json:"conversation"`
	// Applied is set when the assistant's changes were merged into the document.
	Applied bool `json:"applied"`
	// PatchError explains why the assistant's changes could not be applied.
	PatchError string `json:"patchError,omitempty"`
}

// Session owns the editing state of the single user: profiles, the current
// draft, templates, catalog and preferences. Every mutation is applied in
// memory and then written to the store under the same lock. Store failures
// never roll back memory; they surface as warnings.
type Session struct {
	mu sync.Mutex

	store     store.Store
	assistant Assistant
	logger    *logger.Logger
	invoices  *InvoiceService
	policy    ItemPolicy
	now       func() time.Time
	numbers   func() string

	profiles     []models.CompanyDetails
	doc          models.InvoiceData
	templates    []models.InvoiceTemplate
	catalog      []models.CatalogItem
	theme        string
	conversation []Message
	warning      error

	aiBusy atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

func WithAssistant(a Assistant) Option { return func(s *Session) { s.assistant = a } }

func WithLogger(l *logger.Logger) Option { return func(s *Session) { s.logger = l } }

func WithItemPolicy(p ItemPolicy) Option { return func(s *Session) { s.policy = p } }

// WithClock replaces time.Now, used for document dates.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// WithNumbers replaces the invoice number generator.
func WithNumbers(gen func() string) Option { return func(s *Session) { s.numbers = gen } }

// NewSession returns a session holding the defaults. Call Hydrate to load
// the persisted state.
func NewSession(st store.Store, opts ...Option) *Session {
	s := &Session{
		store:    st,
		logger:   logger.NewNop(),
		invoices: NewInvoiceService(),
		policy:   DefaultItemPolicy(),
		now:      time.Now,
		numbers:  models.NewInvoiceNumber,
		theme:    models.DisplaySystem,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.profiles = []models.CompanyDetails{models.DefaultSender()}
	s.doc = models.NewInvoice(s.profiles[0], s.now(), s.numbers())
	s.conversation = []Message{s.greeting()}
	return s
}

// Hydrate loads the persisted state. Missing keys keep their defaults.
// Unreadable keys are logged and reported in the returned error, which is
// not fatal: the session stays usable with defaults.
func (s *Session) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	load := func(key string, dst any) bool {
		found, err := s.store.Get(ctx, key, dst)
		if err != nil {
			s.logger.Warnw("ignoring unreadable state", "key", key, "error", err)
			errs = append(errs, err)
			return false
		}
		return found
	}

	var profiles []models.CompanyDetails
	if load(models.KeyProfiles, &profiles) && len(profiles) > 0 {
		s.profiles = profiles
	} else {
		s.profiles = []models.CompanyDetails{models.DefaultSender()}
	}

	// keep the number drawn by NewSession, a stored draft replaces it anyway
	base := models.NewInvoice(s.profiles[0], s.now(), s.doc.InvoiceNumber)
	var draft json.RawMessage
	if load(models.KeyCurrentInvoice, &draft) {
		doc, _, err := models.MergePatch(base, draft, models.WithTrustedSender())
		if err != nil {
			s.logger.Warnw("ignoring unreadable draft", "error", err)
			errs = append(errs, err)
			doc = base
		}
		base = doc
	}
	// the sender is always one of the profiles
	if p, ok := lo.Find(s.profiles, func(p models.CompanyDetails) bool { return p.ID == base.Sender.ID }); ok {
		base.Sender = p
	} else {
		base.Sender = s.profiles[0]
	}
	s.doc = base

	var templates []models.InvoiceTemplate
	if load(models.KeyTemplates, &templates) {
		s.templates = templates
	}
	var catalog []models.CatalogItem
	if load(models.KeyCatalog, &catalog) {
		s.catalog = catalog
	}
	var theme string
	if load(models.KeyTheme, &theme) && models.ValidDisplay(theme) {
		s.theme = theme
	}
	s.conversation = []Message{s.greeting()}

	if len(errs) > 0 {
		s.warning = errs[0]
		return ierr.WithError(errs[0]).
			WithHintf("%d stored value(s) could not be read, defaults were used", len(errs)).
			Mark(ierr.ErrPersistence)
	}
	return nil
}

// TakeWarning returns and clears the last persistence failure.
func (s *Session) TakeWarning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.warning
	s.warning = nil
	return w
}

// Document returns the current document and its totals.
func (s *Session) Document() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

// Snapshot is Document without taking the pending warning, for reads that
// cannot show it.
func (s *Session) Snapshot() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Totals returns the totals of the current document.
func (s *Session) Totals() billing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoices.ComputeTotals(&s.doc)
}

// UpdateDocument merges an untrusted JSON patch from the editor into the
// document. The sender cannot be changed this way. Numbers are coerced like
// form input.
func (s *Session) UpdateDocument(ctx context.Context, raw []byte) (Result, models.MergeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, report, err := models.MergePatch(s.doc, raw, models.WithFormNumbers())
	if err != nil {
		return s.snapshotLocked(), report, err
	}
	if err := s.policy.CheckItems(merged.Items); err != nil {
		return s.snapshotLocked(), models.MergeReport{}, err
	}
	if report.Changed() {
		s.doc = merged
		s.persist(ctx, models.KeyCurrentInvoice)
	}
	return s.resultLocked(), report, nil
}

// UpdateSender edits the sender and writes it back into the active profile.
func (s *Session) UpdateSender(ctx context.Context, patch models.CompanyPatch) (Result, error) {
	if err := validator.ValidateRequest(patch); err != nil {
		return s.Snapshot(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sender := patch.Apply(s.doc.Sender)
	s.doc.Sender = sender
	s.profiles = lo.Map(s.profiles, func(p models.CompanyDetails, _ int) models.CompanyDetails {
		if p.ID == sender.ID {
			return sender
		}
		return p
	})
	s.persist(ctx, models.KeyProfiles, models.KeyCurrentInvoice)
	return s.resultLocked(), nil
}

func (s *Session) UpdateReceiver(ctx context.Context, patch models.CompanyPatch) (Result, error) {
	if err := validator.ValidateRequest(patch); err != nil {
		return s.Snapshot(), err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Receiver = patch.Apply(s.doc.Receiver)
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), nil
}

// AddItem appends a line item built from draft.
func (s *Session) AddItem(ctx context.Context, draft models.ItemPatch) (Result, models.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := models.NewLineItem(draft)
	if err := s.policy.Check(item); err != nil {
		return s.snapshotLocked(), models.LineItem{}, err
	}
	s.doc.Items = append(s.doc.Items, item)
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), item, nil
}

func (s *Session) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.doc.ItemIndex(id)
	if idx < 0 {
		return s.snapshotLocked(), itemNotFound(id)
	}
	item := patch.Apply(s.doc.Items[idx])
	if err := s.policy.Check(item); err != nil {
		return s.snapshotLocked(), err
	}
	s.doc.Items[idx] = item
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), nil
}

func (s *Session) RemoveItem(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.ItemIndex(id) < 0 {
		return s.snapshotLocked(), itemNotFound(id)
	}
	s.doc.Items = lo.Reject(s.doc.Items, func(it models.LineItem, _ int) bool { return it.ID == id })
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked(), nil
}

// Reset replaces the document with a fresh one for the current sender.
func (s *Session) Reset(ctx context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = models.NewInvoice(s.doc.Sender, s.now(), s.numbers())
	s.persist(ctx, models.KeyCurrentInvoice)
	return s.resultLocked()
}

// Theme returns the display preference (light, dark or system).
func (s *Session) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// Preference is the display preference with the outcome of saving it.
type Preference struct {
	Theme   string `json:"theme"`
	Warning string `json:"warning,omitempty"`
}

func (s *Session) SetTheme(ctx context.Context, theme string) (Preference, error) {
	if !models.ValidDisplay(theme) {
		return Preference{Theme: s.Theme()}, ierr.NewErrorf("unknown display theme %q", theme).
			WithHint("Theme must be light, dark or system").
			Mark(ierr.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.theme = theme
	s.persist(ctx, models.KeyTheme)
	pref := Preference{Theme: s.theme}
	if w := s.takeWarningLocked(); w != nil {
		pref.Warning = warningText(w)
	}
	return pref, nil
}

// persist writes the given keys. Failures are logged and kept as the
// session warning; the in-memory state is not touched.
func (s *Session) persist(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		var value any
		switch key {
		case models.KeyProfiles:
			value = s.profiles
		case models.KeyCurrentInvoice:
			value = s.doc
		case models.KeyTemplates:
			value = s.templates
		case models.KeyCatalog:
			value = s.catalog
		case models.KeyTheme:
			value = s.theme
		}
		if err := s.store.Put(ctx, key, value); err != nil {
			s.logger.Errorw("failed to persist session state", "key", key, "error", err)
			s.warning = err
		}
	}
}

func (s *Session) snapshotLocked() Result {
	return Result{
		Document:        s.doc.Clone(),
		Totals:          s.invoices.ComputeTotals(&s.doc),
		ActiveProfileID: s.doc.Sender.ID,
	}
}

func (s *Session) resultLocked() Result {
	r := s.snapshotLocked()
	if w := s.takeWarningLocked(); w != nil {
		r.Warning = warningText(w)
	}
	return r
}

func (s *Session) takeWarningLocked() error {
	w := s.warning
	s.warning = nil
	return w
}

func (s *Session) greeting() Message {
	return Message{Role: RoleAssistant, Text: i18n.T(string(s.doc.Language), "assistantGreeting")}
}

func warningText(err error) string {
	if h := ierr.Hints(err); h != "" {
		return h
	}
	return err.Error()
}

func itemNotFound(id string) error {
	return ierr.NewErrorf("item %s not found", id).
		WithHint("The line item does not exist").
		Mark(ierr.ErrNotFound)
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
