package services

import (
	"context"
	"strings"

	"github.com/diewo77/devisflow/i18n"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/models"
)

// Conversation returns a copy of the assistant conversation.
func (s *Session) Conversation() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationLocked()
}

// Chat sends message and the current document to the assistant and merges
// the returned patch into the document as it is when the answer arrives.
// On failure the document is untouched and a generic error message is
// appended to the conversation. Only one assistant call runs at a time.
func (s *Session) Chat(ctx context.Context, message string) (ChatOutcome, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return s.chatOutcome("", models.MergeReport{}), ierr.NewError("empty message").
			WithHint("Type a request for the assistant").
			Mark(ierr.ErrValidation)
	}
	if err := s.acquireAssistant(); err != nil {
		return s.chatOutcome("", models.MergeReport{}), err
	}
	defer s.aiBusy.Store(false)

	s.mu.Lock()
	s.conversation = append(s.conversation, Message{Role: RoleUser, Text: message})
	snapshot := s.doc.Clone()
	s.mu.Unlock()

	res, err := s.assistant.Chat(ctx, message, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warnw("assistant chat failed", "error", err)
		reply := i18n.T(string(s.doc.Language), "assistantError")
		s.conversation = append(s.conversation, Message{Role: RoleAssistant, Text: reply})
		return s.chatOutcomeLocked(reply, models.MergeReport{}), err
	}

	merged, report, mergeErr := models.MergePatch(s.doc, res.UpdatedInvoice)
	if mergeErr == nil {
		mergeErr = s.policy.CheckItems(merged.Items)
	}
	var patchErr string
	switch {
	case mergeErr != nil:
		s.logger.Infow("assistant patch not applied", "error", mergeErr)
		report = models.MergeReport{}
		patchErr = warningText(mergeErr)
	case report.Changed():
		s.doc = merged
		s.persist(ctx, models.KeyCurrentInvoice)
	}

	reply := strings.TrimSpace(res.AssistantMessage)
	if reply != "" {
		s.conversation = append(s.conversation, Message{Role: RoleAssistant, Text: reply})
	}
	out := s.chatOutcomeLocked(reply, report)
	out.Applied = mergeErr == nil && report.Changed()
	out.PatchError = patchErr
	return out, nil
}

// Suggest asks the assistant for line items fitting the two parties and
// appends them. Suggestions outside the item policy are skipped.
func (s *Session) Suggest(ctx context.Context) (Result, []models.LineItem, error) {
	if err := s.acquireAssistant(); err != nil {
		return s.Snapshot(), nil, err
	}
	defer s.aiBusy.Store(false)

	s.mu.Lock()
	sender, receiver := s.doc.Sender.Name, s.doc.Receiver.Name
	s.mu.Unlock()

	suggestions, err := s.assistant.Suggest(ctx, sender, receiver)
	if err != nil {
		s.logger.Warnw("assistant suggestions failed", "error", err)
		return s.Snapshot(), nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := make([]models.LineItem, 0, len(suggestions))
	for _, sg := range suggestions {
		desc := sg.Description
		item := models.NewLineItem(models.ItemPatch{Description: &desc, Quantity: &sg.Quantity, Rate: &sg.Rate})
		if err := s.policy.Check(item); err != nil {
			s.logger.Infow("skipping suggestion", "description", desc, "error", err)
			continue
		}
		added = append(added, item)
	}
	if len(added) > 0 {
		s.doc.Items = append(s.doc.Items, added...)
		s.persist(ctx, models.KeyCurrentInvoice)
	}
	return s.resultLocked(), added, nil
}

func (s *Session) acquireAssistant() error {
	if s.assistant == nil {
		return ierr.NewError("assistant is not configured").
			WithHint("Set AI_API_KEY to enable the assistant").
			Mark(ierr.ErrAssistant)
	}
	if !s.aiBusy.CompareAndSwap(false, true) {
		return ierr.NewError("assistant call in progress").
			WithHint("Wait for the current assistant request to finish").
			Mark(ierr.ErrBusy)
	}
	return nil
}

func (s *Session) chatOutcome(reply string, report models.MergeReport) ChatOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatOutcomeLocked(reply, report)
}

func (s *Session) chatOutcomeLocked(reply string, report models.MergeReport) ChatOutcome {
	return ChatOutcome{
		Result:       s.resultLocked(),
		Reply:        reply,
		Report:       report,
		Conversation: s.conversationLocked(),
	}
}

func (s *Session) conversationLocked() []Message {
	out := make([]Message, len(s.conversation))
	copy(out, s.conversation)
	return out
}
