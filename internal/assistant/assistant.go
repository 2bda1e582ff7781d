// Package assistant talks to the hosted Gemini completion API.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/devisflow/internal/config"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/httpclient"
	"github.com/diewo77/devisflow/internal/logger"
	"github.com/diewo77/devisflow/internal/models"
)

// ChatResult is the structured answer to a chat message. UpdatedInvoice is
// untrusted and must go through models.MergePatch.
type ChatResult struct {
	UpdatedInvoice   json.RawMessage `json:"updatedInvoice"`
	AssistantMessage string          `json:"assistantMessage"`
}

// Suggestion is a proposed line item.
type Suggestion struct {
	Description string        `json:"description"`
	Quantity    models.Number `json:"quantity"`
	Rate        models.Number `json:"rate"`
}

// Client calls the generateContent endpoint.
type Client struct {
	http   httpclient.Client
	cfg    config.AIConfig
	logger *logger.Logger
}

func NewClient(cfg config.AIConfig, hc httpclient.Client, log *logger.Logger) *Client {
	return &Client{http: hc, cfg: cfg, logger: log}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled()
}

// Chat sends the document and the user request and returns the model's
// patch and reply.
func (c *Client) Chat(ctx context.Context, message string, doc models.InvoiceData) (*ChatResult, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrAssistant)
	}
	text, err := c.generate(ctx, c.cfg.ChatModel, chatPrompt(string(docJSON), message), chatSchema)
	if err != nil {
		return nil, err
	}

	var res ChatResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, ierr.WithError(err).
			WithHint("The assistant returned an unreadable answer").
			Mark(ierr.ErrAssistant)
	}
	return &res, nil
}

// Suggest asks for three line items fitting the two parties.
func (c *Client) Suggest(ctx context.Context, senderName, receiverName string) ([]Suggestion, error) {
	text, err := c.generate(ctx, c.cfg.SuggestModel, suggestPrompt(senderName, receiverName), suggestSchema)
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, ierr.WithError(err).
			WithHint("The assistant returned an unreadable answer").
			Mark(ierr.ErrAssistant)
	}
	return out, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, model, prompt string, respSchema schema) (string, error) {
	if !c.Enabled() {
		return "", ierr.NewError("assistant is not configured").
			WithHint("Set AI_API_KEY to enable the assistant").
			Mark(ierr.ErrAssistant)
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   respSchema,
		},
	})
	if err != nil {
		return "", ierr.WithError(err).Mark(ierr.ErrAssistant)
	}

	start := time.Now()
	resp, err := c.http.Send(ctx, &httpclient.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(model)),
		Headers: map[string]string{"x-goog-api-key": c.cfg.APIKey},
		Body:    body,
	})
	if err != nil {
		c.logger.Warnw("assistant request failed", "model", model, "duration", time.Since(start), "error", err)
		return "", ierr.WithError(err).
			WithHint("The assistant is unavailable").
			Mark(ierr.ErrAssistant)
	}
	c.logger.Debugw("assistant request completed", "model", model, "duration", time.Since(start))

	var gr generateResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return "", ierr.WithError(err).
			WithHint("The assistant returned an unreadable answer").
			Mark(ierr.ErrAssistant)
	}
	var sb strings.Builder
	if len(gr.Candidates) > 0 {
		for _, p := range gr.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ierr.NewError("empty completion").
			WithHint("The assistant returned no answer").
			Mark(ierr.ErrAssistant)
	}
	return text, nil
}
