// Package handlers exposes the editing session over a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/diewo77/devisflow/httpx"
	ierr "github.com/diewo77/devisflow/internal/errors"
	"github.com/diewo77/devisflow/internal/services"
)

// logos travel inline as data URIs
const maxBodyBytes = 4 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("The request body could not be read").
			Mark(ierr.ErrValidation)
	}
	return body, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return ierr.WithError(err).
			WithHint("The request body is not valid JSON").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// warning returns the pending persistence warning of the session, if any.
func warning(s *services.Session) string {
	w := s.TakeWarning()
	if w == nil {
		return ""
	}
	if h := ierr.Hints(w); h != "" {
		return h
	}
	return w.Error()
}

// itemResponse is a document result with the line item it created.
type itemResponse struct {
	services.Result
	Item any `json:"item"`
}

func writeResult(w http.ResponseWriter, status int, res services.Result, err error) {
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, status, res)
}
