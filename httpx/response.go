package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	ierr "github.com/diewo77/devisflow/internal/errors"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, code string, details map[string]any) {
	JSON(w, status, ErrorResponse{Error: code, Details: details})
}

// Error writes err with the status and code of its sentinel, the first
// user-facing hint as message and the reportable details.
func Error(w http.ResponseWriter, err error) {
	JSON(w, ierr.HTTPStatusFromErr(err), ErrorResponse{
		Error:   ierr.Code(err),
		Message: displayMessage(err),
		Details: safeDetails(err),
	})
}

// ErrorWith is Error with the payload fields merged next to the error body.
// Used when a failed call still has state worth returning (the assistant
// conversation, the unchanged document).
func ErrorWith(w http.ResponseWriter, err error, payload map[string]any) {
	body := map[string]any{
		"error":   ierr.Code(err),
		"message": displayMessage(err),
	}
	if d := safeDetails(err); len(d) > 0 {
		body["details"] = d
	}
	for k, v := range payload {
		if _, taken := body[k]; !taken {
			body[k] = v
		}
	}
	JSON(w, ierr.HTTPStatusFromErr(err), body)
}

func displayMessage(err error) string {
	// GetAllHints is post-order, the first non-empty one is the outermost
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return "An unexpected error occurred"
}

func safeDetails(err error) map[string]any {
	var details map[string]any
	for _, sdp := range errors.GetAllSafeDetails(err) {
		for _, payload := range sdp.SafeDetails {
			raw, ok := strings.CutPrefix(payload, "__json__:")
			if !ok {
				continue
			}
			var m map[string]any
			if json.Unmarshal([]byte(raw), &m) != nil {
				continue
			}
			if details == nil {
				details = make(map[string]any, len(m))
			}
			for k, v := range m {
				details[k] = v
			}
		}
	}
	return details
}
