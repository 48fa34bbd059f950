package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"finance-tracker/internal/apperr"
)

const maxBodyBytes = 1 << 20

var (
	errNoSession      = apperr.NewAuthentication("unauthorized", "No session found")
	errInvalidSession = apperr.NewAuthentication("unauthorized", "Invalid or expired session")
	errInvalidBody    = apperr.NewValidation("invalid_body", "Invalid request body")
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the error taxonomy. Internal failures are logged
// with their cause and reported to the client with a generic message.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.Internal {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, e.Kind.Status(), errorBody{Error: errorDetail{Code: e.Code, Message: e.Message}})
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody.Wrap(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
