package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrEmptyBody is returned when a request carries no payload.
	ErrEmptyBody = errors.New("request body is required")
	// ErrBodyTooLarge is returned when a payload exceeds the handler limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// ReadLimitedBody reads at most limit bytes from the request body.
func ReadLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, ErrEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// DecodeJSON reads a bounded body and decodes it into dst.
func DecodeJSON(r *http.Request, limit int64, dst any) error {
	data, err := ReadLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.New("request body must be valid JSON: " + err.Error())
	}
	return nil
}

// WriteBodyError maps body read failures to 413 or 400.
func WriteBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		WriteError(r.Context(), w, NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}
	WriteError(r.Context(), w, NewError("invalid_request", err.Error(), http.StatusBadRequest))
}
