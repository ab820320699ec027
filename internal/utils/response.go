package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ms-invites/internal/card"
	"ms-invites/internal/checkin"
	"ms-invites/internal/invites"
	"ms-invites/internal/store"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

// WriteJSON sends resp with the given status
func WriteJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError answers with the status StatusFor picks for err
func WriteError(w http.ResponseWriter, message string, err error) int {
	status := StatusFor(err)
	WriteJSON(w, status, ErrorResponse(message, err.Error()))
	return status
}

// StatusFor maps domain errors onto HTTP statuses
func StatusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, checkin.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, invites.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrSessionBusy), errors.Is(err, checkin.ErrNothingToAcknowledge):
		return http.StatusConflict
	case errors.Is(err, card.ErrUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 32<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(invites.ErrValidation, err)
	}
	return nil
}
