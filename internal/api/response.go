package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"walkypainty/internal/canvas"
)

// Envelope is the shape of every JSON response
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

// respondJSON sends a success envelope
func respondJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Data: data})
}

// respondList: success envelope carrying a count
func respondList[T any](w http.ResponseWriter, items []T) {
	n := len(items)
	writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: items, Count: &n})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, Envelope{Success: status < 400, Message: message})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// respondError maps service errors onto status codes. Internal details are
// logged, never returned.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, canvas.ErrCanvasNotFound):
		respondMessage(w, http.StatusNotFound, "Canvas not found")
	case errors.Is(err, canvas.ErrForbidden):
		respondMessage(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, canvas.ErrInvalid):
		respondMessage(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", zap.Error(err))
		respondMessage(w, http.StatusInternalServerError, "Server Error")
	}
}

// decodeJSON: strict body decoding with a size cap
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, canvas.MaxImageBytes+1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
