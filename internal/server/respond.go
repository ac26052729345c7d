package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pocketgate/pocketgate/internal/approval"
	"github.com/pocketgate/pocketgate/internal/auth"
	"github.com/pocketgate/pocketgate/internal/pairing"
)

// MaxPayloadSizeBytes caps request bodies; part of the wire contract.
const MaxPayloadSizeBytes = 8192

var errPayloadTooLarge = errors.New("payload too large")

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{Success: false, Error: msg})
}

// writeFailure maps actor and authentication errors onto the API error
// taxonomy. Unknown errors become opaque 500s.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
	case errors.Is(err, auth.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "Missing credentials")
	case errors.Is(err, auth.ErrTimestampOutOfRange):
		writeError(w, http.StatusUnauthorized, "Timestamp out of range")
	case errors.Is(err, auth.ErrDeviceNotFound):
		writeError(w, http.StatusUnauthorized, "Device not found")
	case errors.Is(err, auth.ErrNonceReused):
		writeError(w, http.StatusUnauthorized, "Nonce already used")
	case errors.Is(err, auth.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, pairing.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
	case errors.Is(err, approval.ErrTooManyPending):
		writeError(w, http.StatusTooManyRequests, "Too many pending requests")
	case errors.Is(err, approval.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "Request id already exists")
	case errors.Is(err, approval.ErrAlreadyDecided):
		writeError(w, http.StatusBadRequest, "Request already decided")
	case errors.Is(err, approval.ErrNotFound):
		writeError(w, http.StatusNotFound, "Request not found")
	case errors.Is(err, pairing.ErrNotFound):
		writeError(w, http.StatusNotFound, "Device not registered")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// readBody drains the request body up to the payload cap.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadSizeBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxPayloadSizeBytes {
		return nil, errPayloadTooLarge
	}
	return body, nil
}
