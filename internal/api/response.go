package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pedira/pedira/internal/log"
)

// errorEnvelope is the uniform error response body.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes a JSON response. The body is encoded into a buffer first
// so an encoding failure can still produce a clean 500 before any header is
// sent.
func writeJSON(w http.ResponseWriter, logger log.Logger, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("encoding JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are routine.
		logger.Debug("writing response body", "error", err)
	}
}

// writeError writes the error envelope. message must already be localised
// and safe to show; internal detail stays in the logs.
func writeError(w http.ResponseWriter, logger log.Logger, status int, message string, details map[string]any) {
	writeJSON(w, logger, status, errorEnvelope{Error: errorBody{
		Code:    status,
		Message: message,
		Details: details,
	}})
}
