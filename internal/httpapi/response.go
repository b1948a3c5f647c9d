package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Envelope wraps every response body.
type Envelope struct {
	Status  int    `json:"status"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Status: http.StatusOK, Success: true, Data: data})
}

func failure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Status: status, Message: message})
}
