package api

import (
	"MarketLedger/internal/market"
	"encoding/json"
	"net/http"
)

// respondEngineError maps the engine's rejection taxonomy onto HTTP
// status codes: validation 400, authorization 403, state 409, gate 503.
// Anything unclassified is an internal failure.
func respondEngineError(w http.ResponseWriter, err error) {
	var status int
	class := market.ClassOf(err)
	switch class {
	case market.ClassValidation:
		status = http.StatusBadRequest
	case market.ClassAuthorization:
		status = http.StatusForbidden
	case market.ClassState:
		status = http.StatusConflict
	case market.ClassGate:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"class": class.String(),
	})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
