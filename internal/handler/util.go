package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/capitalize-ai/growth-advisor/internal/advisor"
	"github.com/capitalize-ai/growth-advisor/internal/crm"
	"github.com/capitalize-ai/growth-advisor/internal/events"
	"github.com/capitalize-ai/growth-advisor/internal/llm"
	"github.com/capitalize-ai/growth-advisor/internal/service"
	"github.com/capitalize-ai/growth-advisor/internal/store"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// errorStatus maps domain errors to an HTTP status and client message.
// Anything unrecognised is a 500 with the fallback message.
func errorStatus(err error, fallback string) (int, string) {
	var rateErr *llm.RateLimitError
	var crmErr *crm.StatusError

	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "action plan not found"
	case errors.Is(err, store.ErrStepOutOfRange):
		return http.StatusBadRequest, "step index out of range"
	case errors.Is(err, service.ErrInvalidPlan), errors.Is(err, advisor.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, llm.ErrNotConfigured):
		return http.StatusServiceUnavailable, "AI service not configured"
	case errors.Is(err, crm.ErrNotConfigured):
		return http.StatusUnauthorized, "HubSpot not connected"
	case errors.Is(err, events.ErrDisabled):
		return http.StatusServiceUnavailable, "plan events are disabled"
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, "AI service rate limit exceeded, please try again shortly"
	case errors.As(err, &crmErr):
		if crmErr.StatusCode == http.StatusUnauthorized || crmErr.StatusCode == http.StatusForbidden {
			return http.StatusUnauthorized, "HubSpot authentication failed"
		}
		return http.StatusBadGateway, "HubSpot request failed"
	}
	return http.StatusInternalServerError, fallback
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}
