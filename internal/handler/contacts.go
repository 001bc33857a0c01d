package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/middleware"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/internal/service"
)

// AccessTokenCookie holds the HubSpot OAuth access token.
const AccessTokenCookie = "hubspot_access_token"

// ContactHandler handles CRM contact endpoints.
type ContactHandler struct {
	service *service.ContactService
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(svc *service.ContactService) *ContactHandler {
	return &ContactHandler{service: svc}
}

// List handles GET /api/v1/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	analyze, _ := strconv.ParseBool(r.URL.Query().Get("analyze"))

	var token string
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		token = c.Value
	}

	resp, err := h.service.List(r.Context(), token, analyze)
	if err != nil {
		status, msg := errorStatus(err, "failed to fetch contacts from HubSpot")
		middleware.LoggerFrom(r.Context()).Warn("contact fetch failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Analyze handles POST /api/v1/contacts/analyze
func (h *ContactHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req model.AnalyzeContactsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	analysis, err := h.service.Analyze(r.Context(), req.Contacts)
	if err != nil {
		status, msg := errorStatus(err, "failed to analyze contacts")
		middleware.LoggerFrom(r.Context()).Error("contact analysis failed", zap.Error(err))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, model.AnalyzeContactsResponse{
		Success:   true,
		Analysis:  analysis,
		Timestamp: time.Now().UTC(),
	})
}
