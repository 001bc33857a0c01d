// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/middleware"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/internal/service"
)

// PlanHandler handles action plan endpoints.
type PlanHandler struct {
	service           *service.PlanService
	heartbeatInterval time.Duration
	pollInterval      time.Duration
}

// NewPlanHandler creates a new plan handler.
func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{
		service:           svc,
		heartbeatInterval: 30 * time.Second,
		pollInterval:      5 * time.Second,
	}
}

// WithStreamIntervals sets the SSE heartbeat and poll periods.
func (h *PlanHandler) WithStreamIntervals(heartbeat, poll time.Duration) *PlanHandler {
	h.heartbeatInterval = heartbeat
	h.pollInterval = poll
	return h
}

// Generate handles POST /api/v1/plans/generate
func (h *PlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.GeneratePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateGenerateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.service.Generate(ctx, userID, &req)
	if err != nil {
		h.fail(w, r, err, "failed to generate action plan")
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// Create handles POST /api/v1/plans
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreatePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateCreateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.service.Create(ctx, userID, &req)
	if err != nil {
		h.fail(w, r, err, "failed to save action plan")
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// List handles GET /api/v1/plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := queryInt(r, "limit", 20, 1, 100)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	resp, err := h.service.List(ctx, userID, limit, offset)
	if err != nil {
		h.fail(w, r, err, "failed to list action plans")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/plans/{id}
func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	plan, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "failed to load action plan")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// Update handles PATCH /api/v1/plans/{id}
func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	var req model.UpdatePlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, field := range []*string{req.Goal, req.CurrentSituation, req.Context} {
		if field != nil {
			*field = middleware.SanitizeText(*field)
		}
	}

	plan, err := h.service.Update(r.Context(), middleware.GetUserID(r.Context()), id, &req)
	if err != nil {
		h.fail(w, r, err, "failed to update action plan")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// Delete handles DELETE /api/v1/plans/{id}
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		h.fail(w, r, err, "failed to delete action plan")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /api/v1/plans/{id}/complete
func (h *PlanHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	plan, err := h.service.Complete(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err, "failed to complete action plan")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// CompleteStep handles POST /api/v1/plans/{id}/steps/{index}/complete
func (h *PlanHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid step index")
		return
	}

	plan, err := h.service.CompleteStep(r.Context(), middleware.GetUserID(r.Context()), id, index)
	if err != nil {
		h.fail(w, r, err, "failed to complete step")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// Events handles GET /api/v1/plans/{id}/events
func (h *PlanHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	var after uint64
	if s := r.URL.Query().Get("after_seq"); s != "" {
		parsed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_seq")
			return
		}
		after = parsed
	}
	limit := queryInt(r, "limit", 50, 1, 100)

	resp, err := h.service.Events(r.Context(), middleware.GetUserID(r.Context()), id, after, limit)
	if err != nil {
		h.fail(w, r, err, "failed to load plan events")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *PlanHandler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := errorStatus(err, fallback)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(r.Context()).Error(fallback, zap.Error(err))
	}
	writeError(w, status, msg)
}

func planID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidatePlanID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}
