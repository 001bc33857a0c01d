package handler

import (
	"net/http"
	"strconv"

	"github.com/capitalize-ai/growth-advisor/internal/growth"
)

// StageHandler serves the growth stage model.
type StageHandler struct {
	model *growth.Model
}

// NewStageHandler creates a new stage handler.
func NewStageHandler(m *growth.Model) *StageHandler {
	if m == nil {
		m = growth.Default()
	}
	return &StageHandler{model: m}
}

// List handles GET /api/v1/stages
func (h *StageHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stages":         h.model.Stages(),
		"business_areas": h.model.BusinessAreas(),
	})
}

type currentStageResponse struct {
	Stage     growth.Stage      `json:"stage"`
	Label     string            `json:"label"`
	NextStage *growth.Stage     `json:"next_stage,omitempty"`
	SalesPlan *growth.SalesPlan `json:"sales_plan,omitempty"`
}

// Current handles GET /api/v1/stages/current
func (h *StageHandler) Current(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	headcount, err := strconv.Atoi(q.Get("headcount"))
	if err != nil || headcount < 0 {
		writeError(w, http.StatusBadRequest, "headcount must be a non-negative integer")
		return
	}
	revenue, err := strconv.ParseFloat(q.Get("revenue"), 64)
	if err != nil || revenue < 0 {
		writeError(w, http.StatusBadRequest, "revenue must be a non-negative number")
		return
	}

	stage, ok := h.model.Classify(headcount, revenue)
	if !ok {
		writeError(w, http.StatusNotFound, "no stage matches this business")
		return
	}

	resp := currentStageResponse{Stage: stage, Label: stage.Label()}
	if next, ok := h.model.Next(stage); ok {
		resp.NextStage = &next
	}

	price, priceErr := strconv.ParseFloat(q.Get("service_price"), 64)
	weeks, weeksErr := strconv.Atoi(q.Get("delivery_weeks"))
	if priceErr == nil && weeksErr == nil {
		if plan, ok := h.model.PlanSales(headcount, revenue, price, weeks); ok {
			resp.SalesPlan = &plan
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
