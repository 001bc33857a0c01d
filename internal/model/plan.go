package model

import (
	"time"
)

// Priority is the urgency tier of an action step.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ActionStep is one recommended step of a plan.
type ActionStep struct {
	Action      string     `json:"action"`
	Priority    Priority   `json:"priority"`
	Timeframe   string     `json:"timeframe"`
	Resources   string     `json:"resources,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ActionPlan is a persisted, AI-generated set of steps owned by one user.
type ActionPlan struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	Stage            string       `json:"stage"`
	BusinessArea     string       `json:"business_area"`
	Goal             string       `json:"goal"`
	CurrentSituation string       `json:"current_situation,omitempty"`
	Context          string       `json:"context,omitempty"`
	Steps            []ActionStep `json:"steps"`
	IsCompleted      bool         `json:"is_completed"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	CompletedAt      *time.Time   `json:"completed_at,omitempty"`
}

// StepsCompleted reports whether every step is marked complete. It is
// informational only; IsCompleted is set independently.
func (p *ActionPlan) StepsCompleted() bool {
	if len(p.Steps) == 0 {
		return false
	}
	for _, s := range p.Steps {
		if !s.Completed {
			return false
		}
	}
	return true
}

// Advice is the goal and steps recovered from one model reply.
type Advice struct {
	Goal  string       `json:"goal"`
	Steps []ActionStep `json:"steps"`
}

// GeneratePlanRequest asks the advisor for a new plan.
type GeneratePlanRequest struct {
	Stage            string `json:"stage"`
	BusinessArea     string `json:"business_area"`
	CurrentSituation string `json:"current_situation"`
	Context          string `json:"context,omitempty"`
}

// CreatePlanRequest stores an already generated plan.
type CreatePlanRequest struct {
	Stage            string       `json:"stage"`
	BusinessArea     string       `json:"business_area"`
	Goal             string       `json:"goal"`
	CurrentSituation string       `json:"current_situation,omitempty"`
	Context          string       `json:"context,omitempty"`
	Steps            []ActionStep `json:"steps"`
	IsCompleted      bool         `json:"is_completed,omitempty"`
}

// UpdatePlanRequest is a partial update; nil fields are left unchanged.
type UpdatePlanRequest struct {
	Goal             *string       `json:"goal,omitempty"`
	CurrentSituation *string       `json:"current_situation,omitempty"`
	Context          *string       `json:"context,omitempty"`
	Steps            *[]ActionStep `json:"steps,omitempty"`
	IsCompleted      *bool         `json:"is_completed,omitempty"`
}

// ListPlansResponse is the response for listing plans.
type ListPlansResponse struct {
	Plans   []ActionPlan `json:"plans"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
}
