package model

import (
	"time"
)

// EventType represents the type of plan lifecycle event.
type EventType string

const (
	EventPlanCreated   EventType = "created"
	EventPlanUpdated   EventType = "updated"
	EventStepCompleted EventType = "step_completed"
	EventPlanCompleted EventType = "completed"
	EventPlanDeleted   EventType = "deleted"
)

// PlanEvent records a change to an action plan.
type PlanEvent struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	UserID       string    `json:"user_id"`
	Type         EventType `json:"type"`
	Stage        string    `json:"stage,omitempty"`
	BusinessArea string    `json:"business_area,omitempty"`
	StepIndex    *int      `json:"step_index,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Sequence     uint64    `json:"sequence,omitempty"`
}

// PlanEventsResponse is the response for a plan's event history.
type PlanEventsResponse struct {
	Events       []PlanEvent `json:"events"`
	LastSequence uint64      `json:"last_sequence"`
	HasMore      bool        `json:"has_more"`
}
