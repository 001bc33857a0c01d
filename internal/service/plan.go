// Package service provides business logic for the growth advisor.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/events"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
)

// ErrInvalidPlan is returned when a plan to store is missing required data.
var ErrInvalidPlan = errors.New("invalid action plan")

// PlanStore persists plans per user.
type PlanStore interface {
	Create(ctx context.Context, plan *model.ActionPlan) error
	List(ctx context.Context, userID string, limit, offset int) ([]model.ActionPlan, int, error)
	Get(ctx context.Context, userID, id string) (*model.ActionPlan, error)
	Update(ctx context.Context, userID, id string, req model.UpdatePlanRequest) (*model.ActionPlan, error)
	MarkStepCompleted(ctx context.Context, userID, id string, index int) (*model.ActionPlan, error)
	MarkPlanCompleted(ctx context.Context, userID, id string) (*model.ActionPlan, error)
	Delete(ctx context.Context, userID, id string) error
}

// Advisor generates advice for a business area.
type Advisor interface {
	ActionableSteps(ctx context.Context, req model.GeneratePlanRequest) (*model.Advice, error)
}

// PlanService handles action plan operations.
type PlanService struct {
	store   PlanStore
	advisor Advisor
	events  events.Stream
	logger  *logger.Logger
}

// NewPlanService creates a new plan service. A nil stream disables events.
func NewPlanService(store PlanStore, advisor Advisor, stream events.Stream, log *logger.Logger) *PlanService {
	if stream == nil {
		stream = events.Nop{}
	}
	return &PlanService{
		store:   store,
		advisor: advisor,
		events:  stream,
		logger:  log.Named("plans"),
	}
}

// Generate asks the advisor for steps and stores the result as a new plan.
func (s *PlanService) Generate(ctx context.Context, userID string, req *model.GeneratePlanRequest) (*model.ActionPlan, error) {
	advice, err := s.advisor.ActionableSteps(ctx, *req)
	if err != nil {
		return nil, err
	}

	return s.Create(ctx, userID, &model.CreatePlanRequest{
		Stage:            req.Stage,
		BusinessArea:     req.BusinessArea,
		Goal:             advice.Goal,
		CurrentSituation: req.CurrentSituation,
		Context:          req.Context,
		Steps:            advice.Steps,
	})
}

// Create stores a plan.
func (s *PlanService) Create(ctx context.Context, userID string, req *model.CreatePlanRequest) (*model.ActionPlan, error) {
	if err := validatePlan(req.Stage, req.BusinessArea, req.Steps); err != nil {
		return nil, err
	}

	plan := &model.ActionPlan{
		UserID:           userID,
		Stage:            req.Stage,
		BusinessArea:     req.BusinessArea,
		Goal:             req.Goal,
		CurrentSituation: req.CurrentSituation,
		Context:          req.Context,
		Steps:            req.Steps,
		IsCompleted:      req.IsCompleted,
	}
	if err := s.store.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to save action plan: %w", err)
	}

	s.logger.Info("action plan created",
		zap.String("plan_id", plan.ID),
		zap.String("user_id", userID),
		zap.String("stage", plan.Stage),
		zap.String("business_area", plan.BusinessArea),
		zap.Int("steps", len(plan.Steps)),
	)
	s.publish(ctx, plan, model.EventPlanCreated, nil)

	return plan, nil
}

// List returns a page of the user's plans, newest first.
func (s *PlanService) List(ctx context.Context, userID string, limit, offset int) (*model.ListPlansResponse, error) {
	plans, total, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list action plans: %w", err)
	}
	return &model.ListPlansResponse{
		Plans:   plans,
		Total:   total,
		HasMore: offset+len(plans) < total,
	}, nil
}

// Get returns one plan.
func (s *PlanService) Get(ctx context.Context, userID, id string) (*model.ActionPlan, error) {
	return s.store.Get(ctx, userID, id)
}

// Update applies a partial update.
func (s *PlanService) Update(ctx context.Context, userID, id string, req *model.UpdatePlanRequest) (*model.ActionPlan, error) {
	if req.Steps != nil {
		if err := validateSteps(*req.Steps); err != nil {
			return nil, err
		}
	}

	plan, err := s.store.Update(ctx, userID, id, *req)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, plan, model.EventPlanUpdated, nil)
	return plan, nil
}

// CompleteStep marks the step at index complete.
func (s *PlanService) CompleteStep(ctx context.Context, userID, id string, index int) (*model.ActionPlan, error) {
	plan, err := s.store.MarkStepCompleted(ctx, userID, id, index)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, plan, model.EventStepCompleted, &index)
	return plan, nil
}

// Complete marks the whole plan complete.
func (s *PlanService) Complete(ctx context.Context, userID, id string) (*model.ActionPlan, error) {
	plan, err := s.store.MarkPlanCompleted(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, plan, model.EventPlanCompleted, nil)
	return plan, nil
}

// Delete removes a plan.
func (s *PlanService) Delete(ctx context.Context, userID, id string) error {
	plan, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("action plan deleted", zap.String("plan_id", id), zap.String("user_id", userID))
	s.publish(ctx, plan, model.EventPlanDeleted, nil)
	return nil
}

// Events returns the lifecycle history of a plan the user owns.
func (s *PlanService) Events(ctx context.Context, userID, id string, afterSequence uint64, limit int) (*model.PlanEventsResponse, error) {
	if _, err := s.store.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return s.events.History(ctx, userID, id, afterSequence, limit)
}

// publish emits a lifecycle event. Failures are logged, never returned.
func (s *PlanService) publish(ctx context.Context, plan *model.ActionPlan, eventType model.EventType, stepIndex *int) {
	event := &model.PlanEvent{
		PlanID:       plan.ID,
		UserID:       plan.UserID,
		Type:         eventType,
		Stage:        plan.Stage,
		BusinessArea: plan.BusinessArea,
		StepIndex:    stepIndex,
	}
	if _, err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish plan event",
			zap.String("plan_id", plan.ID),
			zap.String("type", string(eventType)),
			zap.Error(err),
		)
	}
}

func validatePlan(stage, businessArea string, steps []model.ActionStep) error {
	if strings.TrimSpace(stage) == "" || strings.TrimSpace(businessArea) == "" {
		return fmt.Errorf("%w: stage and business area are required", ErrInvalidPlan)
	}
	return validateSteps(steps)
}

func validateSteps(steps []model.ActionStep) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidPlan)
	}
	for i, step := range steps {
		if strings.TrimSpace(step.Action) == "" {
			return fmt.Errorf("%w: step %d has no action", ErrInvalidPlan, i)
		}
		if !step.Priority.Valid() {
			return fmt.Errorf("%w: step %d has priority %q", ErrInvalidPlan, i, step.Priority)
		}
	}
	return nil
}
