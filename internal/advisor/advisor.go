// Package advisor generates action plans for a business area by asking a
// language model and recovering structured steps from its reply.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/growth"
	"github.com/capitalize-ai/growth-advisor/internal/llm"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
	"github.com/capitalize-ai/growth-advisor/pkg/metrics"
	"github.com/capitalize-ai/growth-advisor/pkg/tracing"
)

// ErrInvalidRequest is returned when a required input is missing.
var ErrInvalidRequest = errors.New("stage, business area and current situation are required")

// Options tunes the completion call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Service produces advice for one business area at a time.
type Service struct {
	client llm.Client
	growth *growth.Model
	opts   Options
	logger *logger.Logger
}

// NewService creates an advisor. A nil model uses growth.Default().
func NewService(client llm.Client, gm *growth.Model, opts Options, log *logger.Logger) *Service {
	if gm == nil {
		gm = growth.Default()
	}
	return &Service{
		client: client,
		growth: gm,
		opts:   opts,
		logger: log.Named("advisor"),
	}
}

// ActionableSteps asks the model for a plan and parses the reply. Completion
// errors are returned as is; an unparseable reply still yields one step.
func (s *Service) ActionableSteps(ctx context.Context, req model.GeneratePlanRequest) (*model.Advice, error) {
	if strings.TrimSpace(req.Stage) == "" || strings.TrimSpace(req.BusinessArea) == "" || strings.TrimSpace(req.CurrentSituation) == "" {
		return nil, ErrInvalidRequest
	}

	ctx, span := tracing.Tracer("advisor").Start(ctx, "advisor.actionable_steps")
	defer span.End()
	span.SetAttributes(
		attribute.String("plan.stage", req.Stage),
		attribute.String("plan.business_area", req.BusinessArea),
	)

	goal := s.growth.Goal(req.Stage, req.BusinessArea)

	resp, err := s.client.Complete(ctx, &llm.CompletionRequest{
		Model: s.opts.Model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: SystemPrompt()},
			{Role: llm.RoleUser, Content: UserPrompt(req.Stage, req.BusinessArea, req.CurrentSituation, req.Context, goal)},
		},
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to generate action plan: %w", err)
	}

	advice, kind := Parse(resp.Content, goal)
	metrics.ActionPlansTotal.WithLabelValues(kind.String()).Inc()
	span.SetAttributes(
		attribute.String("plan.parse_mode", kind.String()),
		attribute.Int("plan.steps", len(advice.Steps)),
	)

	s.logger.Debug("action plan parsed",
		zap.String("stage", req.Stage),
		zap.String("business_area", req.BusinessArea),
		zap.String("parse_mode", kind.String()),
		zap.Int("steps", len(advice.Steps)),
	)

	return advice, nil
}
