package llm

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/pkg/logger"
	"github.com/capitalize-ai/growth-advisor/pkg/metrics"
	"github.com/capitalize-ai/growth-advisor/pkg/tracing"
)

// RetryPolicy controls how rate-limited completions are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// BaseDelay is scaled by 2^attempt when the provider sends no
	// Retry-After hint.
	BaseDelay time.Duration
}

// DefaultRetryPolicy makes three attempts with one-second base backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	return p.BaseDelay * time.Duration(1<<uint(attempt))
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryingClient retries rate-limited completions. Any other error is
// returned immediately; the last rate-limit error is returned once attempts
// run out.
type RetryingClient struct {
	Client
	policy RetryPolicy
	sleep  SleepFunc
	logger *logger.Logger
}

// NewRetryingClient wraps inner with the retry policy.
func NewRetryingClient(inner Client, policy RetryPolicy, log *logger.Logger) *RetryingClient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingClient{
		Client: inner,
		policy: policy,
		sleep:  sleepContext,
		logger: log,
	}
}

// WithSleep replaces the wait function. Used by tests.
func (c *RetryingClient) WithSleep(fn SleepFunc) *RetryingClient {
	c.sleep = fn
	return c
}

// Complete calls the wrapped client, retrying on RateLimitError.
func (c *RetryingClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	ctx, span := tracing.Tracer("llm").Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", c.Name()),
		attribute.String("llm.model", req.Model),
	)

	start := time.Now()
	for attempt := 1; ; attempt++ {
		resp, err := c.Client.Complete(ctx, req)
		if err == nil {
			span.SetAttributes(attribute.Int("llm.attempts", attempt))
			metrics.RecordCompletion(c.Name(), resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
			return resp, nil
		}

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) || attempt >= c.policy.MaxAttempts {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.RecordCompletion(c.Name(), "", "error", time.Since(start).Seconds(), 0, 0)
			return nil, err
		}

		wait := c.policy.Delay(attempt, rateErr.RetryAfter)
		c.logger.Warn("completion rate limited, retrying",
			zap.String("provider", c.Name()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Duration("wait", wait),
		)
		metrics.LLMRetriesTotal.WithLabelValues(c.Name()).Inc()

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
