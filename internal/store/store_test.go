package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/growth-advisor/internal/model"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*PlanStore, *stepClock) {
	t.Helper()

	clock := &stepClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	s, err := Open(filepath.Join(t.TempDir(), "nested", "plans.db"), WithClock(clock.now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func samplePlan(userID string) *model.ActionPlan {
	return &model.ActionPlan{
		UserID:           userID,
		Stage:            "Stage 2 - Advertise",
		BusinessArea:     "SALES",
		Goal:             "Create and implement CLOSER framework script",
		CurrentSituation: "Two clients",
		Steps: []model.ActionStep{
			{Action: "Write the script", Priority: model.PriorityHigh, Timeframe: "1 week"},
			{Action: "Role-play calls", Priority: model.PriorityMedium, Timeframe: "2 weeks", Resources: "A partner"},
			{Action: "Record calls", Priority: model.PriorityLow, Timeframe: "TBD"},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))
	assert.NotEmpty(t, plan.ID)
	assert.False(t, plan.CreatedAt.IsZero())

	got, err := s.Get(ctx, "user-1", plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan, got)
}

func TestCreateRequiresOwner(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.Create(context.Background(), samplePlan("")))
}

func TestGetIsScopedToOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))

	_, err := s.Get(ctx, "user-2", plan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "user-2", plan.ID), ErrNotFound)
	_, err = s.MarkPlanCompleted(ctx, "user-2", plan.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		p := samplePlan("user-1")
		require.NoError(t, s.Create(ctx, p))
		ids = append(ids, p.ID)
	}
	require.NoError(t, s.Create(ctx, samplePlan("user-2")))

	plans, total, err := s.List(ctx, "user-1", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, plans, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{plans[0].ID, plans[1].ID, plans[2].ID})

	page, total, err := s.List(ctx, "user-1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[0], page[1].ID)

	empty, total, err := s.List(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdatePartial(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))

	goal := "Close five deals"
	updated, err := s.Update(ctx, "user-1", plan.ID, model.UpdatePlanRequest{Goal: &goal})
	require.NoError(t, err)

	assert.Equal(t, "Close five deals", updated.Goal)
	assert.Equal(t, plan.CurrentSituation, updated.CurrentSituation)
	assert.Equal(t, plan.Steps, updated.Steps)
	assert.True(t, updated.UpdatedAt.After(plan.UpdatedAt))

	got, err := s.Get(ctx, "user-1", plan.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestMarkStepCompletedTouchesOnlyThatStep(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))

	updated, err := s.MarkStepCompleted(ctx, "user-1", plan.ID, 1)
	require.NoError(t, err)

	require.Len(t, updated.Steps, 3)
	assert.Equal(t, plan.Steps[0], updated.Steps[0])
	assert.Equal(t, plan.Steps[2], updated.Steps[2])

	step := updated.Steps[1]
	assert.True(t, step.Completed)
	require.NotNil(t, step.CompletedAt)
	assert.Equal(t, clock.t, *step.CompletedAt)
	assert.Equal(t, plan.Steps[1].Action, step.Action)
	assert.Equal(t, plan.Steps[1].Resources, step.Resources)

	// Completing every step leaves the plan flag alone.
	_, err = s.MarkStepCompleted(ctx, "user-1", plan.ID, 0)
	require.NoError(t, err)
	updated, err = s.MarkStepCompleted(ctx, "user-1", plan.ID, 2)
	require.NoError(t, err)
	assert.True(t, updated.StepsCompleted())
	assert.False(t, updated.IsCompleted)
}

func TestMarkStepCompletedOutOfRange(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))

	_, err := s.MarkStepCompleted(ctx, "user-1", plan.ID, 3)
	assert.ErrorIs(t, err, ErrStepOutOfRange)
	_, err = s.MarkStepCompleted(ctx, "user-1", plan.ID, -1)
	assert.ErrorIs(t, err, ErrStepOutOfRange)

	got, err := s.Get(ctx, "user-1", plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan, got)
}

func TestMarkPlanCompletedIsIndependentOfSteps(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))

	updated, err := s.MarkPlanCompleted(ctx, "user-1", plan.ID)
	require.NoError(t, err)

	// The plan may be completed while steps are still open.
	assert.True(t, updated.IsCompleted)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, clock.t, *updated.CompletedAt)
	assert.False(t, updated.StepsCompleted())
	assert.Equal(t, plan.Steps, updated.Steps)

	reopen := false
	updated, err = s.Update(ctx, "user-1", plan.ID, model.UpdatePlanRequest{IsCompleted: &reopen})
	require.NoError(t, err)
	assert.False(t, updated.IsCompleted)
	assert.Nil(t, updated.CompletedAt)
}

func TestDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	plan := samplePlan("user-1")
	require.NoError(t, s.Create(ctx, plan))

	require.NoError(t, s.Delete(ctx, "user-1", plan.ID))
	_, err := s.Get(ctx, "user-1", plan.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "user-1", plan.ID), ErrNotFound)
}

func TestPing(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
