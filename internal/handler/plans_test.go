package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/growth-advisor/internal/events"
	"github.com/capitalize-ai/growth-advisor/internal/middleware"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/internal/service"
	"github.com/capitalize-ai/growth-advisor/internal/store"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
)

const testSecret = "handler-secret"

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

type stubAdvisor struct {
	advice *model.Advice
	err    error
}

func (s stubAdvisor) ActionableSteps(context.Context, model.GeneratePlanRequest) (*model.Advice, error) {
	return s.advice, s.err
}

// memoryStream keeps published events in memory, numbered from 1.
type memoryStream struct {
	mu     sync.Mutex
	events []model.PlanEvent
}

func (m *memoryStream) Publish(_ context.Context, e *model.PlanEvent) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Sequence = uint64(len(m.events) + 1)
	m.events = append(m.events, *e)
	return e.Sequence, nil
}

func (m *memoryStream) History(_ context.Context, userID, planID string, after uint64, limit int) (*model.PlanEventsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := &model.PlanEventsResponse{Events: []model.PlanEvent{}}
	for _, e := range m.events {
		if e.UserID != userID || e.PlanID != planID || e.Sequence <= after {
			continue
		}
		if len(resp.Events) == limit {
			resp.HasMore = true
			break
		}
		resp.Events = append(resp.Events, e)
		resp.LastSequence = e.Sequence
	}
	return resp, nil
}

type planFixture struct {
	router  http.Handler
	handler *PlanHandler
	stream  events.Stream
}

func newPlanFixture(t *testing.T, advisor service.Advisor, stream events.Stream) *planFixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := NewPlanHandler(service.NewPlanService(st, advisor, stream, logger.Nop())).
		WithStreamIntervals(time.Hour, 5*time.Millisecond)

	r := chi.NewRouter()
	r.Use(middleware.Auth(testSecret))
	r.Route("/plans", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Post("/generate", h.Generate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/complete", h.Complete)
			r.Post("/steps/{index}/complete", h.CompleteStep)
			r.Get("/events", h.Events)
			r.Get("/events/stream", h.Stream)
		})
	})
	return &planFixture{router: r, handler: h, stream: stream}
}

func (f *planFixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", bearer(t, userID))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var sampleSteps = []model.ActionStep{
	{Action: "Write offer", Priority: model.PriorityHigh, Timeframe: "1 week"},
	{Action: "Call leads", Priority: model.PriorityMedium, Timeframe: "2 weeks"},
}

func (f *planFixture) create(t *testing.T, userID string) model.ActionPlan {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/plans", userID, model.CreatePlanRequest{
		Stage: "Stage 3 - Stabilize", BusinessArea: "SALES", Goal: "Close more", Steps: sampleSteps,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.ActionPlan](t, rec)
}

func TestPlanCRUD(t *testing.T) {
	f := newPlanFixture(t, nil, events.Nop{})

	plan := f.create(t, "user-1")
	assert.Equal(t, "user-1", plan.UserID)

	rec := f.do(t, http.MethodGet, "/plans/"+plan.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.ID, decode[model.ActionPlan](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/plans/"+plan.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	goal := "<b>Close</b> faster"
	rec = f.do(t, http.MethodPatch, "/plans/"+plan.ID, "user-1", model.UpdatePlanRequest{Goal: &goal})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Close faster", decode[model.ActionPlan](t, rec).Goal)

	rec = f.do(t, http.MethodGet, "/plans?limit=1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[model.ListPlansResponse](t, rec)
	assert.Equal(t, 1, list.Total)
	assert.False(t, list.HasMore)

	rec = f.do(t, http.MethodDelete, "/plans/"+plan.ID, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/plans/"+plan.ID, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanValidation(t *testing.T) {
	f := newPlanFixture(t, nil, events.Nop{})

	rec := f.do(t, http.MethodGet, "/plans/not-a-uuid", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/plans", "user-1", model.CreatePlanRequest{Stage: "s", BusinessArea: "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader("{"))
	req.Header.Set("Authorization", bearer(t, "user-1"))
	raw := httptest.NewRecorder()
	f.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestCompleteStep(t *testing.T) {
	f := newPlanFixture(t, nil, events.Nop{})
	plan := f.create(t, "user-1")

	rec := f.do(t, http.MethodPost, "/plans/"+plan.ID+"/steps/1/complete", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.ActionPlan](t, rec)
	assert.False(t, updated.Steps[0].Completed)
	assert.True(t, updated.Steps[1].Completed)
	assert.False(t, updated.IsCompleted)

	rec = f.do(t, http.MethodPost, "/plans/"+plan.ID+"/steps/5/complete", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"step index out of range"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/plans/"+plan.ID+"/steps/x/complete", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/plans/"+plan.ID+"/complete", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.ActionPlan](t, rec).IsCompleted)
}

func TestGenerate(t *testing.T) {
	advice := &model.Advice{Goal: "Build referrals", Steps: sampleSteps}
	f := newPlanFixture(t, stubAdvisor{advice: advice}, events.Nop{})

	rec := f.do(t, http.MethodPost, "/plans/generate", "user-1", model.GeneratePlanRequest{
		Stage: "Stage 2 - Advertise", BusinessArea: "MARKETING", CurrentSituation: "No leads",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[model.ActionPlan](t, rec)
	assert.Equal(t, "Build referrals", plan.Goal)
	assert.Len(t, plan.Steps, 2)

	rec = f.do(t, http.MethodPost, "/plans/generate", "user-1", model.GeneratePlanRequest{Stage: "s"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsDisabled(t *testing.T) {
	f := newPlanFixture(t, nil, events.Nop{})
	plan := f.create(t, "user-1")

	rec := f.do(t, http.MethodGet, "/plans/"+plan.ID+"/events", "user-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventsHistory(t *testing.T) {
	f := newPlanFixture(t, nil, &memoryStream{})
	plan := f.create(t, "user-1")
	f.do(t, http.MethodPost, "/plans/"+plan.ID+"/steps/0/complete", "user-1", nil)

	rec := f.do(t, http.MethodGet, "/plans/"+plan.ID+"/events", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.PlanEventsResponse](t, rec)
	require.Len(t, resp.Events, 2)
	assert.Equal(t, model.EventPlanCreated, resp.Events[0].Type)
	assert.Equal(t, model.EventStepCompleted, resp.Events[1].Type)

	rec = f.do(t, http.MethodGet, "/plans/"+plan.ID+"/events?after_seq=1", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[model.PlanEventsResponse](t, rec).Events, 1)

	rec = f.do(t, http.MethodGet, "/plans/"+plan.ID+"/events?after_seq=-1", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamReplaysAndFollows(t *testing.T) {
	stream := &memoryStream{}
	f := newPlanFixture(t, nil, stream)
	plan := f.create(t, "user-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/plans/"+plan.ID+"/events/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	rec := httptest.NewRecorder()

	// A live event lands after the replay; the handler's poller picks it up.
	go func() {
		time.Sleep(30 * time.Millisecond)
		stream.Publish(context.Background(), &model.PlanEvent{PlanID: plan.ID, UserID: "user-1", Type: model.EventPlanCompleted})
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	f.router.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, `"type":"created"`)
	assert.Contains(t, body, "event: replay_complete\n")
	assert.Contains(t, body, `"type":"completed"`)
	assert.Less(t, strings.Index(body, "replay_complete"), strings.Index(body, `"type":"completed"`))
}

// brokenWriter accepts a fixed number of writes and then fails, like a
// connection whose write deadline has passed.
type brokenWriter struct {
	header http.Header
	allow  int
	writes int
}

func (b *brokenWriter) Header() http.Header { return b.header }
func (b *brokenWriter) WriteHeader(int)     {}
func (b *brokenWriter) Flush()              {}

func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	if b.writes > b.allow {
		return 0, errors.New("i/o timeout")
	}
	return len(p), nil
}

func TestStreamStopsWhenWritesFail(t *testing.T) {
	f := newPlanFixture(t, nil, &memoryStream{})
	f.handler.WithStreamIntervals(5*time.Millisecond, time.Hour)
	plan := f.create(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/plans/"+plan.ID+"/events/stream", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	// connected, the created event and replay_complete go through; the
	// first heartbeat fails.
	w := &brokenWriter{header: http.Header{}, allow: 3}

	done := make(chan struct{})
	go func() {
		f.router.ServeHTTP(w, req)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream kept running after a failed write")
	}
	assert.Equal(t, 4, w.writes)
}

func TestStreamRejectsForeignPlan(t *testing.T) {
	f := newPlanFixture(t, nil, &memoryStream{})
	plan := f.create(t, "user-1")

	rec := f.do(t, http.MethodGet, "/plans/"+plan.ID+"/events/stream", "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
