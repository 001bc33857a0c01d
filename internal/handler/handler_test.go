package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/capitalize-ai/growth-advisor/internal/crm"
	"github.com/capitalize-ai/growth-advisor/internal/llm"
	"github.com/capitalize-ai/growth-advisor/internal/llm/llmtest"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/internal/service"
	"github.com/capitalize-ai/growth-advisor/internal/store"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
)

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

const chatBody = `{"messages":[{"role":"user","content":"How do I grow?"}]}`

func TestCompletionDefaults(t *testing.T) {
	fake := llmtest.Text("Focus on referrals.")
	h := NewCompletionHandler(fake)

	rec := postJSON(h.Complete, chatBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[model.CompletionResponse](t, rec)
	assert.Equal(t, "Focus on referrals.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 30, resp.Usage.TotalTokens)

	req := fake.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 10000, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
}

func TestCompletionOverrides(t *testing.T) {
	fake := llmtest.Text("ok")
	h := NewCompletionHandler(fake)

	rec := postJSON(h.Complete, `{"messages":[{"role":"user","content":"x"}],"model":"gpt-4o","max_tokens":50,"temperature":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := fake.LastRequest()
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 50, req.MaxTokens)
	assert.Zero(t, req.Temperature)
}

func TestCompletionErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		typ      string
		retryHdr string
	}{
		{"rate limit", &llm.RateLimitError{Provider: "openai"}, http.StatusTooManyRequests, "rate_limit", "60"},
		{"bad key", &llm.StatusError{Provider: "openai", StatusCode: 401, Code: "invalid_api_key"}, http.StatusUnauthorized, "invalid_api_key", ""},
		{"quota", &llm.StatusError{Provider: "openai", StatusCode: 429, Code: "insufficient_quota"}, http.StatusTooManyRequests, "insufficient_quota", ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCompletionHandler(llmtest.New(llmtest.Reply{Err: tt.err}))
			rec := postJSON(h.Complete, chatBody)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.retryHdr, rec.Header().Get("Retry-After"))
			assert.Equal(t, tt.typ, decode[model.CompletionError](t, rec).Type)
		})
	}
}

func TestCompletionRequestValidation(t *testing.T) {
	fake := llmtest.Text("unused")
	h := NewCompletionHandler(fake)

	assert.Equal(t, http.StatusBadRequest, postJSON(h.Complete, `{"messages":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, postJSON(h.Complete, `not json`).Code)
	assert.Zero(t, fake.Calls())

	unconfigured := NewCompletionHandler(nil)
	assert.Equal(t, http.StatusInternalServerError, postJSON(unconfigured.Complete, chatBody).Code)
}

func TestCompletionStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	NewCompletionHandler(llmtest.Text("")).Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"models":["fake"]`)
}

type fakeOAuth struct {
	configured bool
	token      *oauth2.Token
	err        error
	code       string
}

func (f *fakeOAuth) Configured() bool { return f.configured }

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://auth.example.com/authorize?state=" + state
}

func (f *fakeOAuth) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	f.code = code
	return f.token, f.err
}

func callback(h *OAuthHandler, query, stateCookieValue string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/hubspot/callback?"+query, nil)
	if stateCookieValue != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: stateCookieValue})
	}
	rec := httptest.NewRecorder()
	h.Callback(rec, req)
	return rec
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	require.Equal(t, http.StatusFound, rec.Code)
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", u.Host)
	return u.Query()
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestOAuthLogin(t *testing.T) {
	h := NewOAuthHandler(&fakeOAuth{configured: true}, "https://app.example.com", true)

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodGet, "/auth/hubspot/login", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	state := findCookie(rec, stateCookie)
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.True(t, state.Secure)
	assert.Equal(t, "https://auth.example.com/authorize?state="+state.Value, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	NewOAuthHandler(&fakeOAuth{}, "https://app.example.com", false).Login(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOAuthCallbackSuccess(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	oauth := &fakeOAuth{configured: true, token: &oauth2.Token{AccessToken: "tok-123", Expiry: now.Add(30 * time.Minute)}}
	h := NewOAuthHandler(oauth, "https://app.example.com", false)
	h.now = func() time.Time { return now }

	rec := callback(h, "code=abc&state=s1", "s1")

	assert.Equal(t, "true", redirectQuery(t, rec).Get("hubspot_success"))
	assert.Equal(t, "abc", oauth.code)
	token := findCookie(rec, AccessTokenCookie)
	require.NotNil(t, token)
	assert.Equal(t, "tok-123", token.Value)
	assert.Equal(t, 1800, token.MaxAge)
	assert.True(t, token.HttpOnly)
}

func TestOAuthCallbackFailures(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		cookie string
		err    error
		want   string
	}{
		{"provider error", "error=access_denied", "s1", nil, "access_denied"},
		{"missing code", "state=s1", "s1", nil, "no_code"},
		{"state mismatch", "code=abc&state=s2", "s1", nil, "invalid_state"},
		{"missing state cookie", "code=abc&state=s1", "", nil, "invalid_state"},
		{"exchange failure", "code=abc&state=s1", "s1", errors.New("bad code"), "token_exchange_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(&fakeOAuth{configured: true, err: tt.err}, "https://app.example.com", false)
			rec := callback(h, tt.query, tt.cookie)

			assert.Equal(t, tt.want, redirectQuery(t, rec).Get("hubspot_error"))
			assert.Nil(t, findCookie(rec, AccessTokenCookie))
		})
	}
}

func TestOAuthCallbackRejectsExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, expiry := range []time.Time{now, now.Add(500 * time.Millisecond), now.Add(-time.Minute)} {
		oauth := &fakeOAuth{configured: true, token: &oauth2.Token{AccessToken: "tok-123", Expiry: expiry}}
		h := NewOAuthHandler(oauth, "https://app.example.com", false)
		h.now = func() time.Time { return now }

		rec := callback(h, "code=abc&state=s1", "s1")

		assert.Equal(t, "token_exchange_failed", redirectQuery(t, rec).Get("hubspot_error"))
		assert.Nil(t, findCookie(rec, AccessTokenCookie))
	}
}

type stubFetcher struct {
	contacts []model.Contact
	err      error
	creds    crm.Credentials
}

func (s *stubFetcher) FetchAll(_ context.Context, creds crm.Credentials) ([]model.Contact, error) {
	s.creds = creds
	return s.contacts, s.err
}

func TestContactsUsesCookieToken(t *testing.T) {
	fetcher := &stubFetcher{contacts: []model.Contact{{ID: "1"}}}
	h := NewContactHandler(service.NewContactService(fetcher, nil, "key", logger.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "oauth-tok"})
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, crm.Credentials{AccessToken: "oauth-tok", APIKey: "key"}, fetcher.creds)
	resp := decode[model.ContactsResponse](t, rec)
	assert.Equal(t, 1, resp.ContactsCount)
}

func TestContactsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not connected", crm.ErrNotConfigured, http.StatusUnauthorized},
		{"crm rejected", &crm.StatusError{Strategy: crm.StrategyAPIKeyQuery, StatusCode: 401}, http.StatusUnauthorized},
		{"crm down", &crm.StatusError{Strategy: crm.StrategyOAuthBearer, StatusCode: 502}, http.StatusBadGateway},
		{"other", errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewContactHandler(service.NewContactService(&stubFetcher{err: tt.err}, nil, "", logger.Nop()))
			rec := httptest.NewRecorder()
			h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestContactsAnalyze(t *testing.T) {
	h := NewContactHandler(service.NewContactService(nil, llmtest.Text("Nurture your leads."), "", logger.Nop()))

	rec := postJSON(h.Analyze, `{"contacts":[{"id":"1","properties":{"firstname":"Ada"}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[model.AnalyzeContactsResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Nurture your leads.", resp.Analysis)

	unconfigured := NewContactHandler(service.NewContactService(nil, nil, "", logger.Nop()))
	rec = postJSON(unconfigured.Analyze, `{"contacts":[{"id":"1"}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStages(t *testing.T) {
	h := NewStageHandler(nil)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stages", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Improvise"`)

	rec = httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stages/current?headcount=2&revenue=300000&service_price=10000&delivery_weeks=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[currentStageResponse](t, rec)
	assert.Equal(t, "Stage 3 - Stabilize", resp.Label)
	require.NotNil(t, resp.NextStage)
	assert.Equal(t, "Prioritize", resp.NextStage.Name)
	require.NotNil(t, resp.SalesPlan)
	assert.Equal(t, 70, resp.SalesPlan.SalesNeeded)

	rec = httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stages/current?headcount=2&revenue=300000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[currentStageResponse](t, rec).SalesPlan)

	rec = httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stages/current?headcount=-1&revenue=1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type staticConn bool

func (c staticConn) IsConnected() bool { return bool(c) }

func TestReady(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	defer st.Close()

	ready := func(conn Connection) int {
		rec := httptest.NewRecorder()
		NewHealthHandler(st, conn).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, ready(nil))
	assert.Equal(t, http.StatusOK, ready(staticConn(true)))
	assert.Equal(t, http.StatusServiceUnavailable, ready(staticConn(false)))

	require.NoError(t, st.Close())
	assert.Equal(t, http.StatusServiceUnavailable, ready(nil))
}
