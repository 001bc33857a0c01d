package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/llm"
	"github.com/capitalize-ai/growth-advisor/internal/middleware"
	"github.com/capitalize-ai/growth-advisor/internal/model"
)

const (
	defaultCompletionModel       = "gpt-4o-mini"
	defaultCompletionMaxTokens   = 10000
	defaultCompletionTemperature = 0.7
)

// CompletionHandler proxies chat completions to the configured provider.
// The client is expected to carry the retry policy; per-client limiting is
// applied by middleware in front of Complete.
type CompletionHandler struct {
	client llm.Client
}

// NewCompletionHandler creates a new completion handler. client may be nil
// when no provider key is configured.
func NewCompletionHandler(client llm.Client) *CompletionHandler {
	return &CompletionHandler{client: client}
}

// Status handles GET /api/v1/completions
func (h *CompletionHandler) Status(w http.ResponseWriter, r *http.Request) {
	models := []string{}
	if h.client != nil {
		models = h.client.Models()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Completion endpoint is ready",
		"models":  models,
	})
}

// Complete handles POST /api/v1/completions
func (h *CompletionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req model.CompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessages(req.Messages); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.client == nil {
		writeError(w, http.StatusInternalServerError, "AI API key not configured")
		return
	}

	llmReq := &llm.CompletionRequest{
		Model:       req.Model,
		MaxTokens:   defaultCompletionMaxTokens,
		Temperature: defaultCompletionTemperature,
		Messages:    make([]llm.ChatMessage, len(req.Messages)),
	}
	if llmReq.Model == "" {
		llmReq.Model = defaultCompletionModel
	}
	if req.MaxTokens != nil {
		llmReq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		llmReq.Temperature = *req.Temperature
	}
	for i, m := range req.Messages {
		llmReq.Messages[i] = llm.ChatMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := h.client.Complete(r.Context(), llmReq)
	if err != nil {
		middleware.LoggerFrom(r.Context()).Error("completion failed", zap.Error(err))
		writeCompletionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.CompletionResponse{
		Content: resp.Content,
		Usage: &model.CompletionUsage{
			PromptTokens:     resp.TokensIn,
			CompletionTokens: resp.TokensOut,
			TotalTokens:      resp.TokensIn + resp.TokensOut,
		},
		Model:        resp.Model,
		FinishReason: resp.StopReason,
	})
}

func writeCompletionError(w http.ResponseWriter, err error) {
	var rateErr *llm.RateLimitError
	var statusErr *llm.StatusError

	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, model.CompletionError{
			Error: "Rate limit exceeded. Please try again in a few minutes.",
			Type:  "rate_limit",
		})
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnauthorized:
		writeJSON(w, http.StatusUnauthorized, model.CompletionError{
			Error: "Invalid API key. Please check your AI provider configuration.",
			Type:  "invalid_api_key",
		})
	case errors.As(err, &statusErr) && statusErr.Code == "insufficient_quota":
		writeJSON(w, http.StatusTooManyRequests, model.CompletionError{
			Error: "AI provider quota exceeded. Please add credits to your account.",
			Type:  "insufficient_quota",
		})
	default:
		writeJSON(w, http.StatusInternalServerError, model.CompletionError{Error: err.Error()})
	}
}
