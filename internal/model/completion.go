package model

// CompletionMessage is one chat message sent through the completion proxy.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body of POST /api/v1/completions.
type CompletionRequest struct {
	Messages    []CompletionMessage `json:"messages"`
	Model       string              `json:"model,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
}

// CompletionUsage reports token counts for one completion.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is returned by the completion proxy.
type CompletionResponse struct {
	Content      string           `json:"content"`
	Usage        *CompletionUsage `json:"usage,omitempty"`
	Model        string           `json:"model,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// CompletionError is the error body of the completion proxy. Type is one of
// rate_limit, invalid_api_key or insufficient_quota when known.
type CompletionError struct {
	Error      string `json:"error"`
	Type       string `json:"type,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
