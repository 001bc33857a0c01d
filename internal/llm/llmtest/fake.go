// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/capitalize-ai/growth-advisor/internal/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Content string
	Err     error
}

// Client returns scripted replies in order and records every request. Once
// the script is exhausted the last reply repeats.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	requests []*llm.CompletionRequest
}

// New creates a fake client with the given script.
func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// Text is shorthand for a client that always answers content.
func Text(content string) *Client {
	return New(Reply{Content: content})
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.requests = append(c.requests, req)
	if len(c.replies) == 0 {
		return &llm.CompletionResponse{Model: "fake"}, nil
	}

	i := len(c.requests) - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	r := c.replies[i]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.CompletionResponse{
		Content:    r.Content,
		Model:      "fake",
		TokensIn:   10,
		TokensOut:  20,
		StopReason: "stop",
	}, nil
}

// Name implements llm.Client.
func (c *Client) Name() string {
	return "fake"
}

// Models implements llm.Client.
func (c *Client) Models() []string {
	return []string{"fake"}
}

// Calls returns the number of Complete calls.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// LastRequest returns the most recent request, or nil.
func (c *Client) LastRequest() *llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}
