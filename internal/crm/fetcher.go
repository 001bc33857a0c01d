// Package crm fetches contacts from HubSpot and derives analytics from them.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
	"github.com/capitalize-ai/growth-advisor/pkg/metrics"
	"github.com/capitalize-ai/growth-advisor/pkg/tracing"
)

const contactsPath = "/crm/v3/objects/contacts"

var (
	// ErrNotConfigured is returned when neither an access token nor an API
	// key is available.
	ErrNotConfigured = errors.New("HubSpot is not configured: connect via OAuth or set HUBSPOT_API_KEY")

	// ErrTooManyPages is returned when the remote API keeps paging past
	// Config.MaxPages.
	ErrTooManyPages = errors.New("contact pagination exceeded the page limit")
)

// Strategy names one way of authenticating a page request.
type Strategy string

// Strategies in the order they are tried.
const (
	StrategyOAuthBearer  Strategy = "oauth_bearer"
	StrategyAPIKeyBearer Strategy = "api_key_bearer"
	StrategyAPIKeyQuery  Strategy = "api_key_query"
)

// Credentials holds whatever HubSpot credentials the caller has.
type Credentials struct {
	AccessToken string
	APIKey      string
}

type candidate struct {
	strategy Strategy
	secret   string
}

// candidates lists the auth configurations to try, highest priority first.
// Strategies whose credential is missing are left out.
func (c Credentials) candidates() []candidate {
	var out []candidate
	if c.AccessToken != "" {
		out = append(out, candidate{StrategyOAuthBearer, c.AccessToken})
	}
	if c.APIKey != "" {
		out = append(out,
			candidate{StrategyAPIKeyBearer, c.APIKey},
			candidate{StrategyAPIKeyQuery, c.APIKey},
		)
	}
	return out
}

// StatusError is a non-2xx response from the CRM.
type StatusError struct {
	Strategy   Strategy
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HubSpot API error (%s): %d - %s", e.Strategy, e.StatusCode, e.Body)
}

// Config controls pagination.
type Config struct {
	BaseURL    string
	PageSize   int
	MaxPages   int // 0 means no limit
	Properties []string
}

// Fetcher pages through the contacts endpoint.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = c
	}
}

// NewFetcher creates a contact fetcher.
func NewFetcher(cfg Config, log *logger.Logger, opts ...Option) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.hubapi.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if len(cfg.Properties) == 0 {
		cfg.Properties = model.ContactProperties
	}

	f := &Fetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.Named("crm"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type pageResponse struct {
	Results []model.Contact `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func (p *pageResponse) nextCursor() string {
	if p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

// FetchAll returns every contact in server order. Pages are requested one
// at a time; any failed page aborts the fetch and nothing is returned.
func (f *Fetcher) FetchAll(ctx context.Context, creds Credentials) ([]model.Contact, error) {
	cands := creds.candidates()
	if len(cands) == 0 {
		return nil, ErrNotConfigured
	}

	ctx, span := tracing.Tracer("crm").Start(ctx, "crm.fetch_all")
	defer span.End()

	var (
		contacts []model.Contact
		after    string
		pages    int
	)
	for {
		if f.cfg.MaxPages > 0 && pages >= f.cfg.MaxPages {
			span.SetStatus(codes.Error, ErrTooManyPages.Error())
			return nil, fmt.Errorf("%w (%d)", ErrTooManyPages, f.cfg.MaxPages)
		}

		page, err := f.fetchPage(ctx, cands, after)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to fetch contacts page %d: %w", pages+1, err)
		}
		pages++
		metrics.CRMPagesTotal.Inc()

		contacts = append(contacts, page.Results...)
		after = page.nextCursor()
		if after == "" {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("crm.pages", pages),
		attribute.Int("crm.contacts", len(contacts)),
	)
	f.logger.Info("contacts fetched",
		zap.Int("pages", pages),
		zap.Int("contacts", len(contacts)),
	)

	return contacts, nil
}

// fetchPage tries each candidate in order and returns the first success.
// When all fail, the last error wins.
func (f *Fetcher) fetchPage(ctx context.Context, cands []candidate, after string) (*pageResponse, error) {
	var lastErr error
	for _, c := range cands {
		page, err := f.request(ctx, c, after)
		metrics.RecordCRMAttempt(string(c.strategy), err == nil)
		if err == nil {
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		f.logger.Debug("contacts page attempt failed",
			zap.String("strategy", string(c.strategy)),
			zap.Error(err),
		)
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) request(ctx context.Context, c candidate, after string) (*pageResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.cfg.PageSize))
	q.Set("properties", strings.Join(f.cfg.Properties, ","))
	if after != "" {
		q.Set("after", after)
	}
	if c.strategy == StrategyAPIKeyQuery {
		q.Set("hapikey", c.secret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+contactsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.strategy != StrategyAPIKeyQuery {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request (%s): %w", c.strategy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Strategy: c.strategy, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode contacts page (%s): %w", c.strategy, err)
	}
	return &page, nil
}
