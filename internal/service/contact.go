package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/growth-advisor/internal/crm"
	"github.com/capitalize-ai/growth-advisor/internal/llm"
	"github.com/capitalize-ai/growth-advisor/internal/model"
	"github.com/capitalize-ai/growth-advisor/pkg/logger"
)

const (
	analysisModel     = "gpt-4o-mini"
	analysisMaxTokens = 2000
	previewSize       = 10
)

const analysisSystemPrompt = "You are a CRM expert and growth strategist. Analyze HubSpot contact data and provide actionable business insights and recommendations."

// ContactFetcher retrieves every contact from the CRM.
type ContactFetcher interface {
	FetchAll(ctx context.Context, creds crm.Credentials) ([]model.Contact, error)
}

// ContactService serves CRM contacts, their summary and AI analysis.
type ContactService struct {
	fetcher ContactFetcher
	llm     llm.Client
	apiKey  string
	logger  *logger.Logger
	now     func() time.Time
}

// NewContactService creates a contact service. apiKey is the statically
// configured CRM key; llmClient may be nil when no LLM is configured.
func NewContactService(fetcher ContactFetcher, llmClient llm.Client, apiKey string, log *logger.Logger) *ContactService {
	return &ContactService{
		fetcher: fetcher,
		llm:     llmClient,
		apiKey:  apiKey,
		logger:  log.Named("contacts"),
		now:     time.Now,
	}
}

// List fetches all contacts using the caller's OAuth token (if any) and the
// configured key. With analyze set, only a preview of the contacts is
// returned alongside the analysis; an analysis failure is reported in the
// analysis text rather than failing the request.
func (s *ContactService) List(ctx context.Context, accessToken string, analyze bool) (*model.ContactsResponse, error) {
	contacts, err := s.fetcher.FetchAll(ctx, crm.Credentials{AccessToken: accessToken, APIKey: s.apiKey})
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary := crm.Summarize(contacts, now)
	resp := &model.ContactsResponse{
		Success:       true,
		ContactsCount: len(contacts),
		Contacts:      contacts,
		Summary:       &summary,
		Timestamp:     now.UTC(),
	}
	if resp.Contacts == nil {
		resp.Contacts = []model.Contact{}
	}

	if analyze {
		analysis, err := s.Analyze(ctx, contacts)
		if err != nil {
			s.logger.Warn("contact analysis failed", zap.Error(err))
			analysis = fmt.Sprintf("Error analyzing contacts: %v", err)
		}
		resp.Analysis = analysis
		if len(resp.Contacts) > previewSize {
			resp.Contacts = resp.Contacts[:previewSize]
		}
	}

	return resp, nil
}

type contactDigest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Company        string `json:"company,omitempty"`
	LifecycleStage string `json:"lifecycleStage,omitempty"`
	CreatedDate    string `json:"createdDate,omitempty"`
	LastModified   string `json:"lastModified,omitempty"`
}

// Analyze asks the LLM for growth insights about the contacts.
func (s *ContactService) Analyze(ctx context.Context, contacts []model.Contact) (string, error) {
	if len(contacts) == 0 {
		return "No contacts found to analyze.", nil
	}
	if s.llm == nil {
		return "", llm.ErrNotConfigured
	}

	digest := make([]contactDigest, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		digest[i] = contactDigest{
			ID:             c.ID,
			Name:           c.FullName(),
			Email:          c.Property(model.PropEmail),
			Company:        c.Property(model.PropCompany),
			LifecycleStage: c.Property(model.PropLifecycleStage),
			CreatedDate:    c.Property(model.PropCreateDate),
			LastModified:   c.Property(model.PropLastModified),
		}
	}
	data, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode contacts: %w", err)
	}

	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		Model: analysisModel,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: analysisSystemPrompt},
			{Role: llm.RoleUser, Content: analysisPrompt(len(contacts), string(data))},
		},
		MaxTokens:   analysisMaxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze contacts: %w", err)
	}

	s.logger.Info("contacts analyzed",
		zap.Int("contacts", len(contacts)),
		zap.Int("tokens_out", resp.TokensOut),
	)
	return resp.Content, nil
}

func analysisPrompt(count int, contactsJSON string) string {
	return fmt.Sprintf(`Analyze this list of %d HubSpot contacts and provide actionable insights for business growth:

CONTACTS SUMMARY:
%s

Please analyze:
1. **Contact Distribution**: What percentage are in different lifecycle stages?
2. **Growth Trends**: How many new contacts in the last 30/90 days?
3. **Company Insights**: Which companies have multiple contacts?
4. **Engagement Patterns**: Based on lifecycle stages and modification dates
5. **Lead Quality**: Assessment of contact completeness and potential

Provide specific, actionable recommendations for:
- Lead generation strategies
- Customer nurturing campaigns
- Sales follow-up processes
- Marketing automation opportunities
- Data quality improvements

Focus on practical, implementable actions that will drive revenue growth.`, count, contactsJSON)
}
