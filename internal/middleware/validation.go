package middleware

import (
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/capitalize-ai/growth-advisor/internal/model"
)

const (
	maxFieldLength     = 256
	maxSituationLength = 10000
	maxMessageLength   = 100000
	maxUnescapeRounds  = 4
)

var strictPolicy = bluemonday.StrictPolicy()

// SanitizeText strips any markup from user supplied text and trims it.
// Entities are fully decoded before sanitising so encoded tags are
// stripped too.
func SanitizeText(s string) string {
	for i := 0; i < maxUnescapeRounds; i++ {
		decoded := html.UnescapeString(s)
		if decoded == s {
			break
		}
		s = decoded
	}
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// ValidatePlanID validates a plan ID.
func ValidatePlanID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid plan ID format")
	}
	return nil
}

// ValidateGenerateRequest sanitises and checks a plan generation request
// in place.
func ValidateGenerateRequest(req *model.GeneratePlanRequest) error {
	req.Stage = SanitizeText(req.Stage)
	req.BusinessArea = SanitizeText(req.BusinessArea)
	req.CurrentSituation = SanitizeText(req.CurrentSituation)
	req.Context = SanitizeText(req.Context)

	if req.Stage == "" || req.BusinessArea == "" || req.CurrentSituation == "" {
		return errors.New("stage, business_area and current_situation are required")
	}
	if len(req.Stage) > maxFieldLength || len(req.BusinessArea) > maxFieldLength {
		return errors.New("stage or business_area exceeds maximum length")
	}
	if len(req.CurrentSituation) > maxSituationLength || len(req.Context) > maxSituationLength {
		return errors.New("current_situation or context exceeds maximum length")
	}
	return nil
}

// ValidateCreateRequest sanitises the free text fields of a plan to store.
// Step content is model output and is stored as received.
func ValidateCreateRequest(req *model.CreatePlanRequest) error {
	req.Stage = SanitizeText(req.Stage)
	req.BusinessArea = SanitizeText(req.BusinessArea)
	req.Goal = SanitizeText(req.Goal)
	req.CurrentSituation = SanitizeText(req.CurrentSituation)
	req.Context = SanitizeText(req.Context)

	if len(req.Stage) > maxFieldLength || len(req.BusinessArea) > maxFieldLength {
		return errors.New("stage or business_area exceeds maximum length")
	}
	for _, step := range req.Steps {
		if !utf8.ValidString(step.Action) {
			return errors.New("step action must be valid UTF-8")
		}
	}
	return nil
}

// ValidateMessages checks completion proxy messages.
func ValidateMessages(messages []model.CompletionMessage) error {
	if len(messages) == 0 {
		return errors.New("messages array is required")
	}
	total := 0
	for _, m := range messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return errors.New("message role must be system, user or assistant")
		}
		if !utf8.ValidString(m.Content) {
			return errors.New("message content must be valid UTF-8")
		}
		total += len(m.Content)
	}
	if total > maxMessageLength {
		return errors.New("messages exceed maximum length")
	}
	return nil
}
