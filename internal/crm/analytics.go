package crm

import (
	"strings"
	"time"

	"github.com/capitalize-ai/growth-advisor/internal/model"
)

const unknownLifecycle = "unknown"

// Summarize computes dashboard figures for a contact list. Periods are
// calendar based in now's location; weeks start on Sunday. Contacts without
// a parseable create date are left out of the time-based counts.
func Summarize(contacts []model.Contact, now time.Time) model.ContactSummary {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	summary := model.ContactSummary{
		TotalContacts:         len(contacts),
		LifecycleDistribution: make(map[string]int),
	}
	companies := make(map[string]int)

	for i := range contacts {
		c := &contacts[i]

		stage := c.Property(model.PropLifecycleStage)
		if stage == "" {
			stage = unknownLifecycle
		}
		summary.LifecycleDistribution[stage]++

		if company := strings.TrimSpace(c.Property(model.PropCompany)); company != "" {
			companies[company]++
		}

		created, ok := createDate(c)
		if !ok {
			continue
		}
		if !created.Before(monthStart) {
			summary.RecentContacts++
		}
		if !strings.EqualFold(stage, "lead") {
			continue
		}
		if !created.Before(today) {
			summary.LeadsToday++
		}
		if !created.Before(weekStart) {
			summary.LeadsThisWeek++
		}
		if !created.Before(monthStart) {
			summary.LeadsThisMonth++
		}
	}

	for _, n := range companies {
		if n > 1 {
			summary.CompaniesWithMultipleContacts++
		}
	}

	return summary
}

func createDate(c *model.Contact) (time.Time, bool) {
	raw := c.Property(model.PropCreateDate)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
