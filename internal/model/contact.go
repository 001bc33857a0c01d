// Package model defines data structures for the growth advisor.
package model

import (
	"time"
)

// Well-known contact property names requested from the CRM.
const (
	PropEmail          = "email"
	PropFirstName      = "firstname"
	PropLastName       = "lastname"
	PropCompany        = "company"
	PropPhone          = "phone"
	PropWebsite        = "website"
	PropLifecycleStage = "lifecyclestage"
	PropLeadStatus     = "hs_lead_status"
	PropCreateDate     = "createdate"
	PropLastModified   = "lastmodifieddate"
)

// ContactProperties lists the properties fetched for every contact.
var ContactProperties = []string{
	PropEmail,
	PropFirstName,
	PropLastName,
	PropCompany,
	PropPhone,
	PropWebsite,
	PropLifecycleStage,
	PropLeadStatus,
	PropCreateDate,
	PropLastModified,
}

// Contact is a CRM contact record as returned by the remote API.
type Contact struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Archived   bool               `json:"archived"`
}

// Property returns a property value, or "" when absent or null.
func (c *Contact) Property(name string) string {
	if v, ok := c.Properties[name]; ok && v != nil {
		return *v
	}
	return ""
}

// FullName joins first and last name.
func (c *Contact) FullName() string {
	first := c.Property(PropFirstName)
	last := c.Property(PropLastName)
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// ContactsResponse is returned by GET /api/v1/contacts.
type ContactsResponse struct {
	Success       bool            `json:"success"`
	ContactsCount int             `json:"contactsCount"`
	Contacts      []Contact       `json:"contacts"`
	Summary       *ContactSummary `json:"summary,omitempty"`
	Analysis      string          `json:"analysis,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// AnalyzeContactsRequest is the body of POST /api/v1/contacts/analyze.
type AnalyzeContactsRequest struct {
	Contacts []Contact `json:"contacts"`
}

// AnalyzeContactsResponse carries the AI analysis of a contact list.
type AnalyzeContactsResponse struct {
	Success   bool      `json:"success"`
	Analysis  string    `json:"analysis"`
	Timestamp time.Time `json:"timestamp"`
}

// ContactSummary holds aggregate figures over a contact list.
type ContactSummary struct {
	TotalContacts                 int            `json:"totalContacts"`
	LifecycleDistribution         map[string]int `json:"lifecycleDistribution"`
	RecentContacts                int            `json:"recentContacts"`
	CompaniesWithMultipleContacts int            `json:"companiesWithMultipleContacts"`
	LeadsToday                    int            `json:"leadsToday"`
	LeadsThisWeek                 int            `json:"leadsThisWeek"`
	LeadsThisMonth                int            `json:"leadsThisMonth"`
}
