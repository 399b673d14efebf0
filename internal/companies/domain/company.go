// Package domain provides core business rules for the companies bounded context.
package domain

import (
	"time"

	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a company.
type Status string

const (
	StatusNew       Status = "NEW"
	StatusEnriching Status = "ENRICHING"
	StatusEnriched  Status = "ENRICHED"
	StatusNoEmail   Status = "NO_EMAIL"
	StatusScored    Status = "SCORED"
)

// allowedTransitions is the closed transition table for company statuses.
// NO_EMAIL → NEW allows a re-enrichment retry.
var allowedTransitions = map[Status][]Status{
	StatusNew:       {StatusEnriching},
	StatusEnriching: {StatusEnriched, StatusNoEmail},
	StatusEnriched:  {StatusScored},
	StatusNoEmail:   {StatusNew},
	StatusScored:    {},
}

// IsKnownStatus reports whether s is a valid company status.
func IsKnownStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether moving from cur to next is legal.
func CanTransition(cur, next Status) bool {
	for _, allowed := range allowedTransitions[cur] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates a status change. Illegal transitions return an
// InvalidTransition error and the caller must leave state unchanged.
func Transition(cur, next Status) error {
	if !IsKnownStatus(next) {
		return apperr.Validation("unknown company status: " + string(next))
	}
	if !CanTransition(cur, next) {
		return apperr.InvalidTransition("company cannot move from " + string(cur) + " to " + string(next))
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s Status) bool {
	return len(allowedTransitions[s]) == 0
}

// Company is the canonical record for a real-world company. Exactly one row
// exists per normalized domain.
type Company struct {
	ID            uuid.UUID
	Name          string
	Domain        *string
	Industry      *string
	EmployeeCount *int
	OpenVacancies int
	Location      *string
	Description   *string
	WebsiteURL    *string
	LinkedInURL   *string
	HasFunding    bool
	FundingAmount *string
	Source        string
	SourceURL     *string
	Status        Status
	NeedsReview   bool
	RawData       map[string]map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Observation is one raw sighting of a company from a scrape source.
type Observation struct {
	Name          string
	DomainRaw     string
	Industry      *string
	EmployeeCount *int
	OpenVacancies int
	Location      *string
	Description   *string
	WebsiteURL    *string
	LinkedInURL   *string
	HasFunding    bool
	FundingAmount *string
	Source        string
	SourceURL     *string
	Raw           map[string]any
}

// MergeResult describes what the deduplicator did with an observation.
type MergeResult struct {
	Company       Company
	Created       bool
	MatchedBy     string // "domain", "name_similarity", "" when created
	HeldForReview bool
	Candidates    []uuid.UUID
}
