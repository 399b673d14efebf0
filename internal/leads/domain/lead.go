// Package domain provides core business rules for the leads bounded context.
package domain

import (
	"time"

	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the lifecycle status of a lead.
type Status string

const (
	StatusEnriched     Status = "ENRICHED"
	StatusScored       Status = "SCORED"
	StatusQualified    Status = "QUALIFIED"
	StatusDisqualified Status = "DISQUALIFIED"
	StatusSequenced    Status = "SEQUENCED"
	StatusSending      Status = "SENDING"
	StatusCompleted    Status = "COMPLETED"
	StatusReplied      Status = "REPLIED"
	StatusBounced      Status = "BOUNCED"
)

// allowedTransitions is the closed transition table for lead statuses.
// REPLIED and BOUNCED can interrupt an active sequence at any point after it
// has been scheduled. COMPLETED is a final outcome like the other terminals:
// a reply arriving after the sequence finished is still recorded as an event
// but does not reopen the lead.
var allowedTransitions = map[Status][]Status{
	StatusEnriched:     {StatusScored},
	StatusScored:       {StatusQualified, StatusDisqualified},
	StatusQualified:    {StatusSequenced},
	StatusDisqualified: {},
	StatusSequenced:    {StatusSending, StatusReplied, StatusBounced},
	StatusSending:      {StatusCompleted, StatusReplied, StatusBounced},
	StatusCompleted:    {},
	StatusReplied:      {},
	StatusBounced:      {},
}

// IsKnownStatus reports whether s is a valid lead status.
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
		return apperr.Validation("unknown lead status: " + string(next))
	}
	if !CanTransition(cur, next) {
		return apperr.InvalidTransition("lead cannot move from " + string(cur) + " to " + string(next))
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s Status) bool {
	return len(allowedTransitions[s]) == 0
}

// Classification is the temperature bucket derived from a lead's score.
type Classification string

const (
	ClassificationHot  Classification = "HOT"
	ClassificationWarm Classification = "WARM"
	ClassificationCool Classification = "COOL"
	ClassificationCold Classification = "COLD"
)

// QualificationThreshold is the minimum total score for a lead to qualify
// for outreach.
const QualificationThreshold = 60

// Classify maps a total score to its temperature bucket.
func Classify(score int) Classification {
	switch {
	case score >= 75:
		return ClassificationHot
	case score >= 60:
		return ClassificationWarm
	case score >= 40:
		return ClassificationCool
	default:
		return ClassificationCold
	}
}

// Qualifies reports whether a total score clears the outreach bar.
func Qualifies(score int) bool {
	return score >= QualificationThreshold
}

// ScoreBreakdown itemizes the factor scores that sum to the total.
type ScoreBreakdown struct {
	CompanySize int `json:"companySize"`
	Industry    int `json:"industry"`
	Growth      int `json:"growth"`
	Activity    int `json:"activity"`
	Location    int `json:"location"`
}

// Total sums the factor scores.
func (b ScoreBreakdown) Total() int {
	return b.CompanySize + b.Industry + b.Growth + b.Activity + b.Location
}

// Lead is a contact at a company moving through the outreach pipeline.
type Lead struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	Phone          *string
	JobTitle       *string
	LinkedInURL    *string
	Status         Status
	Score          *int
	Classification *Classification
	Breakdown      *ScoreBreakdown
	ScoredAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins the lead's name parts.
func (l Lead) FullName() string {
	if l.FirstName == "" {
		return l.LastName
	}
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}
