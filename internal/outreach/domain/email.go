// Package domain provides core business rules for the outreach bounded context.
package domain

import (
	"time"

	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
)

// Status is the delivery status of one scheduled email.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusSending   Status = "SENDING"
	StatusSent      Status = "SENT"
	StatusCancelled Status = "CANCELLED"
	StatusBounced   Status = "BOUNCED"
)

// allowedTransitions is the closed transition table for email statuses.
// SENDING is the claim state: a worker owns the email while talking to the
// mail server, so two workers can never deliver the same message.
var allowedTransitions = map[Status][]Status{
	StatusScheduled: {StatusSending, StatusCancelled},
	StatusSending:   {StatusSent, StatusBounced},
	StatusSent:      {StatusBounced},
	StatusCancelled: {},
	StatusBounced:   {},
}

// IsKnownStatus reports whether s is a valid email status.
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
		return apperr.Validation("unknown email status: " + string(next))
	}
	if !CanTransition(cur, next) {
		return apperr.InvalidTransition("email cannot move from " + string(cur) + " to " + string(next))
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(s Status) bool {
	return len(allowedTransitions[s]) == 0
}

// Email is one message in a lead's outreach sequence.
type Email struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Step        int // 1-based position in the sequence
	Subject     string
	Body        string
	Status      Status
	TrackingID  uuid.UUID
	ScheduledAt time.Time
	SentAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsFinalStep reports whether this email closes the sequence.
func (e Email) IsFinalStep(sequenceLength int) bool {
	return e.Step >= sequenceLength
}
