// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadmachine_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Company Domain Events
// =============================================================================

// CompanyDiscovered is published when intake creates a brand-new company record.
type CompanyDiscovered struct {
	BaseEvent
	CompanyID uuid.UUID `json:"companyId"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain,omitempty"`
	Source    string    `json:"source"`
}

func (e CompanyDiscovered) EventName() string { return "companies.discovered" }

// CompanyMerged is published when an intake record is absorbed into an
// existing company instead of creating a duplicate.
type CompanyMerged struct {
	BaseEvent
	CompanyID uuid.UUID `json:"companyId"`
	Source    string    `json:"source"`
	MatchedBy string    `json:"matchedBy"` // "domain", "kvk", "name_similarity"
}

func (e CompanyMerged) EventName() string { return "companies.merged" }

// CompanyNeedsReview is published when name similarity is ambiguous and a
// human has to pick the right match.
type CompanyNeedsReview struct {
	BaseEvent
	CompanyID    uuid.UUID   `json:"companyId"`
	CandidateIDs []uuid.UUID `json:"candidateIds"`
}

func (e CompanyNeedsReview) EventName() string { return "companies.needs_review" }

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadCreated is published when a new lead is registered for a company.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	CompanyID uuid.UUID `json:"companyId"`
	Email     string    `json:"email"`
	Source    string    `json:"source,omitempty"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadScored is published after the scoring engine computes a lead's ICP score.
type LeadScored struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	CompanyID      uuid.UUID `json:"companyId"`
	Score          int       `json:"score"`
	Classification string    `json:"classification"`
}

func (e LeadScored) EventName() string { return "leads.scored" }

// LeadQualified is published when a lead's score crosses the qualification
// threshold. The outreach module listens to this to build a sequence.
type LeadQualified struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	CompanyID uuid.UUID `json:"companyId"`
	Score     int       `json:"score"`
}

func (e LeadQualified) EventName() string { return "leads.qualified" }

// LeadStatusChanged is published when a lead moves through its lifecycle.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status_changed" }

// =============================================================================
// Outreach Domain Events
// =============================================================================

// SequenceScheduled is published when a follow-up sequence is planned for a lead.
type SequenceScheduled struct {
	BaseEvent
	LeadID   uuid.UUID   `json:"leadId"`
	EmailIDs []uuid.UUID `json:"emailIds"`
}

func (e SequenceScheduled) EventName() string { return "outreach.sequence.scheduled" }

// EmailSent is published when an outreach email is handed to the mail server.
type EmailSent struct {
	BaseEvent
	EmailID uuid.UUID `json:"emailId"`
	LeadID  uuid.UUID `json:"leadId"`
	Step    int       `json:"step"`
}

func (e EmailSent) EventName() string { return "outreach.email.sent" }

// EmailBounced is published when delivery fails after the send attempt.
type EmailBounced struct {
	BaseEvent
	EmailID uuid.UUID `json:"emailId"`
	LeadID  uuid.UUID `json:"leadId"`
	Reason  string    `json:"reason,omitempty"`
}

func (e EmailBounced) EventName() string { return "outreach.email.bounced" }

// =============================================================================
// Tracking Domain Events
// =============================================================================

// EmailOpened is published on the first open of a tracked email.
type EmailOpened struct {
	BaseEvent
	EmailID uuid.UUID `json:"emailId"`
	LeadID  uuid.UUID `json:"leadId"`
}

func (e EmailOpened) EventName() string { return "tracking.email.opened" }

// EmailClicked is published on the first click of a tracked link.
type EmailClicked struct {
	BaseEvent
	EmailID uuid.UUID `json:"emailId"`
	LeadID  uuid.UUID `json:"leadId"`
	URL     string    `json:"url"`
}

func (e EmailClicked) EventName() string { return "tracking.email.clicked" }

// ReplyReceived is published when the inbound poller matches a reply to a
// lead. The outreach module listens to this to cancel pending sends.
type ReplyReceived struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	FromEmail string    `json:"fromEmail"`
	Subject   string    `json:"subject,omitempty"`
}

func (e ReplyReceived) EventName() string { return "tracking.reply.received" }
