package transport

import (
	"time"

	"leadmachine_backend/internal/outreach/domain"
	"leadmachine_backend/internal/outreach/service"

	"github.com/google/uuid"
)

// BounceRequest is the delivery-failure callback payload.
type BounceRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// EmailResponse represents a sequence email in API responses. The body is
// omitted from listings to keep payloads small.
type EmailResponse struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	Step        int       `json:"step"`
	Subject     string    `json:"subject"`
	Status      string    `json:"status"`
	ScheduledAt string    `json:"scheduledAt"`
	SentAt      *string   `json:"sentAt,omitempty"`
	CreatedAt   string    `json:"createdAt"`
}

// EmailDetailResponse adds the rendered body for single-email reads.
type EmailDetailResponse struct {
	EmailResponse
	Body string `json:"body"`
}

// QueueStatusResponse is the send pipeline snapshot for the dashboard.
type QueueStatusResponse struct {
	ScheduledEmails  int    `json:"scheduledEmails"`
	SendingEmails    int    `json:"sendingEmails"`
	SentToday        int    `json:"sentToday"`
	DailyLimit       int    `json:"dailyLimit"`
	InBusinessWindow bool   `json:"inBusinessWindow"`
	NextWindowOpen   string `json:"nextWindowOpen"`
}

// ToEmailResponse maps a domain email to its API shape.
func ToEmailResponse(email domain.Email) EmailResponse {
	resp := EmailResponse{
		ID:          email.ID,
		LeadID:      email.LeadID,
		Step:        email.Step,
		Subject:     email.Subject,
		Status:      string(email.Status),
		ScheduledAt: email.ScheduledAt.Format(time.RFC3339),
		CreatedAt:   email.CreatedAt.Format(time.RFC3339),
	}
	if email.SentAt != nil {
		s := email.SentAt.Format(time.RFC3339)
		resp.SentAt = &s
	}
	return resp
}

// ToQueueStatusResponse maps a queue snapshot to its API shape.
func ToQueueStatusResponse(status service.QueueStatus) QueueStatusResponse {
	return QueueStatusResponse{
		ScheduledEmails:  status.ScheduledEmails,
		SendingEmails:    status.SendingEmails,
		SentToday:        status.SentToday,
		DailyLimit:       status.DailyLimit,
		InBusinessWindow: status.InBusinessWindow,
		NextWindowOpen:   status.NextWindowOpen.Format(time.RFC3339),
	}
}

// ToEmailDetailResponse maps a domain email including its body.
func ToEmailDetailResponse(email domain.Email) EmailDetailResponse {
	return EmailDetailResponse{
		EmailResponse: ToEmailResponse(email),
		Body:          email.Body,
	}
}
