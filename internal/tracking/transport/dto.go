package transport

import (
	"time"

	"leadmachine_backend/internal/tracking/repository"

	"github.com/google/uuid"
)

// ReplyWebhookRequest is the inbound reply notification payload, posted by
// the IMAP poller or an external mail provider webhook.
type ReplyWebhookRequest struct {
	FromEmail  string     `json:"fromEmail" validate:"required,email"`
	Subject    string     `json:"subject,omitempty" validate:"omitempty,max=500"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}

// EngagementResponse summarizes a lead's open and click activity.
type EngagementResponse struct {
	LeadID      uuid.UUID `json:"leadId"`
	Opens       int       `json:"opens"`
	Clicks      int       `json:"clicks"`
	LastOpenAt  *string   `json:"lastOpenAt,omitempty"`
	LastClickAt *string   `json:"lastClickAt,omitempty"`
}

// TrackingEventResponse is one raw recorded signal.
type TrackingEventResponse struct {
	ID         uuid.UUID `json:"id"`
	EmailID    uuid.UUID `json:"emailId"`
	LeadID     uuid.UUID `json:"leadId"`
	EventType  string    `json:"eventType"`
	URL        *string   `json:"url,omitempty"`
	OccurredAt string    `json:"occurredAt"`
}

// UnmatchedReplyResponse is an inbound message awaiting manual triage.
type UnmatchedReplyResponse struct {
	ID         uuid.UUID `json:"id"`
	FromEmail  string    `json:"fromEmail"`
	Subject    *string   `json:"subject,omitempty"`
	ReceivedAt string    `json:"receivedAt"`
}

// StatsResponse is the overall tracking dashboard payload.
type StatsResponse struct {
	TotalOpens    int              `json:"totalOpens"`
	TotalClicks   int              `json:"totalClicks"`
	EmailsOpened  int              `json:"emailsOpened"`
	EmailsClicked int              `json:"emailsClicked"`
	Daily         []DailyStatEntry `json:"daily"`
}

// DailyStatEntry is one day in the stats series.
type DailyStatEntry struct {
	Day    string `json:"day"`
	Opens  int    `json:"opens"`
	Clicks int    `json:"clicks"`
}

// ToStatsResponse maps overall stats and the daily series to the API shape.
func ToStatsResponse(overall repository.OverallStats, series []repository.DailyCount) StatsResponse {
	resp := StatsResponse{
		TotalOpens:    overall.TotalOpens,
		TotalClicks:   overall.TotalClicks,
		EmailsOpened:  overall.EmailsOpened,
		EmailsClicked: overall.EmailsClicked,
		Daily:         make([]DailyStatEntry, 0, len(series)),
	}
	for _, day := range series {
		resp.Daily = append(resp.Daily, DailyStatEntry{
			Day:    day.Day.Format("2006-01-02"),
			Opens:  day.Opens,
			Clicks: day.Clicks,
		})
	}
	return resp
}

// ToEngagementResponse maps aggregated stats to their API shape.
func ToEngagementResponse(leadID uuid.UUID, stats repository.EngagementStats) EngagementResponse {
	resp := EngagementResponse{
		LeadID: leadID,
		Opens:  stats.Opens,
		Clicks: stats.Clicks,
	}
	if stats.LastOpenAt != nil {
		s := stats.LastOpenAt.Format(time.RFC3339)
		resp.LastOpenAt = &s
	}
	if stats.LastClickAt != nil {
		s := stats.LastClickAt.Format(time.RFC3339)
		resp.LastClickAt = &s
	}
	return resp
}

// ToTrackingEventResponse maps a recorded signal to its API shape.
func ToTrackingEventResponse(e repository.Event) TrackingEventResponse {
	return TrackingEventResponse{
		ID:         e.ID,
		EmailID:    e.EmailID,
		LeadID:     e.LeadID,
		EventType:  e.EventType,
		URL:        e.URL,
		OccurredAt: e.OccurredAt.Format(time.RFC3339),
	}
}

// ToUnmatchedReplyResponse maps an unmatched reply to its API shape.
func ToUnmatchedReplyResponse(r repository.UnmatchedReply) UnmatchedReplyResponse {
	return UnmatchedReplyResponse{
		ID:         r.ID,
		FromEmail:  r.FromEmail,
		Subject:    r.Subject,
		ReceivedAt: r.ReceivedAt.Format(time.RFC3339),
	}
}
