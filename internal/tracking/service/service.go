package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"leadmachine_backend/internal/events"
	leadsdomain "leadmachine_backend/internal/leads/domain"
	outreachdomain "leadmachine_backend/internal/outreach/domain"
	"leadmachine_backend/internal/tracking/fingerprint"
	"leadmachine_backend/internal/tracking/repository"
	"leadmachine_backend/platform/apperr"
	"leadmachine_backend/platform/logger"

	"github.com/google/uuid"
)

// EmailDirectory resolves tracking IDs to outreach emails.
type EmailDirectory interface {
	GetByTrackingID(ctx context.Context, trackingID uuid.UUID) (outreachdomain.Email, error)
}

// LeadResolver matches inbound replies to leads and halts their sequences.
type LeadResolver interface {
	FindByEmail(ctx context.Context, email string) (leadsdomain.Lead, error)
	MarkReplied(ctx context.Context, leadID uuid.UUID) error
}

// Config exposes the tracking settings the service needs.
type Config interface {
	GetClickFallbackURL() string
}

// Service implements open, click and reply processing.
type Service struct {
	repo   repository.Repository
	emails EmailDirectory
	leads  LeadResolver
	cfg    Config
	bus    events.Bus
	log    *logger.Logger

	now func() time.Time
}

// New creates the tracking service.
func New(
	repo repository.Repository,
	emails EmailDirectory,
	leads LeadResolver,
	cfg Config,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:   repo,
		emails: emails,
		leads:  leads,
		cfg:    cfg,
		bus:    bus,
		log:    log,
		now:    time.Now,
	}
}

// RecordOpen logs an open signal for the tracked email. Repeated fetches
// from the same client within the dedup window collapse into one event, and
// only the first recorded open publishes an event. Errors are swallowed into
// the logger: the pixel endpoint must answer 200 no matter what.
func (s *Service) RecordOpen(ctx context.Context, trackingID uuid.UUID, clientIP string) {
	email, err := s.emails.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.Error("open lookup failed", "tracking_id", trackingID, "error", err)
		}
		return
	}

	now := s.now()
	inserted, err := s.repo.InsertEventIfAbsent(ctx, repository.Event{
		EmailID:     email.ID,
		LeadID:      email.LeadID,
		EventType:   repository.EventOpen,
		Fingerprint: fingerprint.Open(clientIP, now),
		IP:          clientIP,
		OccurredAt:  now,
	})
	if err != nil {
		s.log.Error("open not recorded", "email_id", email.ID, "error", err)
		return
	}
	if !inserted {
		return
	}

	s.log.Info("email opened", "email_id", email.ID, "lead_id", email.LeadID, "step", email.Step)
	s.bus.Publish(ctx, events.EmailOpened{
		BaseEvent: events.NewBaseEvent(),
		EmailID:   email.ID,
		LeadID:    email.LeadID,
	})
}

// RecordClick logs a click signal and returns the URL to redirect the client
// to. The target must be an absolute http or https URL; anything else falls
// back to the configured safe URL so the redirect can never be steered to
// javascript: or data: payloads. An unknown tracking ID still redirects.
func (s *Service) RecordClick(ctx context.Context, trackingID uuid.UUID, clientIP, target string) string {
	redirect := s.safeRedirect(target)

	email, err := s.emails.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.Error("click lookup failed", "tracking_id", trackingID, "error", err)
		}
		return redirect
	}

	now := s.now()
	inserted, err := s.repo.InsertEventIfAbsent(ctx, repository.Event{
		EmailID:     email.ID,
		LeadID:      email.LeadID,
		EventType:   repository.EventClick,
		Fingerprint: fingerprint.Click(clientIP, now, redirect),
		URL:         &redirect,
		IP:          clientIP,
		OccurredAt:  now,
	})
	if err != nil {
		s.log.Error("click not recorded", "email_id", email.ID, "error", err)
		return redirect
	}
	if !inserted {
		return redirect
	}

	s.log.Info("email link clicked", "email_id", email.ID, "lead_id", email.LeadID, "url", redirect)
	s.bus.Publish(ctx, events.EmailClicked{
		BaseEvent: events.NewBaseEvent(),
		EmailID:   email.ID,
		LeadID:    email.LeadID,
		URL:       redirect,
	})
	return redirect
}

// ProcessReply matches an inbound message to a lead by sender address and
// moves the lead to REPLIED, which halts its sequence. Messages that match
// no lead are stored for manual triage instead of being dropped.
func (s *Service) ProcessReply(ctx context.Context, fromEmail, subject string, receivedAt time.Time) error {
	addr := strings.ToLower(strings.TrimSpace(fromEmail))
	if addr == "" {
		return apperr.Validation("sender address is required")
	}
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}

	lead, err := s.leads.FindByEmail(ctx, addr)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		s.log.Warn("reply matched no lead", "from", addr)
		var subj *string
		if trimmed := strings.TrimSpace(subject); trimmed != "" {
			subj = &trimmed
		}
		return s.repo.SaveUnmatchedReply(ctx, addr, subj, receivedAt)
	}

	// A second reply from a lead already in REPLIED is normal, not an error.
	if err := s.leads.MarkReplied(ctx, lead.ID); err != nil && !apperr.Is(err, apperr.KindInvalidTransition) {
		return err
	}

	s.log.Info("reply received", "lead_id", lead.ID, "from", addr)
	s.bus.Publish(ctx, events.ReplyReceived{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		FromEmail: addr,
		Subject:   strings.TrimSpace(subject),
	})
	return nil
}

// Engagement returns a lead's aggregated open and click stats.
func (s *Service) Engagement(ctx context.Context, leadID uuid.UUID) (repository.EngagementStats, error) {
	return s.repo.StatsByLead(ctx, leadID)
}

// Stats returns overall signal totals and a per-day series for the last
// days days.
func (s *Service) Stats(ctx context.Context, days int) (repository.OverallStats, []repository.DailyCount, error) {
	if days <= 0 || days > 365 {
		days = 14
	}

	overall, err := s.repo.StatsOverall(ctx)
	if err != nil {
		return repository.OverallStats{}, nil, err
	}
	since := s.now().AddDate(0, 0, -days).Truncate(24 * time.Hour)
	series, err := s.repo.DailySeries(ctx, since)
	if err != nil {
		return repository.OverallStats{}, nil, err
	}
	return overall, series, nil
}

// EventsByEmail lists the raw signals recorded for one email.
func (s *Service) EventsByEmail(ctx context.Context, emailID uuid.UUID) ([]repository.Event, error) {
	return s.repo.ListByEmail(ctx, emailID)
}

// UnmatchedReplies lists inbound messages awaiting manual triage.
func (s *Service) UnmatchedReplies(ctx context.Context, limit int) ([]repository.UnmatchedReply, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListUnmatchedReplies(ctx, limit)
}

func (s *Service) safeRedirect(target string) string {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return s.cfg.GetClickFallbackURL()
	}
	return u.String()
}
