// Package service implements outreach sequencing and rate-limited delivery.
package service

import (
	"context"
	"math/rand"
	"time"

	companydomain "leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/events"
	leaddomain "leadmachine_backend/internal/leads/domain"
	"leadmachine_backend/internal/outreach/domain"
	"leadmachine_backend/internal/outreach/repository"
	"leadmachine_backend/internal/outreach/schedule"
	"leadmachine_backend/platform/apperr"
	"leadmachine_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadDirectory is the slice of the leads module the outreach module
// depends on: lead lookups plus the lifecycle marks outreach drives.
type LeadDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (leaddomain.Lead, error)
	MarkSequenced(ctx context.Context, id uuid.UUID) error
	MarkSending(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkBounced(ctx context.Context, id uuid.UUID) error
}

// CompanyDirectory resolves the company a lead belongs to, for templating.
type CompanyDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (companydomain.Company, error)
}

// Delivery is one rendered message on its way to the mail server.
type Delivery struct {
	To         string
	ToName     string
	Subject    string
	Body       string
	TrackingID uuid.UUID
}

// Deliverer hands a rendered message to the mail infrastructure.
type Deliverer interface {
	Deliver(ctx context.Context, delivery Delivery) error
}

// SendScheduler queues a send task to fire at a specific time.
type SendScheduler interface {
	ScheduleEmailSend(ctx context.Context, emailID uuid.UUID, at time.Time) error
}

// SendBudget is the shared daily send cap.
type SendBudget interface {
	Reserve(ctx context.Context, now time.Time) (bool, error)
	Release(ctx context.Context, now time.Time) error
	Used(ctx context.Context, now time.Time) (int, error)
	Limit() int
}

// Config provides the outreach tunables.
type Config interface {
	GetSequenceDayOffsets() []int
	GetMinSendDelay() time.Duration
	GetMaxSendDelay() time.Duration
}

// Service plans outreach sequences and admits individual sends through the
// business-hours window and the daily budget.
type Service struct {
	repo      repository.Repository
	leads     LeadDirectory
	companies CompanyDirectory
	deliverer Deliverer
	scheduler SendScheduler
	budget    SendBudget
	calendar  *schedule.Calendar
	cfg       Config
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
}

// New creates a new outreach service.
func New(repo repository.Repository, leads LeadDirectory, companies CompanyDirectory, deliverer Deliverer, scheduler SendScheduler, budget SendBudget, calendar *schedule.Calendar, cfg Config, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		leads:     leads,
		companies: companies,
		deliverer: deliverer,
		scheduler: scheduler,
		budget:    budget,
		calendar:  calendar,
		cfg:       cfg,
		bus:       bus,
		log:       log,
		now:       time.Now,
	}
}

// ActivateSequence plans the full message sequence for a qualified lead and
// queues a send task per message. Activating twice returns Conflict.
func (s *Service) ActivateSequence(ctx context.Context, leadID uuid.UUID) ([]domain.Email, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.Status != leaddomain.StatusQualified {
		return nil, apperr.InvalidTransition("lead is not qualified for outreach")
	}

	existing, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.Conflict("sequence already exists for this lead")
	}

	company, err := s.companies.GetByID(ctx, lead.CompanyID)
	if err != nil {
		return nil, err
	}

	offsets := s.cfg.GetSequenceDayOffsets()
	plan := s.calendar.PlanSequence(s.now().UTC(), offsets)
	data := TemplateData{FirstName: lead.FirstName, CompanyName: company.Name}

	emails := make([]domain.Email, 0, len(plan))
	for i, at := range plan {
		subject, body, err := renderStep(i+1, data)
		if err != nil {
			return nil, err
		}
		emails = append(emails, domain.Email{
			LeadID:      leadID,
			Step:        i + 1,
			Subject:     subject,
			Body:        body,
			Status:      domain.StatusScheduled,
			TrackingID:  uuid.New(),
			ScheduledAt: at,
		})
	}

	created, err := s.repo.CreateSequence(ctx, emails)
	if err != nil {
		return nil, err
	}

	if err := s.leads.MarkSequenced(ctx, leadID); err != nil {
		return nil, err
	}

	emailIDs := make([]uuid.UUID, 0, len(created))
	for _, email := range created {
		emailIDs = append(emailIDs, email.ID)
		if err := s.scheduler.ScheduleEmailSend(ctx, email.ID, email.ScheduledAt); err != nil {
			s.log.Error("failed to queue send task",
				"email_id", email.ID, "lead_id", leadID, "error", err.Error())
		}
	}

	s.bus.Publish(ctx, events.SequenceScheduled{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		EmailIDs:  emailIDs,
	})
	s.log.Info("sequence scheduled", "lead_id", leadID, "steps", len(created),
		"first_send", created[0].ScheduledAt)

	return created, nil
}

// ProcessScheduledEmail runs a due send task through admission: the lead must
// still be active, the clock inside the business window, and the daily budget
// not exhausted. A deferral returns the new send time and no error; the
// worker re-queues the task for then. A nil, nil return means the task is
// finished, successfully or because the send became moot.
func (s *Service) ProcessScheduledEmail(ctx context.Context, emailID uuid.UUID) (*time.Time, error) {
	email, err := s.repo.GetByID(ctx, emailID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if email.Status != domain.StatusScheduled {
		// Cancelled, already claimed by another worker, or already sent.
		return nil, nil
	}

	lead, err := s.leads.GetByID(ctx, email.LeadID)
	if err != nil {
		return nil, err
	}
	if leadInactive(lead.Status) {
		cancelled, err := s.repo.CancelScheduledByLead(ctx, email.LeadID)
		if err != nil {
			return nil, err
		}
		s.log.Info("pending sends cancelled for inactive lead",
			"lead_id", email.LeadID, "lead_status", string(lead.Status), "cancelled", cancelled)
		return nil, nil
	}

	now := s.now()

	// Fired early, usually a requeued task: park it until it is due.
	if now.Before(email.ScheduledAt) {
		at := email.ScheduledAt
		return &at, nil
	}

	if !s.calendar.InWindow(now) {
		return s.deferSend(ctx, email.ID, s.calendar.SnapForward(now), "outside business hours")
	}

	// The first admission of a due send spreads it by a random delay, so a
	// burst of simultaneously due tasks does not hit the mail server as one
	// block. The re-fired task lands past the spread window and goes through.
	if now.Before(email.ScheduledAt.Add(s.cfg.GetMinSendDelay())) {
		at := now.Add(s.jitter())
		s.log.Info("send admitted, spreading delivery", "email_id", email.ID, "until", at)
		return &at, nil
	}

	ok, err := s.budget.Reserve(ctx, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.SendLimitReached(now.Format("2006-01-02"), s.budget.Limit())
		return s.deferSend(ctx, email.ID, s.calendar.NextDayOpen(now), "daily send limit reached")
	}

	claimed, err := s.repo.ClaimForSending(ctx, email.ID)
	if err != nil {
		// Lost the claim race or the email was cancelled under us.
		if releaseErr := s.budget.Release(ctx, now); releaseErr != nil {
			s.log.Error("failed to release send slot", "email_id", email.ID, "error", releaseErr.Error())
		}
		if apperr.Is(err, apperr.KindInvalidTransition) {
			return nil, nil
		}
		return nil, err
	}

	// First send of the sequence moves the lead into SENDING.
	if lead.Status == leaddomain.StatusSequenced {
		if err := s.leads.MarkSending(ctx, lead.ID); err != nil {
			if !apperr.Is(err, apperr.KindInvalidTransition) {
				s.log.Error("failed to mark lead sending", "lead_id", lead.ID, "error", err.Error())
			}
		}
	}

	delivery := Delivery{
		To:         lead.Email,
		ToName:     lead.FullName(),
		Subject:    claimed.Subject,
		Body:       claimed.Body,
		TrackingID: claimed.TrackingID,
	}
	if err := s.deliverer.Deliver(ctx, delivery); err != nil {
		// Roll the claim and the budget slot back; the queue retries later.
		if releaseErr := s.repo.ReleaseClaim(ctx, email.ID); releaseErr != nil {
			s.log.Error("failed to release claim after delivery error",
				"email_id", email.ID, "error", releaseErr.Error())
		}
		if releaseErr := s.budget.Release(ctx, now); releaseErr != nil {
			s.log.Error("failed to release send slot", "email_id", email.ID, "error", releaseErr.Error())
		}
		s.log.TaskEvent("outreach.email.send", email.ID.String(), false, err.Error())
		return nil, err
	}

	if err := s.repo.MarkSent(ctx, email.ID, s.now().UTC()); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.EmailSent{
		BaseEvent: events.NewBaseEvent(),
		EmailID:   email.ID,
		LeadID:    email.LeadID,
		Step:      email.Step,
	})
	s.log.TaskEvent("outreach.email.send", email.ID.String(), true, "")

	if email.IsFinalStep(len(s.cfg.GetSequenceDayOffsets())) {
		s.closeSequence(ctx, email.LeadID)
	}
	return nil, nil
}

// HandleBounce records an asynchronous delivery failure and halts the lead.
func (s *Service) HandleBounce(ctx context.Context, emailID uuid.UUID, reason string) error {
	email, err := s.repo.GetByID(ctx, emailID)
	if err != nil {
		return err
	}

	if err := s.repo.MarkBounced(ctx, emailID); err != nil {
		return err
	}
	if err := s.leads.MarkBounced(ctx, email.LeadID); err != nil {
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			return err
		}
	}
	if _, err := s.repo.CancelScheduledByLead(ctx, email.LeadID); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.EmailBounced{
		BaseEvent: events.NewBaseEvent(),
		EmailID:   emailID,
		LeadID:    email.LeadID,
		Reason:    reason,
	})
	s.log.Warn("email bounced", "email_id", emailID, "lead_id", email.LeadID, "reason", reason)
	return nil
}

// CancelPendingForLead cancels every still-scheduled email of a lead, used
// when a reply arrives or the lead is otherwise withdrawn from outreach.
func (s *Service) CancelPendingForLead(ctx context.Context, leadID uuid.UUID, reason string) (int, error) {
	cancelled, err := s.repo.CancelScheduledByLead(ctx, leadID)
	if err != nil {
		return 0, err
	}
	if cancelled > 0 {
		s.log.Info("pending sends cancelled", "lead_id", leadID, "cancelled", cancelled, "reason", reason)
	}
	return cancelled, nil
}

// ReclaimStale releases send claims older than maxAge back to SCHEDULED. A
// worker that dies between claiming and delivering would otherwise strand its
// email in SENDING forever; once released, the due sweep re-queues the send.
func (s *Service) ReclaimStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	released, err := s.repo.ReleaseStaleClaims(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.log.Warn("stale send claims released", "count", released)
	}
	return released, nil
}

// RequeueDue re-queues send tasks for due emails the queue lost, as a
// periodic safety net. Each task gets its own random delay; a recovered
// backlog spreads out instead of firing at once.
func (s *Service) RequeueDue(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}
	due, err := s.repo.ListDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	for _, email := range due {
		if err := s.scheduler.ScheduleEmailSend(ctx, email.ID, s.now().Add(s.jitter())); err != nil {
			return 0, err
		}
	}
	return len(due), nil
}

// QueueStatus is a point-in-time snapshot of the send pipeline.
type QueueStatus struct {
	ScheduledEmails  int
	SendingEmails    int
	SentToday        int
	DailyLimit       int
	InBusinessWindow bool
	NextWindowOpen   time.Time
}

// Status reports the current queue depth, today's budget usage and the
// business-hours window.
func (s *Service) Status(ctx context.Context) (QueueStatus, error) {
	scheduled, err := s.repo.CountByStatus(ctx, domain.StatusScheduled)
	if err != nil {
		return QueueStatus{}, err
	}
	sending, err := s.repo.CountByStatus(ctx, domain.StatusSending)
	if err != nil {
		return QueueStatus{}, err
	}

	now := s.now()
	used, err := s.budget.Used(ctx, now)
	if err != nil {
		return QueueStatus{}, err
	}

	return QueueStatus{
		ScheduledEmails:  scheduled,
		SendingEmails:    sending,
		SentToday:        used,
		DailyLimit:       s.budget.Limit(),
		InBusinessWindow: s.calendar.InWindow(now),
		NextWindowOpen:   s.calendar.SnapForward(now),
	}, nil
}

// GetByID retrieves one email.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByTrackingID resolves a tracking token to its email.
func (s *Service) GetByTrackingID(ctx context.Context, trackingID uuid.UUID) (domain.Email, error) {
	return s.repo.GetByTrackingID(ctx, trackingID)
}

// ListByLead retrieves a lead's sequence.
func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Email, error) {
	return s.repo.ListByLead(ctx, leadID)
}

// deferSend reschedules a still-scheduled email and reports the new time.
func (s *Service) deferSend(ctx context.Context, emailID uuid.UUID, at time.Time, reason string) (*time.Time, error) {
	if err := s.repo.Reschedule(ctx, emailID, at); err != nil {
		// Cancelled or claimed in the meantime; nothing left to do.
		if apperr.Is(err, apperr.KindInvalidTransition) {
			return nil, nil
		}
		return nil, err
	}
	s.log.Info("send deferred", "email_id", emailID, "until", at, "reason", reason)
	return &at, nil
}

// closeSequence marks the lead COMPLETED once nothing is left to send.
func (s *Service) closeSequence(ctx context.Context, leadID uuid.UUID) {
	active, err := s.repo.HasActiveSequence(ctx, leadID)
	if err != nil {
		s.log.Error("failed to check sequence completion", "lead_id", leadID, "error", err.Error())
		return
	}
	if active {
		return
	}
	if err := s.leads.MarkCompleted(ctx, leadID); err != nil {
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			s.log.Error("failed to mark lead completed", "lead_id", leadID, "error", err.Error())
		}
	}
}

// jitter spreads sends a few minutes apart so a burst of due tasks does not
// fire as one block.
func (s *Service) jitter() time.Duration {
	minDelay := s.cfg.GetMinSendDelay()
	maxDelay := s.cfg.GetMaxSendDelay()
	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + time.Duration(rand.Int63n(int64(maxDelay-minDelay)))
}

func leadInactive(status leaddomain.Status) bool {
	switch status {
	case leaddomain.StatusReplied, leaddomain.StatusBounced, leaddomain.StatusDisqualified, leaddomain.StatusCompleted:
		return true
	}
	return false
}
