package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	companydomain "leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/events"
	"leadmachine_backend/internal/leads/domain"
	"leadmachine_backend/internal/leads/repository"
	"leadmachine_backend/internal/leads/scoring"
	"leadmachine_backend/platform/apperr"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CompanyDirectory is the slice of the companies module the leads module
// depends on: firmographics for scoring plus the enrichment handshake.
type CompanyDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (companydomain.Company, error)
	BeginEnrichment(ctx context.Context, id uuid.UUID) error
	CompleteEnrichment(ctx context.Context, id uuid.UUID, foundContacts bool) error
	MarkScored(ctx context.Context, id uuid.UUID) error
}

// ScoreEnqueuer hands lead scoring work to the background worker pool.
type ScoreEnqueuer interface {
	EnqueueLeadScore(ctx context.Context, leadID uuid.UUID) error
}

// NewContact is one person found by enrichment for a company.
type NewContact struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       *string
	JobTitle    *string
	LinkedInURL *string
}

// Service provides lead lifecycle and scoring logic.
type Service struct {
	repo      repository.Repository
	companies CompanyDirectory
	scorer    *scoring.Scorer
	enqueuer  ScoreEnqueuer
	bus       events.Bus
	log       *logger.Logger
}

// New creates a new leads service.
func New(repo repository.Repository, companies CompanyDirectory, scorer *scoring.Scorer, enqueuer ScoreEnqueuer, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, companies: companies, scorer: scorer, enqueuer: enqueuer, bus: bus, log: log}
}

// BeginEnrichment flags a company as being enriched. The actual contact
// discovery runs outside this system; its results come back via IngestContacts.
func (s *Service) BeginEnrichment(ctx context.Context, companyID uuid.UUID) error {
	return s.companies.BeginEnrichment(ctx, companyID)
}

// IngestContacts records enrichment results for a company. Contacts with an
// existing (company, email) pair are skipped, so replaying a result set is
// idempotent. The company moves to ENRICHED when at least one contact came
// back and to NO_EMAIL otherwise; each new lead is queued for scoring.
func (s *Service) IngestContacts(ctx context.Context, companyID uuid.UUID, contacts []NewContact) ([]domain.Lead, error) {
	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, err
	}

	var created []domain.Lead
	for _, contact := range contacts {
		lead, err := s.ingestOne(ctx, companyID, contact)
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return nil, err
		}
		created = append(created, lead)
	}

	if err := s.companies.CompleteEnrichment(ctx, companyID, len(contacts) > 0); err != nil {
		// A replayed result set finds the company already past ENRICHING.
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			return nil, err
		}
	}

	for _, lead := range created {
		if err := s.enqueuer.EnqueueLeadScore(ctx, lead.ID); err != nil {
			s.log.Error("failed to queue lead scoring", "lead_id", lead.ID, "error", err.Error())
		}
	}

	s.log.Info("enrichment contacts ingested",
		"company_id", companyID, "received", len(contacts), "created", len(created))
	return created, nil
}

func (s *Service) ingestOne(ctx context.Context, companyID uuid.UUID, contact NewContact) (domain.Lead, error) {
	email := strings.ToLower(strings.TrimSpace(contact.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Lead{}, apperr.Validation("invalid contact email: " + contact.Email)
	}

	var phonePtr *string
	if contact.Phone != nil && strings.TrimSpace(*contact.Phone) != "" {
		normalized := phone.NormalizeE164(*contact.Phone)
		phonePtr = &normalized
	}

	lead, err := s.repo.Create(ctx, domain.Lead{
		CompanyID:   companyID,
		FirstName:   strings.TrimSpace(contact.FirstName),
		LastName:    strings.TrimSpace(contact.LastName),
		Email:       email,
		Phone:       phonePtr,
		JobTitle:    contact.JobTitle,
		LinkedInURL: contact.LinkedInURL,
		Status:      domain.StatusEnriched,
	})
	if err != nil {
		return domain.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		CompanyID: companyID,
		Email:     lead.Email,
	})
	return lead, nil
}

// ScoreLead scores one ENRICHED lead: persist the breakdown, move it to
// SCORED, then immediately qualify or disqualify it. Scoring an already
// scored lead is rejected as an invalid transition.
func (s *Service) ScoreLead(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return domain.Lead{}, err
	}

	company, err := s.companies.GetByID(ctx, lead.CompanyID)
	if err != nil {
		return domain.Lead{}, err
	}

	total, breakdown := s.scorer.Score(scoringInput(company))
	classification := domain.Classify(total)

	if err := s.transition(ctx, lead.ID, domain.StatusEnriched, domain.StatusScored); err != nil {
		return domain.Lead{}, err
	}
	if err := s.repo.SetScore(ctx, lead.ID, total, classification, breakdown, time.Now().UTC()); err != nil {
		return domain.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadScored{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		CompanyID:      lead.CompanyID,
		Score:          total,
		Classification: string(classification),
	})

	next := domain.StatusDisqualified
	if domain.Qualifies(total) {
		next = domain.StatusQualified
	}
	if err := s.transition(ctx, lead.ID, domain.StatusScored, next); err != nil {
		return domain.Lead{}, err
	}
	if next == domain.StatusQualified {
		s.bus.Publish(ctx, events.LeadQualified{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			CompanyID: lead.CompanyID,
			Score:     total,
		})
	}

	s.log.Info("lead scored",
		"lead_id", lead.ID, "score", total,
		"classification", string(classification), "qualified", next == domain.StatusQualified)

	s.maybeCloseCompanyScoring(ctx, lead.CompanyID)

	return s.repo.GetByID(ctx, lead.ID)
}

// ScorePending scores every ENRICHED lead, a few at a time. Used by the
// periodic sweep that catches leads whose queued scoring task was lost.
func (s *Service) ScorePending(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}
	pending, err := s.repo.ListByStatus(ctx, domain.StatusEnriched, limit)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, lead := range pending {
		g.Go(func() error {
			if _, err := s.ScoreLead(gctx, lead.ID); err != nil {
				// Another worker may have scored it in the meantime.
				if apperr.Is(err, apperr.KindInvalidTransition) {
					return nil
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// MarkSequenced records that an outreach sequence was scheduled for the lead.
func (s *Service) MarkSequenced(ctx context.Context, leadID uuid.UUID) error {
	return s.transition(ctx, leadID, domain.StatusQualified, domain.StatusSequenced)
}

// MarkSending records that the lead's first email entered delivery.
func (s *Service) MarkSending(ctx context.Context, leadID uuid.UUID) error {
	return s.transition(ctx, leadID, domain.StatusSequenced, domain.StatusSending)
}

// MarkCompleted records that the lead's sequence finished without a reply.
func (s *Service) MarkCompleted(ctx context.Context, leadID uuid.UUID) error {
	return s.transition(ctx, leadID, domain.StatusSending, domain.StatusCompleted)
}

// MarkReplied moves the lead to REPLIED from whichever active state it is in.
func (s *Service) MarkReplied(ctx context.Context, leadID uuid.UUID) error {
	return s.interrupt(ctx, leadID, domain.StatusReplied)
}

// MarkBounced moves the lead to BOUNCED from whichever active state it is in.
func (s *Service) MarkBounced(ctx context.Context, leadID uuid.UUID) error {
	return s.interrupt(ctx, leadID, domain.StatusBounced)
}

// GetByID retrieves a single lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// FindByEmail matches an email address to its most recent lead.
func (s *Service) FindByEmail(ctx context.Context, email string) (domain.Lead, error) {
	return s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// List retrieves leads with filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]domain.Lead, int, error) {
	if params.Limit < 1 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	return s.repo.List(ctx, params)
}

// ListByCompany retrieves all leads of one company.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.Lead, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

// interrupt moves a lead into a terminal interrupt state from its current
// status, re-reading the row so the CAS targets the live value.
func (s *Service) interrupt(ctx context.Context, leadID uuid.UUID, to domain.Status) error {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.Status == to {
		return nil
	}
	if err := s.transition(ctx, leadID, lead.Status, to); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		OldStatus: string(lead.Status),
		NewStatus: string(to),
	})
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		if apperr.Is(err, apperr.KindInvalidTransition) {
			s.log.Warn("lead transition rejected",
				"lead_id", id, "attempted_from", string(from), "attempted_to", string(to),
				"error", err.Error())
		}
		return err
	}
	return nil
}

// maybeCloseCompanyScoring marks the company SCORED once none of its leads
// are waiting for a score. Best-effort; the next scored lead retries.
func (s *Service) maybeCloseCompanyScoring(ctx context.Context, companyID uuid.UUID) {
	leads, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		s.log.Error("failed to check company scoring completion", "company_id", companyID, "error", err.Error())
		return
	}
	for _, lead := range leads {
		if lead.Status == domain.StatusEnriched || lead.Status == domain.StatusScored {
			return
		}
	}
	if err := s.companies.MarkScored(ctx, companyID); err != nil {
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			s.log.Error("failed to mark company scored", "company_id", companyID, "error", err.Error())
		}
	}
}

// scoringInput projects company firmographics onto the scoring model.
func scoringInput(company companydomain.Company) scoring.Input {
	return scoring.Input{
		EmployeeCount: company.EmployeeCount,
		Industry:      company.Industry,
		OpenVacancies: company.OpenVacancies,
		HasFunding:    company.HasFunding,
		HasLinkedIn:   company.LinkedInURL != nil && *company.LinkedInURL != "",
		RecentPosts:   recentPosts(company.RawData),
		Location:      company.Location,
	}
}

// recentPosts digs the LinkedIn post count out of the raw scrape payloads,
// taking the highest count any source reported.
func recentPosts(rawData map[string]map[string]any) int {
	best := 0
	for _, payload := range rawData {
		value, ok := payload["recent_posts"]
		if !ok {
			continue
		}
		switch n := value.(type) {
		case float64:
			if int(n) > best {
				best = int(n)
			}
		case int:
			if n > best {
				best = n
			}
		}
	}
	return best
}
