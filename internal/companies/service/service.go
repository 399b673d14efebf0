package service

import (
	"context"
	"sort"
	"strings"

	"leadmachine_backend/internal/companies/dedup"
	"leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/companies/repository"
	"leadmachine_backend/internal/events"
	"leadmachine_backend/platform/apperr"
	"leadmachine_backend/platform/logger"
	"leadmachine_backend/platform/sanitize"

	"github.com/google/uuid"
)

// DedupConfig provides the tunables of the deduplicator.
type DedupConfig interface {
	GetSimilarityThreshold() float64
	GetAmbiguityBand() float64
}

// BatchEnqueuer hands an observation batch to the background worker pool.
type BatchEnqueuer interface {
	EnqueueDedupBatch(ctx context.Context, jobID uuid.UUID, observations []domain.Observation) error
}

// Service provides deduplication and lifecycle logic for companies.
type Service struct {
	repo     repository.Repository
	jobs     repository.ScrapeJobRepository
	enqueuer BatchEnqueuer
	bus      events.Bus
	cfg      DedupConfig
	log      *logger.Logger
}

// New creates a new companies service.
func New(repo repository.Repository, jobs repository.ScrapeJobRepository, enqueuer BatchEnqueuer, bus events.Bus, cfg DedupConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, enqueuer: enqueuer, bus: bus, cfg: cfg, log: log}
}

// SubmitObservations records a scrape job and queues its observations for
// deduplication. The HTTP intake returns as soon as the batch is queued.
func (s *Service) SubmitObservations(ctx context.Context, source string, observations []domain.Observation) (repository.ScrapeJob, error) {
	if len(observations) == 0 {
		return repository.ScrapeJob{}, apperr.Validation("observation batch is empty")
	}

	job, err := s.jobs.CreateJob(ctx, source)
	if err != nil {
		return repository.ScrapeJob{}, err
	}

	if err := s.enqueuer.EnqueueDedupBatch(ctx, job.ID, observations); err != nil {
		_ = s.jobs.FailJob(ctx, job.ID, "enqueue failed: "+err.Error())
		return repository.ScrapeJob{}, apperr.Wrap(apperr.KindInternal, "failed to queue observation batch", err)
	}

	s.log.Info("observation batch queued", "job_id", job.ID, "source", source, "count", len(observations))
	return job, nil
}

// ProcessBatch deduplicates a queued observation batch and closes out its
// scrape job. Invoked by the worker.
func (s *Service) ProcessBatch(ctx context.Context, jobID uuid.UUID, observations []domain.Observation) error {
	if err := s.jobs.StartJob(ctx, jobID); err != nil {
		// A requeued task may find the job already running; that is fine.
		if !apperr.Is(err, apperr.KindInvalidTransition) {
			return err
		}
	}

	// Dedupe within the batch first so one scrape run cannot race itself.
	unique := dedupeBatch(observations)

	var created, merged, held int
	for _, obs := range unique {
		result, err := s.Deduplicate(ctx, obs)
		if err != nil {
			s.log.Error("observation rejected", "job_id", jobID, "name", obs.Name, "error", err.Error())
			continue
		}
		switch {
		case result.HeldForReview:
			held++
		case result.Created:
			created++
		default:
			merged++
		}
	}

	if err := s.jobs.FinishJob(ctx, jobID, len(observations), created, merged, held); err != nil {
		return err
	}

	s.log.Info("observation batch processed",
		"job_id", jobID, "found", len(observations),
		"created", created, "merged", merged, "held", held)
	return nil
}

// Deduplicate resolves one observation into the canonical company set:
// exact-domain merge, fuzzy-name merge, ambiguity hold, or a fresh record.
// Replaying the same observation is idempotent.
func (s *Service) Deduplicate(ctx context.Context, obs domain.Observation) (domain.MergeResult, error) {
	obs = sanitizeObservation(obs)
	if strings.TrimSpace(obs.Name) == "" {
		return domain.MergeResult{}, apperr.Validation("observation name is required")
	}
	if strings.TrimSpace(obs.Source) == "" {
		return domain.MergeResult{}, apperr.Validation("observation source is required")
	}

	normDomain := dedup.NormalizeDomain(obs.DomainRaw)

	if normDomain != "" {
		existing, err := s.repo.FindByDomain(ctx, normDomain)
		if err != nil {
			return domain.MergeResult{}, err
		}
		if existing != nil {
			return s.mergeInto(ctx, *existing, obs, normDomain, "domain")
		}
	}

	match, ambiguous, candidates, err := s.findNameMatch(ctx, obs.Name)
	if err != nil {
		return domain.MergeResult{}, err
	}

	if ambiguous {
		return s.holdForReview(ctx, obs, normDomain, candidates)
	}
	if match != nil {
		return s.mergeInto(ctx, *match, obs, normDomain, "name_similarity")
	}

	return s.createNew(ctx, obs, normDomain)
}

// ResolveReview clears the manual-review hold on a company.
func (s *Service) ResolveReview(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	if err := s.repo.SetNeedsReview(ctx, id, false); err != nil {
		return domain.Company{}, err
	}
	s.log.Info("company review resolved", "company_id", id)
	return s.repo.GetByID(ctx, id)
}

// BeginEnrichment moves a company into ENRICHING before the external
// enrichment collaborator runs.
func (s *Service) BeginEnrichment(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.StatusNew, domain.StatusEnriching)
}

// CompleteEnrichment finishes enrichment: ENRICHED when contacts were found,
// NO_EMAIL otherwise.
func (s *Service) CompleteEnrichment(ctx context.Context, id uuid.UUID, foundContacts bool) error {
	next := domain.StatusEnriched
	if !foundContacts {
		next = domain.StatusNoEmail
	}
	return s.transition(ctx, id, domain.StatusEnriching, next)
}

// RetryEnrichment resets a NO_EMAIL company to NEW for another pass.
func (s *Service) RetryEnrichment(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.StatusNoEmail, domain.StatusNew)
}

// MarkScored finalizes the company lifecycle once its leads are scored.
func (s *Service) MarkScored(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, id, domain.StatusEnriched, domain.StatusScored)
}

// GetByID retrieves a single company.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves companies with filters.
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]domain.Company, int, error) {
	if params.Limit < 1 {
		params.Limit = 20
	}
	if params.Limit > 100 {
		params.Limit = 100
	}
	return s.repo.List(ctx, params)
}

// GetJob retrieves one scrape job.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (repository.ScrapeJob, error) {
	return s.jobs.GetJob(ctx, id)
}

// ListJobs retrieves recent scrape jobs.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]repository.ScrapeJob, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.jobs.ListJobs(ctx, limit)
}

// transition applies a status change and audit-logs rejections without
// crashing the caller's unit of work.
func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		if apperr.Is(err, apperr.KindInvalidTransition) {
			s.log.Warn("company transition rejected",
				"company_id", id, "attempted_from", string(from), "attempted_to", string(to),
				"error", err.Error())
		}
		return err
	}
	return nil
}

// findNameMatch fuzzy-matches the observation name against companies without
// a domain. Returns ambiguous=true when two or more candidates land within
// the ambiguity band of the best score.
func (s *Service) findNameMatch(ctx context.Context, name string) (*domain.Company, bool, []uuid.UUID, error) {
	normName := dedup.NormalizeName(name)
	if normName == "" {
		return nil, false, nil, nil
	}

	pool, err := s.repo.FindNameCandidates(ctx)
	if err != nil {
		return nil, false, nil, err
	}

	threshold := s.cfg.GetSimilarityThreshold()
	band := s.cfg.GetAmbiguityBand()

	type scored struct {
		company domain.Company
		score   float64
	}
	var hits []scored
	for _, candidate := range pool {
		score := dedup.Similarity(normName, dedup.NormalizeName(candidate.Name))
		if score >= threshold {
			hits = append(hits, scored{company: candidate, score: score})
		}
	}
	if len(hits) == 0 {
		return nil, false, nil, nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	best := hits[0]
	var inBand []uuid.UUID
	for _, hit := range hits {
		if best.score-hit.score <= band {
			inBand = append(inBand, hit.company.ID)
		}
	}
	if len(inBand) >= 2 {
		return nil, true, inBand, nil
	}
	return &best.company, false, nil, nil
}

func (s *Service) mergeInto(ctx context.Context, existing domain.Company, obs domain.Observation, normDomain, matchedBy string) (domain.MergeResult, error) {
	merged := mergeAttributes(existing, obs, normDomain)

	updated, err := s.repo.UpdateAttributes(ctx, merged)
	if err != nil {
		return domain.MergeResult{}, err
	}

	s.bus.Publish(ctx, events.CompanyMerged{
		BaseEvent: events.NewBaseEvent(),
		CompanyID: updated.ID,
		Source:    obs.Source,
		MatchedBy: matchedBy,
	})
	s.log.Info("company merged", "company_id", updated.ID, "matched_by", matchedBy, "source", obs.Source)

	return domain.MergeResult{Company: updated, MatchedBy: matchedBy}, nil
}

func (s *Service) holdForReview(ctx context.Context, obs domain.Observation, normDomain string, candidates []uuid.UUID) (domain.MergeResult, error) {
	company := observationToCompany(obs, normDomain)
	company.NeedsReview = true

	created, err := s.repo.Create(ctx, company)
	if err != nil {
		return domain.MergeResult{}, err
	}

	s.bus.Publish(ctx, events.CompanyNeedsReview{
		BaseEvent:    events.NewBaseEvent(),
		CompanyID:    created.ID,
		CandidateIDs: candidates,
	})
	s.log.Warn("ambiguous company match held for review",
		"company_id", created.ID, "candidates", len(candidates))

	return domain.MergeResult{Company: created, Created: true, HeldForReview: true, Candidates: candidates}, nil
}

func (s *Service) createNew(ctx context.Context, obs domain.Observation, normDomain string) (domain.MergeResult, error) {
	created, err := s.repo.Create(ctx, observationToCompany(obs, normDomain))
	if err != nil {
		// Another worker created the canonical row for this domain between
		// our lookup and insert. Re-resolve through the merge path.
		if apperr.Is(err, apperr.KindConflict) && normDomain != "" {
			existing, findErr := s.repo.FindByDomain(ctx, normDomain)
			if findErr != nil {
				return domain.MergeResult{}, findErr
			}
			if existing != nil {
				return s.mergeInto(ctx, *existing, obs, normDomain, "domain")
			}
		}
		return domain.MergeResult{}, err
	}

	s.bus.Publish(ctx, events.CompanyDiscovered{
		BaseEvent: events.NewBaseEvent(),
		CompanyID: created.ID,
		Name:      created.Name,
		Domain:    normDomain,
		Source:    obs.Source,
	})
	s.log.Info("company discovered", "company_id", created.ID, "name", created.Name, "source", obs.Source)

	return domain.MergeResult{Company: created, Created: true}, nil
}

// mergeAttributes folds an observation into an existing company: non-null and
// most-recent values win, vacancy counts take the max, descriptions take the
// longer text, funding flags are sticky, raw payloads keep one entry per source.
func mergeAttributes(existing domain.Company, obs domain.Observation, normDomain string) domain.Company {
	merged := existing

	if merged.Domain == nil && normDomain != "" {
		merged.Domain = &normDomain
	}
	if obs.Industry != nil {
		merged.Industry = obs.Industry
	}
	if obs.EmployeeCount != nil {
		merged.EmployeeCount = obs.EmployeeCount
	}
	if obs.OpenVacancies > merged.OpenVacancies {
		merged.OpenVacancies = obs.OpenVacancies
	}
	if obs.Location != nil {
		merged.Location = obs.Location
	}
	if obs.Description != nil {
		if merged.Description == nil || len(*obs.Description) > len(*merged.Description) {
			merged.Description = obs.Description
		}
	}
	if obs.WebsiteURL != nil {
		merged.WebsiteURL = obs.WebsiteURL
	}
	if obs.LinkedInURL != nil {
		merged.LinkedInURL = obs.LinkedInURL
	}
	if obs.HasFunding {
		merged.HasFunding = true
	}
	if obs.FundingAmount != nil {
		merged.FundingAmount = obs.FundingAmount
	}

	if merged.RawData == nil {
		merged.RawData = make(map[string]map[string]any)
	}
	if obs.Raw != nil {
		merged.RawData[obs.Source] = obs.Raw
	}

	return merged
}

func observationToCompany(obs domain.Observation, normDomain string) domain.Company {
	var domainPtr *string
	if normDomain != "" {
		domainPtr = &normDomain
	}

	rawData := make(map[string]map[string]any)
	if obs.Raw != nil {
		rawData[obs.Source] = obs.Raw
	}

	return domain.Company{
		Name:          strings.TrimSpace(obs.Name),
		Domain:        domainPtr,
		Industry:      obs.Industry,
		EmployeeCount: obs.EmployeeCount,
		OpenVacancies: obs.OpenVacancies,
		Location:      obs.Location,
		Description:   obs.Description,
		WebsiteURL:    obs.WebsiteURL,
		LinkedInURL:   obs.LinkedInURL,
		HasFunding:    obs.HasFunding,
		FundingAmount: obs.FundingAmount,
		Source:        obs.Source,
		SourceURL:     obs.SourceURL,
		Status:        domain.StatusNew,
		RawData:       rawData,
	}
}

// sanitizeObservation strips HTML from the free-text fields scrapers tend to
// leave markup in. URLs and structured fields pass through untouched.
func sanitizeObservation(obs domain.Observation) domain.Observation {
	obs.Name = sanitize.Text(obs.Name)
	obs.Industry = sanitize.TextPtr(obs.Industry)
	obs.Location = sanitize.TextPtr(obs.Location)
	obs.Description = sanitize.TextPtr(obs.Description)
	obs.FundingAmount = sanitize.TextPtr(obs.FundingAmount)
	return obs
}

// dedupeBatch collapses duplicate observations within one batch by
// normalized domain, falling back to normalized name for domainless rows.
func dedupeBatch(observations []domain.Observation) []domain.Observation {
	seenDomains := make(map[string]struct{})
	seenNames := make(map[string]struct{})

	unique := make([]domain.Observation, 0, len(observations))
	for _, obs := range observations {
		if d := dedup.NormalizeDomain(obs.DomainRaw); d != "" {
			if _, ok := seenDomains[d]; ok {
				continue
			}
			seenDomains[d] = struct{}{}
		} else if n := dedup.NormalizeName(obs.Name); n != "" {
			if _, ok := seenNames[n]; ok {
				continue
			}
			seenNames[n] = struct{}{}
		}
		unique = append(unique, obs)
	}
	return unique
}
