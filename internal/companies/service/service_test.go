package service

import (
	"context"
	"testing"

	"leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/companies/repository"
	"leadmachine_backend/internal/events"
	"leadmachine_backend/platform/apperr"
	"leadmachine_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	companies map[uuid.UUID]domain.Company
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{companies: make(map[uuid.UUID]domain.Company)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return domain.Company{}, apperr.NotFound("company not found")
	}
	return c, nil
}

func (f *fakeRepo) FindByDomain(_ context.Context, d string) (*domain.Company, error) {
	for _, c := range f.companies {
		if c.Domain != nil && *c.Domain == d {
			copied := c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindNameCandidates(_ context.Context) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range f.companies {
		if c.Domain == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, c domain.Company) (domain.Company, error) {
	if c.Domain != nil {
		for _, existing := range f.companies {
			if existing.Domain != nil && *existing.Domain == *c.Domain {
				return domain.Company{}, apperr.Conflict("company domain already exists")
			}
		}
	}
	c.ID = uuid.New()
	f.companies[c.ID] = c
	return c, nil
}

func (f *fakeRepo) UpdateAttributes(_ context.Context, c domain.Company) (domain.Company, error) {
	if _, ok := f.companies[c.ID]; !ok {
		return domain.Company{}, apperr.NotFound("company not found")
	}
	f.companies[c.ID] = c
	return c, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.Status) error {
	c, ok := f.companies[id]
	if !ok {
		return apperr.NotFound("company not found")
	}
	if err := domain.Transition(from, to); err != nil {
		return err
	}
	if c.Status != from {
		return apperr.InvalidTransition("company status changed concurrently")
	}
	c.Status = to
	f.companies[id] = c
	return nil
}

func (f *fakeRepo) SetNeedsReview(_ context.Context, id uuid.UUID, needsReview bool) error {
	c, ok := f.companies[id]
	if !ok {
		return apperr.NotFound("company not found")
	}
	c.NeedsReview = needsReview
	f.companies[id] = c
	return nil
}

func (f *fakeRepo) List(_ context.Context, _ repository.ListParams) ([]domain.Company, int, error) {
	var out []domain.Company
	for _, c := range f.companies {
		out = append(out, c)
	}
	return out, len(out), nil
}

type fakeJobs struct {
	jobs map[uuid.UUID]repository.ScrapeJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]repository.ScrapeJob)}
}

func (f *fakeJobs) CreateJob(_ context.Context, source string) (repository.ScrapeJob, error) {
	job := repository.ScrapeJob{ID: uuid.New(), Source: source, Status: repository.ScrapeJobPending}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) StartJob(_ context.Context, id uuid.UUID) error {
	job := f.jobs[id]
	if job.Status != repository.ScrapeJobPending {
		return apperr.InvalidTransition("scrape job is not pending")
	}
	job.Status = repository.ScrapeJobRunning
	f.jobs[id] = job
	return nil
}

func (f *fakeJobs) FinishJob(_ context.Context, id uuid.UUID, found, created, merged, held int) error {
	job := f.jobs[id]
	job.Status = repository.ScrapeJobCompleted
	job.CompaniesFound = found
	job.CompaniesCreated = created
	job.CompaniesMerged = merged
	job.CompaniesHeld = held
	f.jobs[id] = job
	return nil
}

func (f *fakeJobs) FailJob(_ context.Context, id uuid.UUID, reason string) error {
	job := f.jobs[id]
	job.Status = repository.ScrapeJobFailed
	job.Error = &reason
	f.jobs[id] = job
	return nil
}

func (f *fakeJobs) GetJob(_ context.Context, id uuid.UUID) (repository.ScrapeJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return repository.ScrapeJob{}, apperr.NotFound("scrape job not found")
	}
	return job, nil
}

func (f *fakeJobs) ListJobs(_ context.Context, _ int) ([]repository.ScrapeJob, error) {
	return nil, nil
}

type fakeEnqueuer struct{ batches int }

func (f *fakeEnqueuer) EnqueueDedupBatch(_ context.Context, _ uuid.UUID, _ []domain.Observation) error {
	f.batches++
	return nil
}

type dedupCfg struct {
	threshold float64
	band      float64
}

func (c dedupCfg) GetSimilarityThreshold() float64 { return c.threshold }
func (c dedupCfg) GetAmbiguityBand() float64       { return c.band }

func newTestService(repo *fakeRepo) *Service {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	return New(repo, newFakeJobs(), &fakeEnqueuer{}, bus, dedupCfg{threshold: 0.85, band: 0.05}, log)
}

func obsWithDomain(name, domainRaw string) domain.Observation {
	return domain.Observation{Name: name, DomainRaw: domainRaw, Source: "indeed"}
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	obs := obsWithDomain("Acme BV", "https://www.acme.com/jobs")

	for i := 0; i < 5; i++ {
		if _, err := svc.Deduplicate(ctx, obs); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}

	if len(repo.companies) != 1 {
		t.Fatalf("expected exactly one company after replays, got %d", len(repo.companies))
	}
	for _, c := range repo.companies {
		if c.Domain == nil || *c.Domain != "acme.com" {
			t.Errorf("domain not normalized: %v", c.Domain)
		}
	}
}

func TestDeduplicateMergesByDomain(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Deduplicate(ctx, obsWithDomain("Acme", "acme.com"))
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created {
		t.Fatal("first observation should create")
	}

	vacancies := 7
	second := domain.Observation{
		Name:          "Acme B.V.",
		DomainRaw:     "www.acme.com",
		Source:        "linkedin",
		OpenVacancies: vacancies,
		HasFunding:    true,
	}
	result, err := svc.Deduplicate(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if result.Created {
		t.Error("second observation should merge, not create")
	}
	if result.MatchedBy != "domain" {
		t.Errorf("matched by %q, want domain", result.MatchedBy)
	}
	if result.Company.ID != first.Company.ID {
		t.Error("merge resolved to a different company")
	}
	if result.Company.OpenVacancies != vacancies {
		t.Errorf("open vacancies = %d, want %d", result.Company.OpenVacancies, vacancies)
	}
	if !result.Company.HasFunding {
		t.Error("funding flag should be sticky after merge")
	}
}

func TestDeduplicateFuzzyNameMerge(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Deduplicate(ctx, domain.Observation{Name: "Bakkerij Jansen", Source: "kvk"})
	if err != nil {
		t.Fatal(err)
	}

	result, err := svc.Deduplicate(ctx, domain.Observation{Name: "Jansen Bakkerij B.V.", Source: "indeed"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Created {
		t.Error("near-identical name should merge")
	}
	if result.MatchedBy != "name_similarity" {
		t.Errorf("matched by %q, want name_similarity", result.MatchedBy)
	}
	if result.Company.ID != created.Company.ID {
		t.Error("merged into wrong company")
	}
}

func TestDeduplicateAmbiguousMatchHeld(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	// Two existing domainless companies with near-identical names.
	if _, err := svc.Deduplicate(ctx, domain.Observation{Name: "Smit Installaties", Source: "kvk"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Deduplicate(ctx, domain.Observation{Name: "Smit Installatie", Source: "kvk"}); err != nil {
		// Depending on similarity this may merge; seed directly instead.
		t.Fatal(err)
	}
	// Seed the second candidate directly so both exist for sure.
	repo.Create(ctx, domain.Company{Name: "Smit Installaties Noord", Status: domain.StatusNew})
	repo.Create(ctx, domain.Company{Name: "Smit Installaties Zuid", Status: domain.StatusNew})

	svcWide := New(repo, newFakeJobs(), &fakeEnqueuer{}, events.NewInMemoryBus(logger.New("development")), dedupCfg{threshold: 0.80, band: 0.15}, logger.New("development"))

	before := len(repo.companies)
	result, err := svcWide.Deduplicate(ctx, domain.Observation{Name: "Smit Installaties", Source: "indeed"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.HeldForReview {
		t.Fatal("expected ambiguous observation to be held for review")
	}
	if !result.Company.NeedsReview {
		t.Error("held company should be flagged needs_review")
	}
	if len(result.Candidates) < 2 {
		t.Errorf("expected at least 2 candidates, got %d", len(result.Candidates))
	}
	if len(repo.companies) != before+1 {
		t.Error("held observation should be stored as a new pending record")
	}
}

func TestDeduplicateRejectsEmptyName(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Deduplicate(context.Background(), domain.Observation{Name: "  ", Source: "indeed"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessBatchDedupesWithinBatch(t *testing.T) {
	repo := newFakeRepo()
	jobs := newFakeJobs()
	svc := New(repo, jobs, &fakeEnqueuer{}, events.NewInMemoryBus(logger.New("development")), dedupCfg{threshold: 0.85, band: 0.05}, logger.New("development"))
	ctx := context.Background()

	job, err := jobs.CreateJob(ctx, "indeed")
	if err != nil {
		t.Fatal(err)
	}

	batch := []domain.Observation{
		obsWithDomain("Acme", "acme.com"),
		obsWithDomain("Acme BV", "https://acme.com"),
		obsWithDomain("Other Co", "other.example"),
	}
	if err := svc.ProcessBatch(ctx, job.ID, batch); err != nil {
		t.Fatal(err)
	}

	if len(repo.companies) != 2 {
		t.Errorf("expected 2 companies from batch, got %d", len(repo.companies))
	}

	done, err := jobs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != "COMPLETED" {
		t.Errorf("job status = %s, want COMPLETED", done.Status)
	}
	if done.CompaniesFound != 3 || done.CompaniesCreated != 2 {
		t.Errorf("job counters found=%d created=%d, want 3/2", done.CompaniesFound, done.CompaniesCreated)
	}
}
