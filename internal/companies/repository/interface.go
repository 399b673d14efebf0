package repository

import (
	"context"

	"leadmachine_backend/internal/companies/domain"

	"github.com/google/uuid"
)

// Repository defines persistence operations for companies.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error)
	FindByDomain(ctx context.Context, normalizedDomain string) (*domain.Company, error)
	FindNameCandidates(ctx context.Context) ([]domain.Company, error)
	Create(ctx context.Context, c domain.Company) (domain.Company, error)
	UpdateAttributes(ctx context.Context, c domain.Company) (domain.Company, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error
	SetNeedsReview(ctx context.Context, id uuid.UUID, needsReview bool) error
	List(ctx context.Context, params ListParams) ([]domain.Company, int, error)
}

// ListParams filters and paginates company listings.
type ListParams struct {
	Status      *domain.Status
	NeedsReview *bool
	Search      string
	Limit       int
	Offset      int
}

// ScrapeJobRepository records scrape-run lifecycles. Jobs are the provenance
// of raw observations, consumed by dedup only.
type ScrapeJobRepository interface {
	CreateJob(ctx context.Context, source string) (ScrapeJob, error)
	StartJob(ctx context.Context, id uuid.UUID) error
	FinishJob(ctx context.Context, id uuid.UUID, found, created, merged, held int) error
	FailJob(ctx context.Context, id uuid.UUID, reason string) error
	GetJob(ctx context.Context, id uuid.UUID) (ScrapeJob, error)
	ListJobs(ctx context.Context, limit int) ([]ScrapeJob, error)
}
