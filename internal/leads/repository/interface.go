package repository

import (
	"context"
	"time"

	"leadmachine_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ListParams filters lead listings.
type ListParams struct {
	CompanyID      *uuid.UUID
	Status         *domain.Status
	Classification *domain.Classification
	MinScore       *int
	Limit          int
	Offset         int
}

// Repository defines data access for leads. Implementations must treat
// UpdateStatus as a compare-and-swap keyed on the expected current status.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	FindByEmail(ctx context.Context, email string) (domain.Lead, error)
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, int, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.Lead, error)
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error
	SetScore(ctx context.Context, id uuid.UUID, score int, classification domain.Classification, breakdown domain.ScoreBreakdown, scoredAt time.Time) error
}
