package repository

import (
	"context"
	"time"

	"leadmachine_backend/internal/outreach/domain"

	"github.com/google/uuid"
)

// Repository defines data access for outreach emails. ClaimForSending is the
// concurrency gate: exactly one caller wins the SCHEDULED to SENDING swap.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Email, error)
	GetByTrackingID(ctx context.Context, trackingID uuid.UUID) (domain.Email, error)
	CreateSequence(ctx context.Context, emails []domain.Email) ([]domain.Email, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Email, error)
	ListDue(ctx context.Context, before time.Time, limit int) ([]domain.Email, error)
	ClaimForSending(ctx context.Context, id uuid.UUID) (domain.Email, error)
	ReleaseClaim(ctx context.Context, id uuid.UUID) error
	ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkBounced(ctx context.Context, id uuid.UUID) error
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error
	CancelScheduledByLead(ctx context.Context, leadID uuid.UUID) (int, error)
	HasActiveSequence(ctx context.Context, leadID uuid.UUID) (bool, error)
	CountByStatus(ctx context.Context, status domain.Status) (int, error)
}
