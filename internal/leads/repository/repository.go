package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadmachine_backend/internal/leads/domain"
	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadNotFoundMessage = "lead not found"

const leadColumns = `
	id, company_id, first_name, last_name, email, phone, job_title,
	linkedin_url, status, score, classification, score_breakdown, scored_at,
	created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a lead by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// FindByEmail retrieves the most recently touched lead for an email address,
// used to match inbound replies back to a lead.
func (r *Repo) FindByEmail(ctx context.Context, email string) (domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE email = $1 ORDER BY updated_at DESC LIMIT 1`

	lead, err := scanLead(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, apperr.NotFound(leadNotFoundMessage)
		}
		return domain.Lead{}, fmt.Errorf("find lead by email: %w", err)
	}
	return lead, nil
}

// Create inserts a new lead. The unique index on (company_id, email) makes
// enrichment intake idempotent; a duplicate surfaces as Conflict.
func (r *Repo) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	query := `
		INSERT INTO leads (
			company_id, first_name, last_name, email, phone, job_title,
			linkedin_url, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + leadColumns

	created, err := scanLead(r.pool.QueryRow(ctx, query,
		lead.CompanyID, lead.FirstName, lead.LastName, lead.Email, lead.Phone,
		lead.JobTitle, lead.LinkedInURL, lead.Status,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Lead{}, apperr.Conflict("lead already exists for this company and email")
		}
		return domain.Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return created, nil
}

// List retrieves leads with optional filters and pagination.
func (r *Repo) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	var companyParam, statusParam, classParam, minScoreParam any
	if params.CompanyID != nil {
		companyParam = *params.CompanyID
	}
	if params.Status != nil {
		statusParam = string(*params.Status)
	}
	if params.Classification != nil {
		classParam = string(*params.Classification)
	}
	if params.MinScore != nil {
		minScoreParam = *params.MinScore
	}

	countQuery := `
		SELECT COUNT(*)
		FROM leads
		WHERE ($1::uuid IS NULL OR company_id = $1)
			AND ($2::text IS NULL OR status = $2)
			AND ($3::text IS NULL OR classification = $3)
			AND ($4::int IS NULL OR score >= $4)`

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, companyParam, statusParam, classParam, minScoreParam).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ($1::uuid IS NULL OR company_id = $1)
			AND ($2::text IS NULL OR status = $2)
			AND ($3::text IS NULL OR classification = $3)
			AND ($4::int IS NULL OR score >= $4)
		ORDER BY score DESC NULLS LAST, created_at DESC
		LIMIT $5 OFFSET $6`

	rows, err := r.pool.Query(ctx, query, companyParam, statusParam, classParam, minScoreParam, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items, err := scanLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByCompany retrieves all leads belonging to one company.
func (r *Repo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE company_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list leads by company: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// ListByStatus retrieves the oldest leads in a status, for batch work.
func (r *Repo) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status = $1 ORDER BY created_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads by status: %w", err)
	}
	defer rows.Close()

	return scanLeads(rows)
}

// UpdateStatus moves a lead from one status to another as a single
// compare-and-swap. Zero rows affected means the expected status no longer
// holds; the caller's transition is rejected unchanged.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if err := domain.Transition(from, to); err != nil {
		return err
	}

	query := `UPDATE leads SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	if result.RowsAffected() == 0 {
		actual, getErr := r.currentStatus(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperr.InvalidTransition("lead status changed concurrently").
			WithDetails(map[string]string{"expected": string(from), "actual": string(actual)})
	}
	return nil
}

// SetScore persists the score, classification and breakdown in one write.
func (r *Repo) SetScore(ctx context.Context, id uuid.UUID, score int, classification domain.Classification, breakdown domain.ScoreBreakdown, scoredAt time.Time) error {
	encoded, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("encode score breakdown: %w", err)
	}

	query := `
		UPDATE leads SET
			score = $2,
			classification = $3,
			score_breakdown = $4,
			scored_at = $5,
			updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, score, classification, encoded, scoredAt)
	if err != nil {
		return fmt.Errorf("set lead score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return nil
}

func (r *Repo) currentStatus(ctx context.Context, id uuid.UUID) (domain.Status, error) {
	var status domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(leadNotFoundMessage)
		}
		return "", fmt.Errorf("get lead status: %w", err)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var lead domain.Lead
	var breakdown []byte

	err := row.Scan(
		&lead.ID, &lead.CompanyID, &lead.FirstName, &lead.LastName, &lead.Email,
		&lead.Phone, &lead.JobTitle, &lead.LinkedInURL, &lead.Status, &lead.Score,
		&lead.Classification, &breakdown, &lead.ScoredAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}

	if len(breakdown) > 0 {
		var decoded domain.ScoreBreakdown
		if err := json.Unmarshal(breakdown, &decoded); err != nil {
			return domain.Lead{}, fmt.Errorf("decode score breakdown: %w", err)
		}
		lead.Breakdown = &decoded
	}
	return lead, nil
}

func scanLeads(rows pgx.Rows) ([]domain.Lead, error) {
	var results []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		results = append(results, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return results, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
