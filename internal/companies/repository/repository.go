package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const companyNotFoundMessage = "company not found"

const companyColumns = `
	id, name, domain, industry, employee_count, open_vacancies, location,
	description, website_url, linkedin_url, has_funding, funding_amount,
	source, source_url, status, needs_review, raw_data, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new companies repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a company by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`

	c, err := scanCompany(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Company{}, apperr.NotFound(companyNotFoundMessage)
		}
		return domain.Company{}, fmt.Errorf("get company by id: %w", err)
	}
	return c, nil
}

// FindByDomain retrieves the canonical company for a normalized domain.
// Returns nil (no error) when no company owns the domain.
func (r *Repo) FindByDomain(ctx context.Context, normalizedDomain string) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE domain = $1`

	c, err := scanCompany(r.pool.QueryRow(ctx, query, normalizedDomain))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find company by domain: %w", err)
	}
	return &c, nil
}

// FindNameCandidates retrieves companies lacking a domain, the pool the fuzzy
// name matcher runs against.
func (r *Repo) FindNameCandidates(ctx context.Context) ([]domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE domain IS NULL`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find name candidates: %w", err)
	}
	defer rows.Close()

	return scanCompanies(rows)
}

// Create inserts a new company. A unique violation on domain means another
// worker created the canonical row concurrently; that surfaces as Conflict so
// the deduplicator can re-run the lookup.
func (r *Repo) Create(ctx context.Context, c domain.Company) (domain.Company, error) {
	query := `
		INSERT INTO companies (
			name, domain, industry, employee_count, open_vacancies, location,
			description, website_url, linkedin_url, has_funding, funding_amount,
			source, source_url, status, needs_review, raw_data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + companyColumns

	rawData, err := marshalRawData(c.RawData)
	if err != nil {
		return domain.Company{}, err
	}

	created, err := scanCompany(r.pool.QueryRow(ctx, query,
		c.Name, c.Domain, c.Industry, c.EmployeeCount, c.OpenVacancies, c.Location,
		c.Description, c.WebsiteURL, c.LinkedInURL, c.HasFunding, c.FundingAmount,
		c.Source, c.SourceURL, c.Status, c.NeedsReview, rawData,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Company{}, apperr.Conflict("company domain already exists")
		}
		return domain.Company{}, fmt.Errorf("create company: %w", err)
	}
	return created, nil
}

// UpdateAttributes persists merged attribute values. Status is not touched
// here; status changes go through UpdateStatus only.
func (r *Repo) UpdateAttributes(ctx context.Context, c domain.Company) (domain.Company, error) {
	query := `
		UPDATE companies SET
			name = $2,
			domain = COALESCE($3, domain),
			industry = $4,
			employee_count = $5,
			open_vacancies = $6,
			location = $7,
			description = $8,
			website_url = $9,
			linkedin_url = $10,
			has_funding = $11,
			funding_amount = $12,
			raw_data = $13,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + companyColumns

	rawData, err := marshalRawData(c.RawData)
	if err != nil {
		return domain.Company{}, err
	}

	updated, err := scanCompany(r.pool.QueryRow(ctx, query,
		c.ID, c.Name, c.Domain, c.Industry, c.EmployeeCount, c.OpenVacancies,
		c.Location, c.Description, c.WebsiteURL, c.LinkedInURL, c.HasFunding,
		c.FundingAmount, rawData,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Company{}, apperr.NotFound(companyNotFoundMessage)
		}
		return domain.Company{}, fmt.Errorf("update company attributes: %w", err)
	}
	return updated, nil
}

// UpdateStatus moves a company from one status to another as a single
// compare-and-swap. Zero rows affected means the expected status no longer
// holds (or the row is gone); the caller's transition is rejected unchanged.
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	if err := domain.Transition(from, to); err != nil {
		return err
	}

	query := `UPDATE companies SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

	result, err := r.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update company status: %w", err)
	}
	if result.RowsAffected() == 0 {
		actual, getErr := r.currentStatus(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperr.InvalidTransition("company status changed concurrently").
			WithDetails(map[string]string{"expected": string(from), "actual": string(actual)})
	}
	return nil
}

// SetNeedsReview flips the manual-review hold on an ambiguous match.
func (r *Repo) SetNeedsReview(ctx context.Context, id uuid.UUID, needsReview bool) error {
	query := `UPDATE companies SET needs_review = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, needsReview)
	if err != nil {
		return fmt.Errorf("set company needs review: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(companyNotFoundMessage)
	}
	return nil
}

// List retrieves companies with optional status/review filters and pagination.
func (r *Repo) List(ctx context.Context, params ListParams) ([]domain.Company, int, error) {
	var searchParam any
	if params.Search != "" {
		searchParam = "%" + params.Search + "%"
	}
	var statusParam any
	if params.Status != nil {
		statusParam = string(*params.Status)
	}
	var reviewParam any
	if params.NeedsReview != nil {
		reviewParam = *params.NeedsReview
	}

	countQuery := `
		SELECT COUNT(*)
		FROM companies
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::boolean IS NULL OR needs_review = $2)
			AND ($3::text IS NULL OR name ILIKE $3 OR domain ILIKE $3)`

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, statusParam, reviewParam, searchParam).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	query := `
		SELECT ` + companyColumns + `
		FROM companies
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::boolean IS NULL OR needs_review = $2)
			AND ($3::text IS NULL OR name ILIKE $3 OR domain ILIKE $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query, statusParam, reviewParam, searchParam, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	items, err := scanCompanies(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repo) currentStatus(ctx context.Context, id uuid.UUID) (domain.Status, error) {
	var status domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM companies WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(companyNotFoundMessage)
		}
		return "", fmt.Errorf("get company status: %w", err)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (domain.Company, error) {
	var c domain.Company
	var rawData []byte

	err := row.Scan(
		&c.ID, &c.Name, &c.Domain, &c.Industry, &c.EmployeeCount, &c.OpenVacancies,
		&c.Location, &c.Description, &c.WebsiteURL, &c.LinkedInURL, &c.HasFunding,
		&c.FundingAmount, &c.Source, &c.SourceURL, &c.Status, &c.NeedsReview,
		&rawData, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Company{}, err
	}

	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &c.RawData); err != nil {
			return domain.Company{}, fmt.Errorf("decode company raw data: %w", err)
		}
	}
	return c, nil
}

func scanCompanies(rows pgx.Rows) ([]domain.Company, error) {
	var results []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return results, nil
}

func marshalRawData(data map[string]map[string]any) ([]byte, error) {
	if data == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode company raw data: %w", err)
	}
	return encoded, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
