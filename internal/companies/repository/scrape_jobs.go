package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ScrapeJob is the lifecycle record of one scrape run.
type ScrapeJob struct {
	ID               uuid.UUID
	Source           string
	Status           string
	CompaniesFound   int
	CompaniesCreated int
	CompaniesMerged  int
	CompaniesHeld    int
	Error            *string
	StartedAt        *time.Time
	FinishedAt       *time.Time
	CreatedAt        time.Time
}

const (
	ScrapeJobPending   = "PENDING"
	ScrapeJobRunning   = "RUNNING"
	ScrapeJobCompleted = "COMPLETED"
	ScrapeJobFailed    = "FAILED"
)

const scrapeJobNotFoundMessage = "scrape job not found"

const scrapeJobColumns = `
	id, source, status, companies_found, companies_created, companies_merged,
	companies_held, error, started_at, finished_at, created_at`

// Compile-time check that Repo implements ScrapeJobRepository.
var _ ScrapeJobRepository = (*Repo)(nil)

// CreateJob records a new pending scrape run.
func (r *Repo) CreateJob(ctx context.Context, source string) (ScrapeJob, error) {
	query := `
		INSERT INTO scrape_jobs (source, status)
		VALUES ($1, $2)
		RETURNING ` + scrapeJobColumns

	job, err := scanScrapeJob(r.pool.QueryRow(ctx, query, source, ScrapeJobPending))
	if err != nil {
		return ScrapeJob{}, fmt.Errorf("create scrape job: %w", err)
	}
	return job, nil
}

// StartJob marks a pending job as running.
func (r *Repo) StartJob(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE scrape_jobs SET status = $2, started_at = now()
		WHERE id = $1 AND status = $3`

	result, err := r.pool.Exec(ctx, query, id, ScrapeJobRunning, ScrapeJobPending)
	if err != nil {
		return fmt.Errorf("start scrape job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.InvalidTransition("scrape job is not pending")
	}
	return nil
}

// FinishJob records the run's counters and marks it completed.
func (r *Repo) FinishJob(ctx context.Context, id uuid.UUID, found, created, merged, held int) error {
	query := `
		UPDATE scrape_jobs SET
			status = $2,
			companies_found = $3,
			companies_created = $4,
			companies_merged = $5,
			companies_held = $6,
			finished_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, ScrapeJobCompleted, found, created, merged, held)
	if err != nil {
		return fmt.Errorf("finish scrape job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(scrapeJobNotFoundMessage)
	}
	return nil
}

// FailJob marks the run failed with a reason.
func (r *Repo) FailJob(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE scrape_jobs SET status = $2, error = $3, finished_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, ScrapeJobFailed, reason)
	if err != nil {
		return fmt.Errorf("fail scrape job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(scrapeJobNotFoundMessage)
	}
	return nil
}

// GetJob retrieves a scrape job by ID.
func (r *Repo) GetJob(ctx context.Context, id uuid.UUID) (ScrapeJob, error) {
	query := `SELECT ` + scrapeJobColumns + ` FROM scrape_jobs WHERE id = $1`

	job, err := scanScrapeJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScrapeJob{}, apperr.NotFound(scrapeJobNotFoundMessage)
		}
		return ScrapeJob{}, fmt.Errorf("get scrape job: %w", err)
	}
	return job, nil
}

// ListJobs retrieves the most recent scrape jobs.
func (r *Repo) ListJobs(ctx context.Context, limit int) ([]ScrapeJob, error) {
	query := `SELECT ` + scrapeJobColumns + ` FROM scrape_jobs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list scrape jobs: %w", err)
	}
	defer rows.Close()

	var results []ScrapeJob
	for rows.Next() {
		job, err := scanScrapeJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scrape job: %w", err)
		}
		results = append(results, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape jobs: %w", err)
	}
	return results, nil
}

func scanScrapeJob(row rowScanner) (ScrapeJob, error) {
	var job ScrapeJob
	err := row.Scan(
		&job.ID, &job.Source, &job.Status, &job.CompaniesFound, &job.CompaniesCreated,
		&job.CompaniesMerged, &job.CompaniesHeld, &job.Error, &job.StartedAt,
		&job.FinishedAt, &job.CreatedAt,
	)
	return job, err
}
