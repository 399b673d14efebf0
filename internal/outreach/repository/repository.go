package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadmachine_backend/internal/outreach/domain"
	"leadmachine_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const emailNotFoundMessage = "email not found"

const emailColumns = `
	id, lead_id, step, subject, body, status, tracking_id, scheduled_at,
	sent_at, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new outreach repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves an email by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByTrackingID retrieves an email by its opaque tracking token.
func (r *Repo) GetByTrackingID(ctx context.Context, trackingID uuid.UUID) (domain.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE tracking_id = $1`
	return r.getOne(ctx, query, trackingID)
}

// CreateSequence inserts a lead's full message sequence in one transaction,
// so a lead never ends up with half a sequence.
func (r *Repo) CreateSequence(ctx context.Context, emails []domain.Email) ([]domain.Email, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin sequence transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO emails (lead_id, step, subject, body, status, tracking_id, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + emailColumns

	created := make([]domain.Email, 0, len(emails))
	for _, email := range emails {
		row, err := scanEmail(tx.QueryRow(ctx, query,
			email.LeadID, email.Step, email.Subject, email.Body,
			email.Status, email.TrackingID, email.ScheduledAt,
		))
		if err != nil {
			if isUniqueViolation(err) {
				return nil, apperr.Conflict("sequence already exists for this lead")
			}
			return nil, fmt.Errorf("insert sequence email: %w", err)
		}
		created = append(created, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit sequence: %w", err)
	}
	return created, nil
}

// ListByLead retrieves a lead's sequence in step order.
func (r *Repo) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE lead_id = $1 ORDER BY step`

	rows, err := r.pool.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("list emails by lead: %w", err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

// ListDue retrieves scheduled emails whose send time has passed, oldest
// first. Used by the reconciliation sweep for tasks the queue lost.
func (r *Repo) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.Email, error) {
	query := `
		SELECT ` + emailColumns + `
		FROM emails
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.StatusScheduled, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due emails: %w", err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

// ClaimForSending swaps SCHEDULED for SENDING and returns the claimed row.
// Losing the swap returns InvalidTransition: another worker owns the email,
// or it was cancelled.
func (r *Repo) ClaimForSending(ctx context.Context, id uuid.UUID) (domain.Email, error) {
	query := `
		UPDATE emails SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING ` + emailColumns

	email, err := scanEmail(r.pool.QueryRow(ctx, query, id, domain.StatusSending, domain.StatusScheduled))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			actual, getErr := r.currentStatus(ctx, id)
			if getErr != nil {
				return domain.Email{}, getErr
			}
			return domain.Email{}, apperr.InvalidTransition("email is not claimable").
				WithDetails(map[string]string{"actual": string(actual)})
		}
		return domain.Email{}, fmt.Errorf("claim email: %w", err)
	}
	return email, nil
}

// ReleaseClaim rolls a SENDING claim back to SCHEDULED after an aborted
// delivery attempt. This is the claim's undo, not a lifecycle transition.
func (r *Repo) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE emails SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`

	result, err := r.pool.Exec(ctx, query, id, domain.StatusScheduled, domain.StatusSending)
	if err != nil {
		return fmt.Errorf("release email claim: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.InvalidTransition("email is not claimed")
	}
	return nil
}

// ReleaseStaleClaims returns SENDING rows whose claim predates the cutoff to
// SCHEDULED. A claim that old means its worker died mid-send; the age gate
// keeps live claims untouched.
func (r *Repo) ReleaseStaleClaims(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		UPDATE emails SET status = $1, updated_at = now()
		WHERE status = $2 AND updated_at <= $3`

	result, err := r.pool.Exec(ctx, query, domain.StatusScheduled, domain.StatusSending, olderThan)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// MarkSent finalizes a claimed email after the mail server accepted it.
func (r *Repo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE emails SET status = $2, sent_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`

	result, err := r.pool.Exec(ctx, query, id, domain.StatusSent, sentAt, domain.StatusSending)
	if err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.InvalidTransition("email is not in delivery")
	}
	return nil
}

// MarkBounced records a delivery failure, either during the send attempt or
// from a later asynchronous bounce notification.
func (r *Repo) MarkBounced(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE emails SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)`

	result, err := r.pool.Exec(ctx, query, id, domain.StatusBounced,
		[]string{string(domain.StatusSending), string(domain.StatusSent)})
	if err != nil {
		return fmt.Errorf("mark email bounced: %w", err)
	}
	if result.RowsAffected() == 0 {
		actual, getErr := r.currentStatus(ctx, id)
		if getErr != nil {
			return getErr
		}
		return apperr.InvalidTransition("email cannot bounce from " + string(actual))
	}
	return nil
}

// Reschedule moves a still-scheduled email to a new send time.
func (r *Repo) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE emails SET scheduled_at = $2, updated_at = now()
		WHERE id = $1 AND status = $3`

	result, err := r.pool.Exec(ctx, query, id, at, domain.StatusScheduled)
	if err != nil {
		return fmt.Errorf("reschedule email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.InvalidTransition("email is no longer scheduled")
	}
	return nil
}

// CancelScheduledByLead cancels every still-scheduled email of a lead and
// returns how many were cancelled. Claimed or sent emails are untouched.
func (r *Repo) CancelScheduledByLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	query := `
		UPDATE emails SET status = $2, updated_at = now()
		WHERE lead_id = $1 AND status = $3`

	result, err := r.pool.Exec(ctx, query, leadID, domain.StatusCancelled, domain.StatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled emails: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// HasActiveSequence reports whether the lead has any email still scheduled
// or in delivery.
func (r *Repo) HasActiveSequence(ctx context.Context, leadID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM emails WHERE lead_id = $1 AND status = ANY($2))`

	var exists bool
	err := r.pool.QueryRow(ctx, query, leadID,
		[]string{string(domain.StatusScheduled), string(domain.StatusSending)}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active sequence: %w", err)
	}
	return exists, nil
}

// CountByStatus counts emails in one status, for the queue status view.
func (r *Repo) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM emails WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count emails by status: %w", err)
	}
	return count, nil
}

func (r *Repo) getOne(ctx context.Context, query string, arg any) (domain.Email, error) {
	email, err := scanEmail(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Email{}, apperr.NotFound(emailNotFoundMessage)
		}
		return domain.Email{}, fmt.Errorf("get email: %w", err)
	}
	return email, nil
}

func (r *Repo) currentStatus(ctx context.Context, id uuid.UUID) (domain.Status, error) {
	var status domain.Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM emails WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(emailNotFoundMessage)
		}
		return "", fmt.Errorf("get email status: %w", err)
	}
	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row rowScanner) (domain.Email, error) {
	var email domain.Email
	err := row.Scan(
		&email.ID, &email.LeadID, &email.Step, &email.Subject, &email.Body,
		&email.Status, &email.TrackingID, &email.ScheduledAt, &email.SentAt,
		&email.CreatedAt, &email.UpdatedAt,
	)
	return email, err
}

func scanEmails(rows pgx.Rows) ([]domain.Email, error) {
	var results []domain.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		results = append(results, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emails: %w", err)
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
