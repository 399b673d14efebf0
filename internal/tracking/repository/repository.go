package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types stored in the tracking log.
const (
	EventOpen  = "OPEN"
	EventClick = "CLICK"
)

// Event is one recorded engagement signal.
type Event struct {
	ID          uuid.UUID
	EmailID     uuid.UUID
	LeadID      uuid.UUID
	EventType   string
	Fingerprint string
	URL         *string
	IP          string
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// EngagementStats summarizes a lead's recorded signals.
type EngagementStats struct {
	Opens       int
	Clicks      int
	LastOpenAt  *time.Time
	LastClickAt *time.Time
}

// OverallStats aggregates signals across the whole pipeline.
type OverallStats struct {
	TotalOpens    int
	TotalClicks   int
	EmailsOpened  int
	EmailsClicked int
}

// DailyCount is one day's worth of signals.
type DailyCount struct {
	Day    time.Time
	Opens  int
	Clicks int
}

// UnmatchedReply is an inbound message no lead could be resolved for.
type UnmatchedReply struct {
	ID         uuid.UUID
	FromEmail  string
	Subject    *string
	ReceivedAt time.Time
	CreatedAt  time.Time
}

// Repository defines data access for tracking events.
type Repository interface {
	InsertEventIfAbsent(ctx context.Context, event Event) (bool, error)
	StatsByLead(ctx context.Context, leadID uuid.UUID) (EngagementStats, error)
	StatsOverall(ctx context.Context) (OverallStats, error)
	DailySeries(ctx context.Context, since time.Time) ([]DailyCount, error)
	ListByEmail(ctx context.Context, emailID uuid.UUID) ([]Event, error)
	SaveUnmatchedReply(ctx context.Context, fromEmail string, subject *string, receivedAt time.Time) error
	ListUnmatchedReplies(ctx context.Context, limit int) ([]UnmatchedReply, error)
}

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new tracking repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// InsertEventIfAbsent records a signal unless its fingerprint was already
// seen for this email and event type. Returns whether a row was written.
func (r *Repo) InsertEventIfAbsent(ctx context.Context, event Event) (bool, error) {
	query := `
		INSERT INTO tracking_events (email_id, lead_id, event_type, fingerprint, url, ip, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email_id, event_type, fingerprint) DO NOTHING`

	result, err := r.pool.Exec(ctx, query,
		event.EmailID, event.LeadID, event.EventType, event.Fingerprint,
		event.URL, event.IP, event.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert tracking event: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// StatsByLead aggregates a lead's recorded signals.
func (r *Repo) StatsByLead(ctx context.Context, leadID uuid.UUID) (EngagementStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE event_type = $2),
			COUNT(*) FILTER (WHERE event_type = $3),
			MAX(occurred_at) FILTER (WHERE event_type = $2),
			MAX(occurred_at) FILTER (WHERE event_type = $3)
		FROM tracking_events
		WHERE lead_id = $1`

	var stats EngagementStats
	err := r.pool.QueryRow(ctx, query, leadID, EventOpen, EventClick).Scan(
		&stats.Opens, &stats.Clicks, &stats.LastOpenAt, &stats.LastClickAt,
	)
	if err != nil {
		return EngagementStats{}, fmt.Errorf("aggregate tracking stats: %w", err)
	}
	return stats, nil
}

// StatsOverall aggregates signals across all emails.
func (r *Repo) StatsOverall(ctx context.Context) (OverallStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE event_type = $1),
			COUNT(*) FILTER (WHERE event_type = $2),
			COUNT(DISTINCT email_id) FILTER (WHERE event_type = $1),
			COUNT(DISTINCT email_id) FILTER (WHERE event_type = $2)
		FROM tracking_events`

	var stats OverallStats
	err := r.pool.QueryRow(ctx, query, EventOpen, EventClick).Scan(
		&stats.TotalOpens, &stats.TotalClicks, &stats.EmailsOpened, &stats.EmailsClicked,
	)
	if err != nil {
		return OverallStats{}, fmt.Errorf("aggregate overall stats: %w", err)
	}
	return stats, nil
}

// DailySeries returns per-day signal counts from since onward, oldest first.
func (r *Repo) DailySeries(ctx context.Context, since time.Time) ([]DailyCount, error) {
	query := `
		SELECT
			date_trunc('day', occurred_at) AS day,
			COUNT(*) FILTER (WHERE event_type = $2),
			COUNT(*) FILTER (WHERE event_type = $3)
		FROM tracking_events
		WHERE occurred_at >= $1
		GROUP BY day
		ORDER BY day`

	rows, err := r.pool.Query(ctx, query, since, EventOpen, EventClick)
	if err != nil {
		return nil, fmt.Errorf("daily tracking series: %w", err)
	}
	defer rows.Close()

	var results []DailyCount
	for rows.Next() {
		var count DailyCount
		if err := rows.Scan(&count.Day, &count.Opens, &count.Clicks); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		results = append(results, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily counts: %w", err)
	}
	return results, nil
}

// ListByEmail retrieves the signals recorded for one email, newest first.
func (r *Repo) ListByEmail(ctx context.Context, emailID uuid.UUID) ([]Event, error) {
	query := `
		SELECT id, email_id, lead_id, event_type, fingerprint, url, ip, occurred_at, created_at
		FROM tracking_events
		WHERE email_id = $1
		ORDER BY occurred_at DESC`

	rows, err := r.pool.Query(ctx, query, emailID)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	defer rows.Close()

	var results []Event
	for rows.Next() {
		var event Event
		err := rows.Scan(
			&event.ID, &event.EmailID, &event.LeadID, &event.EventType,
			&event.Fingerprint, &event.URL, &event.IP, &event.OccurredAt,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking events: %w", err)
	}
	return results, nil
}

// SaveUnmatchedReply stores an inbound message that matched no lead, for
// manual triage.
func (r *Repo) SaveUnmatchedReply(ctx context.Context, fromEmail string, subject *string, receivedAt time.Time) error {
	query := `
		INSERT INTO unmatched_replies (from_email, subject, received_at)
		VALUES ($1, $2, $3)`

	if _, err := r.pool.Exec(ctx, query, fromEmail, subject, receivedAt); err != nil {
		return fmt.Errorf("save unmatched reply: %w", err)
	}
	return nil
}

// ListUnmatchedReplies retrieves the newest unmatched inbound messages.
func (r *Repo) ListUnmatchedReplies(ctx context.Context, limit int) ([]UnmatchedReply, error) {
	query := `
		SELECT id, from_email, subject, received_at, created_at
		FROM unmatched_replies
		ORDER BY received_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmatched replies: %w", err)
	}
	defer rows.Close()

	var results []UnmatchedReply
	for rows.Next() {
		var reply UnmatchedReply
		if err := rows.Scan(&reply.ID, &reply.FromEmail, &reply.Subject, &reply.ReceivedAt, &reply.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unmatched reply: %w", err)
		}
		results = append(results, reply)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unmatched replies: %w", err)
	}
	return results, nil
}
