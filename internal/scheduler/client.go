package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	companiesdomain "leadmachine_backend/internal/companies/domain"
	companiessvc "leadmachine_backend/internal/companies/service"
	leadssvc "leadmachine_backend/internal/leads/service"
	outreachsvc "leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/platform/config"
)

// Client enqueues background tasks. It satisfies the enqueuer ports of the
// companies, leads and outreach services so those modules stay unaware of
// the queue implementation.
type Client struct {
	client *asynq.Client
}

var (
	_ companiessvc.BatchEnqueuer = (*Client)(nil)
	_ leadssvc.ScoreEnqueuer     = (*Client)(nil)
	_ outreachsvc.SendScheduler  = (*Client)(nil)
)

// NewClient creates the asynq client from the Redis URL.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDedupBatch queues a scraped observation batch for deduplication.
func (c *Client) EnqueueDedupBatch(ctx context.Context, jobID uuid.UUID, observations []companiesdomain.Observation) error {
	task, err := NewDedupBatchTask(DedupBatchPayload{
		JobID:        jobID.String(),
		Observations: observations,
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	return err
}

// EnqueueLeadScore queues one lead for scoring.
func (c *Client) EnqueueLeadScore(ctx context.Context, leadID uuid.UUID) error {
	task, err := NewScoreLeadTask(ScoreLeadPayload{LeadID: leadID.String()})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.MaxRetry(5))
	return err
}

// ScheduleEmailSend queues a send task to fire at the planned time. The send
// handler re-checks the window and the daily cap when it actually runs, so a
// task firing late is safe.
func (c *Client) ScheduleEmailSend(ctx context.Context, emailID uuid.UUID, at time.Time) error {
	task, err := NewSendEmailTask(SendEmailPayload{EmailID: emailID.String()})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(at), asynq.MaxRetry(10))
	return err
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
