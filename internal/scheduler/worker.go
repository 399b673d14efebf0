package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	companiessvc "leadmachine_backend/internal/companies/service"
	leadssvc "leadmachine_backend/internal/leads/service"
	outreachsvc "leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/platform/config"
	"leadmachine_backend/platform/logger"
)

// Worker runs the background task handlers: observation deduplication, lead
// scoring and scheduled email sends.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	companies *companiessvc.Service
	leads     *leadssvc.Service
	outreach  *outreachsvc.Service
	sends     outreachsvc.SendScheduler
	log       *logger.Logger
}

// NewWorker creates the asynq server and registers the task handlers. The
// sends scheduler is used to re-queue deferred email tasks.
func NewWorker(
	cfg config.SchedulerConfig,
	companies *companiessvc.Service,
	leads *leadssvc.Service,
	outreach *outreachsvc.Service,
	sends outreachsvc.SendScheduler,
	log *logger.Logger,
) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		companies: companies,
		leads:     leads,
		outreach:  outreach,
		sends:     sends,
		log:       log,
	}

	mux.HandleFunc(TaskDedupBatch, w.handleDedupBatch)
	mux.HandleFunc(TaskScoreLead, w.handleScoreLead)
	mux.HandleFunc(TaskSendEmail, w.handleSendEmail)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("task worker stopped", "error", err)
	}
}

func (w *Worker) handleDedupBatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDedupBatchPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	if err := w.companies.ProcessBatch(ctx, jobID, payload.Observations); err != nil {
		w.log.TaskEvent(TaskDedupBatch, jobID.String(), false, err.Error())
		return err
	}
	w.log.TaskEvent(TaskDedupBatch, jobID.String(), true, "")
	return nil
}

func (w *Worker) handleScoreLead(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreLeadPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	_, err = w.leads.ScoreLead(ctx, leadID)
	return err
}

// handleSendEmail processes one scheduled send. A non-nil deferral time
// means the send was pushed out (outside the business window, or today's
// cap is spent); the task is re-queued for that time and this run succeeds.
func (w *Worker) handleSendEmail(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSendEmailPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	emailID, err := uuid.Parse(payload.EmailID)
	if err != nil {
		return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
	}

	deferredTo, err := w.outreach.ProcessScheduledEmail(ctx, emailID)
	if err != nil {
		return err
	}
	if deferredTo != nil {
		w.log.TaskEvent(TaskSendEmail, emailID.String(), false, "deferred until "+deferredTo.Format(time.RFC3339))
		return w.sends.ScheduleEmailSend(ctx, emailID, *deferredTo)
	}
	return nil
}
