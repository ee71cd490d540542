package worker

import (
	"context"
	"time"

	"wanworker/internal/jobstore"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/worker/processor"
)

// JobSource hands out job IDs. Pop may return "" when nothing is waiting.
type JobSource interface {
	Pop(ctx context.Context) (string, error)
}

type JobStore interface {
	Get(ctx context.Context, id string) (jobstore.Record, error)
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id string, res processor.Result) error
}

// JobHandler is implemented by *processor.Processor.
type JobHandler interface {
	Handle(ctx context.Context, job processor.Job) processor.Result
}

type Deps struct {
	Queue   JobSource
	Store   JobStore
	Handler JobHandler
	Log     *logger.Logger
	// RetryDelay is the pause after a queue error. Defaults to 1s.
	RetryDelay time.Duration
}

// Run processes queued jobs one at a time until ctx is canceled. A job
// that has started is always finished and recorded, even after cancel.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	retryDelay := d.RetryDelay
	if retryDelay == 0 {
		retryDelay = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		jobID, err := d.Queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying", "error", err.Error())
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
			}
			continue
		}

		if jobID == "" {
			continue
		}

		processJob(context.WithoutCancel(ctx), d, log, jobID)
	}
}

func processJob(ctx context.Context, d Deps, log *logger.Logger, jobID string) {
	ctx = logger.ContextWithJobID(ctx, jobID)
	jobLog := log.WithJobID(jobID)

	rec, err := d.Store.Get(ctx, jobID)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			jobLog.Warn("queued job has no record, skipping")
		} else {
			jobLog.Error("failed to load job", "error", err.Error())
		}
		return
	}

	if rec.Status == jobstore.StatusCompleted || rec.Status == jobstore.StatusError {
		jobLog.Warn("job already finished, skipping", "status", string(rec.Status))
		return
	}

	if err := d.Store.MarkRunning(ctx, jobID); err != nil {
		jobLog.Error("failed to mark job running", "error", err.Error())
		return
	}

	jobLog.Info("processing job")
	start := time.Now()

	res := d.Handler.Handle(ctx, processor.Job{ID: jobID, Input: rec.Input})

	if err := d.Store.Finish(ctx, jobID, res); err != nil {
		jobLog.Error("failed to save job output", "error", err.Error())
	}

	if res.Status == processor.StatusCompleted {
		jobLog.Info("job completed", "duration_ms", time.Since(start).Milliseconds())
	} else {
		jobLog.Warn("job finished with error",
			"error", res.Error,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
