package jobstore

import (
	"context"

	"wanworker/internal/pkg/logger"
)

// Reporter writes progress into the job row. Failures are logged and
// dropped; progress is advisory.
type Reporter struct {
	store *Store
	log   *logger.Logger
}

func NewReporter(store *Store, log *logger.Logger) *Reporter {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Reporter{store: store, log: log.WithComponent("jobstore")}
}

func (r *Reporter) Progress(ctx context.Context, jobID string, pct int, msg string) {
	if err := r.store.SetProgress(ctx, jobID, pct, msg); err != nil {
		r.log.FromContext(ctx).WithJobID(jobID).Warn("progress update failed", "pct", pct, "error", err.Error())
	}
}
