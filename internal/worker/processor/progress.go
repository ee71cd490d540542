package processor

import (
	"context"

	"wanworker/internal/pkg/logger"
)

// Progress milestones.
const (
	PctStarting   = 2
	PctDecoding   = 6
	PctPreparing  = 12
	PctGenerating = 25
	PctDelivering = 85
	PctFinishing  = 98

	MsgStarting   = "Starting job"
	MsgDecoding   = "Decoding image"
	MsgPreparing  = "Loading / preparing models"
	MsgGenerating = "Generating video… (this can take minutes)"
	MsgUploading  = "Uploading result"
	MsgEncoding   = "Encoding result"
	MsgFinishing  = "Finishing"
)

// ProgressReporter receives advisory progress updates. Implementations
// deal with their own failures; nothing is returned to the pipeline.
type ProgressReporter interface {
	Progress(ctx context.Context, jobID string, pct int, msg string)
}

// ReporterFunc adapts a function to ProgressReporter.
type ReporterFunc func(ctx context.Context, jobID string, pct int, msg string)

func (f ReporterFunc) Progress(ctx context.Context, jobID string, pct int, msg string) {
	f(ctx, jobID, pct, msg)
}

// LogReporter writes each update as a log line.
type LogReporter struct {
	log *logger.Logger
}

func NewLogReporter(log *logger.Logger) *LogReporter {
	if log == nil {
		log = logger.NewDefault()
	}
	return &LogReporter{log: log.WithComponent("progress")}
}

func (r *LogReporter) Progress(ctx context.Context, jobID string, pct int, msg string) {
	r.log.FromContext(ctx).WithJobID(jobID).Info("progress", "pct", pct, "msg", msg)
}

// MultiReporter fans out to every non-nil reporter in order.
type MultiReporter []ProgressReporter

func (m MultiReporter) Progress(ctx context.Context, jobID string, pct int, msg string) {
	for _, r := range m {
		if r != nil {
			r.Progress(ctx, jobID, pct, msg)
		}
	}
}
