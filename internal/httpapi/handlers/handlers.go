// Package handlers implements the HTTP endpoints of the API.
package handlers

import (
	"context"

	"wanworker/internal/jobstore"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/worker/processor"
)

// JobStore is implemented by *jobstore.Store.
type JobStore interface {
	Create(ctx context.Context, id string, input map[string]any) (jobstore.Record, error)
	Get(ctx context.Context, id string) (jobstore.Record, error)
	Ping(ctx context.Context) error
}

// JobQueue is implemented by *queue.RedisQueue.
type JobQueue interface {
	Push(ctx context.Context, jobID string) error
	Ping(ctx context.Context) error
}

// Runner is implemented by *processor.Processor.
type Runner interface {
	Handle(ctx context.Context, job processor.Job) processor.Result
}

type Deps struct {
	// Store and Queue are optional; without them only /runsync and
	// /health are served.
	Store  JobStore
	Queue  JobQueue
	Runner Runner
	// StorageProvider names the delivery backend for /health. Empty means
	// inline delivery.
	StorageProvider string
	Log             *logger.Logger
}

type Handler struct {
	store   JobStore
	queue   JobQueue
	runner  Runner
	storage string
	log     *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		store:   d.Store,
		queue:   d.Queue,
		runner:  d.Runner,
		storage: d.StorageProvider,
		log:     log.WithComponent("api"),
	}
}

// Log is the handler's logger, for the router's error wrapping.
func (h *Handler) Log() *logger.Logger {
	return h.log
}
