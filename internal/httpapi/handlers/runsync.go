package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"wanworker/internal/httpkit"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/worker/processor"
)

// RunSync runs a job inline and returns its output. A failed job is still
// a 200; only transport problems produce an error envelope.
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) error {
	if h.runner == nil {
		return errors.New(errors.CodeUnavailable, "job runner is not configured")
	}

	req, err := decodeJobRequest(w, r)
	if err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := logger.ContextWithJobID(r.Context(), req.ID)
	res := h.runner.Handle(ctx, processor.Job{ID: req.ID, Input: req.Input})

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"id":     req.ID,
		"status": res.Status,
		"output": res.ToMap(),
	})
	return nil
}
