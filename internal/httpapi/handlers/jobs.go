package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wanworker/internal/httpkit"
	"wanworker/internal/pkg/errors"
	"wanworker/internal/worker/processor"
)

// JobRequest is the body of POST /jobs and POST /runsync.
type JobRequest struct {
	ID    string         `json:"id,omitempty"`
	Input map[string]any `json:"input"`
}

func decodeJobRequest(w http.ResponseWriter, r *http.Request) (JobRequest, error) {
	var req JobRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return req, errors.WrapWithCode(err, errors.CodeValidation, "api.decode", "invalid json body")
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID != "" {
		if err := processor.ValidateJobID(req.ID); err != nil {
			return req, err
		}
	}
	if req.Input == nil {
		req.Input = map[string]any{}
	}
	return req, nil
}

// PostJob stores a QUEUED job and pushes its ID onto the queue.
func (h *Handler) PostJob(w http.ResponseWriter, r *http.Request) error {
	if h.store == nil || h.queue == nil {
		return errors.New(errors.CodeUnavailable, "job queue is not configured")
	}
	ctx := r.Context()

	req, err := decodeJobRequest(w, r)
	if err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	rec, err := h.store.Create(ctx, req.ID, req.Input)
	if err != nil {
		return err
	}

	if err := h.queue.Push(ctx, rec.ID); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "api.enqueue", "queue push failed").
			WithField("job_id", rec.ID)
	}

	h.log.FromContext(ctx).Info("job queued", "job_id", rec.ID)
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"job": rec})
	return nil
}

// GetJob returns the stored record, including progress and output.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) error {
	if h.store == nil {
		return errors.New(errors.CodeUnavailable, "job store is not configured")
	}

	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		return err
	}

	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"job": rec})
	return nil
}
