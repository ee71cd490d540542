package handlers

import (
	"context"
	"net/http"
	"time"

	"wanworker/internal/httpkit"
)

const healthCheckTimeout = 5 * time.Second

// Health reports liveness. With ?deep=true it also pings the job store
// and the queue.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "wan-api",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := map[string]map[string]any{
			"postgres": h.checkPing(ctx, h.store),
			"redis":    h.checkPing(ctx, h.queue),
			"storage":  h.checkStorage(),
		}
		health["checks"] = checks

		for _, c := range checks {
			if c["status"] == "error" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) checkPing(ctx context.Context, p pinger) map[string]any {
	if p == nil {
		return map[string]any{"status": "disabled"}
	}

	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := p.Ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}

func (h *Handler) checkStorage() map[string]any {
	provider := h.storage
	if provider == "" {
		provider = "inline"
	}
	return map[string]any{"status": "ok", "provider": provider}
}
