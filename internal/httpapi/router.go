// Package httpapi wires the API routes.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"wanworker/internal/httpapi/handlers"
	"wanworker/internal/pkg/logger"
	"wanworker/internal/pkg/middleware"
)

func NewRouter(d handlers.Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	d.Log = log

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	h := handlers.New(d)
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(h.Log(), fn)
	}

	r.Get("/health", h.Health)

	r.Post("/runsync", wrap(h.RunSync))

	r.Post("/jobs", wrap(h.PostJob))
	r.Get("/jobs/{jobId}", wrap(h.GetJob))

	return r
}
