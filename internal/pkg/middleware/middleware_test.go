package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wanworker/internal/pkg/errors"
	"wanworker/internal/pkg/logger"
)

func newBufferLogger(level string) (*logger.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logger.New(logger.Config{Level: level, Format: "json", Output: &buf}), &buf
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(logger.RequestIDKey).(string)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates new request ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

		reqID := rec.Header().Get(RequestIDHeader)
		if len(reqID) != 36 {
			t.Errorf("expected a UUID request ID, got %q", reqID)
		}
		if seen != reqID {
			t.Errorf("context request ID %q does not match header %q", seen, reqID)
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set(RequestIDHeader, "existing-id-123")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "existing-id-123" {
			t.Errorf("expected preserved request ID, got %s", got)
		}
	})
}

func TestLogging(t *testing.T) {
	log, buf := newBufferLogger("info")

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/runsync", nil))

	out := buf.String()
	for _, want := range []string{"request completed", "POST", "/runsync", "200", "duration_ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log, got: %s", want, out)
		}
	}
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		expectedLevel string
	}{
		{"2xx logs info", 200, "INFO"},
		{"3xx logs info", 302, "INFO"},
		{"4xx logs warn", 404, "WARN"},
		{"5xx logs error", 503, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger("info")
			handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/jobs/x", nil))

			if !strings.Contains(buf.String(), `"level":"`+tt.expectedLevel+`"`) {
				t.Errorf("expected level %s, got: %s", tt.expectedLevel, buf.String())
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	log, buf := newBufferLogger("info")

	handler := Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected INTERNAL_ERROR in body, got: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") || !strings.Contains(buf.String(), "test panic") {
		t.Errorf("expected panic to be logged, got: %s", buf.String())
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status and size", func(t *testing.T) {
		rw := wrapResponseWriter(httptest.NewRecorder())
		rw.WriteHeader(http.StatusCreated)
		_, _ = rw.Write([]byte("hello world"))

		if rw.status != http.StatusCreated || rw.size != 11 {
			t.Errorf("status=%d size=%d", rw.status, rw.size)
		}
	})

	t.Run("defaults to 200", func(t *testing.T) {
		rw := wrapResponseWriter(httptest.NewRecorder())
		_, _ = rw.Write([]byte("hello"))

		if rw.status != http.StatusOK {
			t.Errorf("expected default status 200, got %d", rw.status)
		}
	})

	t.Run("only writes header once", func(t *testing.T) {
		rw := wrapResponseWriter(httptest.NewRecorder())
		rw.WriteHeader(http.StatusAccepted)
		rw.WriteHeader(http.StatusOK)

		if rw.status != http.StatusAccepted {
			t.Errorf("expected status 202, got %d", rw.status)
		}
	})
}

func TestWrapHandler(t *testing.T) {
	log, buf := newBufferLogger("info")

	tests := []struct {
		name   string
		err    error
		status int
		body   string
		level  string
	}{
		{"success", nil, 200, "ok", ""},
		{"not found", errors.NotFound("job", "123"), 404, "NOT_FOUND", "WARN"},
		{"unavailable", errors.New(errors.CodeUnavailable, "job store not configured"), 503, "job store not configured", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
				if tt.err != nil {
					return tt.err
				}
				_, _ = w.Write([]byte("ok"))
				return nil
			})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/jobs/123", nil))

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("expected %q in body, got: %s", tt.body, rec.Body.String())
			}
			if tt.level != "" && !strings.Contains(buf.String(), `"level":"`+tt.level+`"`) {
				t.Errorf("expected %s log, got: %s", tt.level, buf.String())
			}
		})
	}
}
