package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llmworker/internal/worker"
	"llmworker/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Handle(ctx context.Context, job types.Job, sink worker.Sink) error
	Status() types.StatusResponse
	Ready() bool
}

// NewMux wires the worker routes onto a chi router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Post("/run", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var job types.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rid := middleware.GetReqID(r.Context())
		if job.ID == "" {
			job.ID = rid
		}
		if !svc.Ready() {
			IncrementBackpressure("not_ready")
			writeJSONError(w, http.StatusServiceUnavailable, "engine is loading")
			return
		}

		lvl := requestLogLevel(r)
		start := time.Now()
		if lvl >= LevelInfo {
			logger().Info().Str("path", r.URL.Path).Str("job_id", job.ID).Str("request_id", rid).Msg("run start")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		sink := &streamSink{next: worker.NewNDJSONSink(w, flush), debug: lvl >= LevelDebug, jobID: job.ID}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if jobTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, jobTimeout)
			defer cancel()
		}
		err := svc.Handle(ctx, job, sink)
		if sink.sent > 0 {
			observeRun(sink.outcome(), sink.sent)
		}
		if err != nil && sink.sent == 0 {
			// Nothing streamed yet, so the status line is still ours.
			status := statusFor(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("queue")
			}
			writeJSONError(w, status, err.Error())
		}
		if lvl >= LevelInfo {
			ev := logger().Info()
			if err != nil {
				ev = ev.Err(err)
			}
			ev.Str("job_id", job.ID).Str("request_id", rid).Int("records", sink.sent).
				Str("outcome", sink.outcome()).Dur("dur", time.Since(start)).Msg("run end")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// streamSink counts forwarded records and logs them at debug level.
type streamSink struct {
	next    worker.Sink
	debug   bool
	jobID   string
	sent    int
	lastErr string
}

func (s *streamSink) Send(rec types.Record) error {
	if err := s.next.Send(rec); err != nil {
		return err
	}
	s.sent++
	if rec.IsError() {
		s.lastErr = rec.Error
		if strings.HasPrefix(rec.Error, "TooBusy:") {
			IncrementBackpressure("queue")
		}
	}
	if s.debug {
		logger().Debug().Str("job_id", s.jobID).Str("text", rec.Text).Int("output_tokens", rec.OutputTokens).
			Str("error", rec.Error).Msg("run record")
	}
	return nil
}

func (s *streamSink) outcome() string {
	if s.lastErr != "" {
		if i := strings.IndexByte(s.lastErr, ':'); i > 0 {
			return s.lastErr[:i]
		}
		return "error"
	}
	return "ok"
}
