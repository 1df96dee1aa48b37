package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"llmworker/internal/worker"
	"llmworker/pkg/types"
)

// WorkerService adapts a worker.Handler to Service. It reports not ready
// until Attach is called, so the listener can come up while the model loads.
type WorkerService struct {
	Engine  string
	Model   string
	Adapter string

	started time.Time
	handler atomic.Pointer[worker.Handler]
	loadErr atomic.Value // string
}

// NewWorkerService returns an unattached service.
func NewWorkerService(engineKind, model, adapter string) *WorkerService {
	return &WorkerService{Engine: engineKind, Model: model, Adapter: adapter, started: time.Now()}
}

// Attach installs the handler and marks the service ready.
func (s *WorkerService) Attach(h *worker.Handler) { s.handler.Store(h) }

// LoadFailed records a startup error surfaced through /status.
func (s *WorkerService) LoadFailed(err error) {
	if err != nil {
		s.loadErr.Store(err.Error())
	}
}

func (s *WorkerService) Ready() bool { return s.handler.Load() != nil }

func (s *WorkerService) Handle(ctx context.Context, job types.Job, sink worker.Sink) error {
	h := s.handler.Load()
	if h == nil {
		return notReadyError{}
	}
	return h.Handle(ctx, job, sink)
}

func (s *WorkerService) Status() types.StatusResponse {
	st := types.StatusResponse{
		Engine:        s.Engine,
		Model:         s.Model,
		Adapter:       s.Adapter,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if v, ok := s.loadErr.Load().(string); ok {
		st.LastError = v
	}
	h := s.handler.Load()
	if h == nil {
		return st
	}
	stats := h.Stats()
	st.Ready = true
	st.QueueLen = stats.Queued
	st.Inflight = stats.Inflight
	st.JobsCompleted = stats.Completed
	st.JobsFailed = stats.Failed
	if stats.LastError != "" {
		st.LastError = stats.LastError
	}
	return st
}

type notReadyError struct{}

func (notReadyError) Error() string   { return "engine is loading" }
func (notReadyError) StatusCode() int { return http.StatusServiceUnavailable }
