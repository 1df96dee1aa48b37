package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llmworker/internal/engine"
	"llmworker/pkg/types"
)

// Defaults applied when corresponding Options fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// State is a job's position in the handler state machine.
type State string

const (
	StateValidating State = "validating"
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Sink receives records in order. A Send error means the transport is gone;
// the handler stops generating and returns it.
type Sink interface {
	Send(types.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(types.Record) error

func (f SinkFunc) Send(r types.Record) error { return f(r) }

// Reporter forwards engine failures to an external error tracker.
type Reporter interface {
	Report(err error, tags map[string]string)
}

type nopReporter struct{}

func (nopReporter) Report(error, map[string]string) {}

// Options tunes a Handler.
type Options struct {
	Log           zerolog.Logger
	Publisher     EventPublisher
	Reporter      Reporter
	MaxQueueDepth int
	MaxWait       time.Duration
}

// Handler is the composition root for one engine handle. Jobs submitted to
// the same Handler run one at a time.
type Handler struct {
	engine    engine.Engine
	log       zerolog.Logger
	publisher EventPublisher
	reporter  Reporter
	slot      *admission

	mu        sync.Mutex
	completed uint64
	failed    uint64
	lastErr   string
}

// NewHandler wires a Handler around eng.
func NewHandler(eng engine.Engine, o Options) *Handler {
	if o.Publisher == nil {
		o.Publisher = noopPublisher{}
	}
	if o.Reporter == nil {
		o.Reporter = nopReporter{}
	}
	if o.MaxQueueDepth <= 0 {
		o.MaxQueueDepth = defaultMaxQueueDepth
	}
	if o.MaxWait <= 0 {
		o.MaxWait = defaultMaxWait
	}
	return &Handler{
		engine:    eng,
		log:       o.Log,
		publisher: o.Publisher,
		reporter:  o.Reporter,
		slot:      newAdmission(o.MaxQueueDepth, o.MaxWait),
	}
}

// job tracks one Handle call.
type job struct {
	id      string
	state   State
	log     zerolog.Logger
	sink    Sink
	errSent bool
}

// Handle validates job, generates, and forwards records to sink. The stream
// ends either after the last chunk or after exactly one error record. The
// returned error is non-nil only when sink itself failed.
func (h *Handler) Handle(ctx context.Context, in types.Job, sink Sink) (err error) {
	j := &job{id: in.ID, log: h.log.With().Str("job_id", in.ID).Logger(), sink: sink}
	h.enter(j, StateValidating, nil)

	defer func() {
		if p := recover(); p != nil {
			perr := fmt.Errorf("panic: %v", p)
			err = h.fail(j, perr, debug.Stack())
		}
	}()

	validated, verr := Validate(in.Input)
	if verr == nil {
		var s Settings
		s, verr = Normalize(validated)
		if verr == nil {
			return h.generate(ctx, j, s)
		}
	}
	return h.fail(j, verr, nil)
}

func (h *Handler) generate(ctx context.Context, j *job, s Settings) error {
	release, err := h.slot.acquire(ctx)
	if err != nil {
		return h.fail(j, err, nil)
	}
	defer release()

	start := time.Now()
	jobsInflight.Inc()
	defer func() {
		jobsInflight.Dec()
		jobDuration.Observe(time.Since(start).Seconds())
	}()
	h.enter(j, StateGenerating, map[string]any{"max_new_tokens": s.MaxNewTokens})

	d := &Driver{Engine: h.engine, Log: j.log}
	gen := d.Drive(ctx, s)
	first := true
	for c, err := range gen.All() {
		if err != nil {
			var stack []byte
			if IsEngine(err) {
				stack = debug.Stack()
			}
			return h.fail(j, err, stack)
		}
		if first {
			tokensTotal.WithLabelValues("input").Add(float64(c.PromptTokens))
		}
		tokensTotal.WithLabelValues("output").Add(float64(c.Tokens))
		rec := Emit(c, first)
		first = false
		if err := j.send(rec); err != nil {
			j.log.Warn().Err(err).Msg("sink closed; abandoning generation")
			h.finish(j, StateFailed, "Transport")
			h.enter(j, StateFailed, map[string]any{"kind": "Transport"})
			return err
		}
	}
	h.finish(j, StateCompleted, "")
	h.enter(j, StateCompleted, map[string]any{"output_tokens": gen.Steps, "reason": gen.Reason.String()})
	return nil
}

// fail logs err, emits the single terminal error record and moves j to
// Failed. Logging and reporting run under recover so neither can suppress
// the record.
func (h *Handler) fail(j *job, err error, stack []byte) error {
	if j.errSent {
		return nil
	}
	kind := Kind(err)
	h.safely(func() {
		ev := j.log.Error()
		if IsValidation(err) || IsTypeMismatch(err) {
			ev = j.log.Warn()
		}
		if len(stack) > 0 {
			ev = ev.Str("stack", string(stack))
		}
		ev.Err(err).Str("kind", kind).Str("state", string(j.state)).Msg("job failed")
	})
	if len(stack) > 0 {
		h.safely(func() { h.reporter.Report(err, map[string]string{"kind": kind, "job_id": j.id}) })
	}
	rec := ErrorRecord(err)
	j.errSent = true
	h.finish(j, StateFailed, kind)
	h.mu.Lock()
	h.lastErr = rec.Error
	h.mu.Unlock()
	h.enter(j, StateFailed, map[string]any{"kind": kind})
	return j.send(rec)
}

func (h *Handler) finish(j *job, st State, kind string) {
	jobsTotal.WithLabelValues(string(st), kind).Inc()
	h.mu.Lock()
	if st == StateCompleted {
		h.completed++
	} else {
		h.failed++
	}
	h.mu.Unlock()
}

func (h *Handler) enter(j *job, st State, fields map[string]any) {
	from := j.state
	j.state = st
	if fields == nil {
		fields = map[string]any{}
	}
	fields["from"] = string(from)
	h.safely(func() {
		h.publisher.Publish(Event{Name: string(st), JobID: j.id, Fields: fields})
		j.log.Debug().Str("from", string(from)).Str("to", string(st)).Msg("job state")
	})
}

func (h *Handler) safely(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// send forwards r to the sink; a panicking sink counts as a closed one.
func (j *job) send(r types.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panic: %v", p)
		}
	}()
	return j.sink.Send(r)
}

// Stats is a point-in-time view of the handler.
type Stats struct {
	Queued    int
	Inflight  int
	Completed uint64
	Failed    uint64
	LastError string
}

// Stats returns queue and outcome counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Queued:    h.slot.queued(),
		Inflight:  h.slot.inflight(),
		Completed: h.completed,
		Failed:    h.failed,
		LastError: h.lastErr,
	}
}

// Engine returns the engine handle jobs run against.
func (h *Handler) Engine() engine.Engine { return h.engine }
