package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"llmworker/internal/engine"
	"llmworker/pkg/types"
)

// step is one scripted engine output.
type step struct {
	text string
	eos  bool
	err  error
}

// stubEngine is an instrumented engine: it records every call and replays a
// script of steps. After the script runs out it repeats fill (if set) forever.
type stubEngine struct {
	mu        sync.Mutex
	script    []step
	fill      *step
	encodeErr error
	beginErr  error
	panicAt   int // panic on this step number (1-based); 0 disables
	marker    string

	encodes int
	begins  int
	steps   int
	closes  int
	last    engine.Settings
}

func (e *stubEngine) Name() string { return "stub" }
func (e *stubEngine) Close() error { return nil }

func (e *stubEngine) EndMarker() string {
	if e.marker == "" {
		return engine.DefaultEndMarker
	}
	return e.marker
}

func (e *stubEngine) Encode(text string) (engine.Prompt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.encodes++
	if e.encodeErr != nil {
		return engine.Prompt{}, e.encodeErr
	}
	return engine.NewEcho(nil).Encode(text)
}

func (e *stubEngine) BeginStream(ctx context.Context, p engine.Prompt, s engine.Settings) (engine.Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.begins++
	e.last = s
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	return &stubStream{e: e}, nil
}

// calls returns the total number of engine invocations.
func (e *stubEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodes + e.begins + e.steps
}

type stubStream struct {
	e *stubEngine
	i int
}

func (s *stubStream) Step() (string, bool, error) {
	s.e.mu.Lock()
	s.e.steps++
	n := s.e.steps
	s.e.mu.Unlock()
	if s.e.panicAt > 0 && n == s.e.panicAt {
		panic("decode exploded")
	}
	var st step
	switch {
	case s.i < len(s.e.script):
		st = s.e.script[s.i]
	case s.e.fill != nil:
		st = *s.e.fill
	default:
		st = step{eos: true}
	}
	s.i++
	return st.text, st.eos, st.err
}

func (s *stubStream) Close() error {
	s.e.mu.Lock()
	s.e.closes++
	s.e.mu.Unlock()
	return nil
}

// forever returns a stub that emits text without ever ending on its own.
func forever(text string) *stubEngine {
	return &stubEngine{fill: &step{text: text}}
}

// failAfter returns a stub that succeeds n times and then errors.
func failAfter(n int, err error) *stubEngine {
	e := &stubEngine{}
	for i := 0; i < n; i++ {
		e.script = append(e.script, step{text: "x"})
	}
	e.script = append(e.script, step{err: err})
	return e
}

// collect runs job against h and returns every record sent.
func collect(t *testing.T, h *Handler, input map[string]any) []types.Record {
	t.Helper()
	var recs []types.Record
	err := h.Handle(context.Background(), types.Job{ID: t.Name(), Input: input}, SinkFunc(func(r types.Record) error {
		recs = append(recs, r)
		return nil
	}))
	require.NoError(t, err)
	return recs
}

var errBoom = errors.New("CUDA out of memory")
