package worker

import (
	"context"
	"iter"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llmworker/internal/engine"
)

// Chunk is one decode step's output before wire formatting.
type Chunk struct {
	Text string
	// Tokens consumed to produce Text.
	Tokens int
	// PromptTokens is set on the first chunk only.
	PromptTokens int
	// Done marks the last chunk of the sequence.
	Done bool
}

// Termination records why a generation ended. It is logged, never sent.
type Termination int

const (
	EndOfSequence Termination = iota + 1
	MaxTokensReached
	StopToken
)

func (t Termination) String() string {
	switch t {
	case EndOfSequence:
		return "eos"
	case MaxTokensReached:
		return "max_new_tokens"
	case StopToken:
		return "stop_token"
	default:
		return "none"
	}
}

// Generation is a single-use lazy sequence of chunks.
type Generation struct {
	seq  iter.Seq2[Chunk, error]
	used atomic.Bool

	// Steps and Reason are valid once iteration has finished.
	Steps  int
	Reason Termination
}

// All yields chunks in generation order. A second call yields errConsumed.
// Breaking out of the loop closes the engine stream.
func (g *Generation) All() iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if g.used.Swap(true) {
			yield(Chunk{}, errConsumed)
			return
		}
		g.seq(yield)
	}
}

// Driver runs the per-job token loop against an engine handle.
type Driver struct {
	Engine engine.Engine
	Log    zerolog.Logger
}

// Drive prepares a generation for s. Nothing touches the engine until the
// returned sequence is iterated.
func (d *Driver) Drive(ctx context.Context, s Settings) *Generation {
	g := &Generation{}
	g.seq = func(yield func(Chunk, error) bool) {
		start := time.Now()
		prompt, err := d.Engine.Encode(s.Prompt)
		if err != nil {
			yield(Chunk{}, &EngineError{Op: "encode", Err: err})
			return
		}
		inputTokens := prompt.Len()
		d.Log.Info().Int("input_tokens", inputTokens).Msg("inference started")

		if s.MaxNewTokens <= 0 {
			g.Reason = MaxTokensReached
			d.logDone(g, start)
			yield(Chunk{PromptTokens: inputTokens, Done: true}, nil)
			return
		}

		stream, err := d.Engine.BeginStream(ctx, prompt, s.Settings)
		if err != nil {
			yield(Chunk{}, &EngineError{Op: "begin", Err: err})
			return
		}
		defer func() {
			if cerr := stream.Close(); cerr != nil {
				d.Log.Warn().Err(cerr).Msg("close stream")
			}
		}()

		marker := d.Engine.EndMarker()
		for {
			if err := ctx.Err(); err != nil {
				yield(Chunk{}, err)
				return
			}
			text, eos, err := stream.Step()
			if err != nil {
				yield(Chunk{}, &EngineError{Op: "step", Err: err})
				return
			}
			g.Steps++
			switch {
			case eos:
				g.Reason = EndOfSequence
			case g.Steps >= s.MaxNewTokens:
				g.Reason = MaxTokensReached
			case marker != "" && text == marker:
				g.Reason = StopToken
			}
			c := Chunk{Text: text, Tokens: 1, Done: g.Reason != 0}
			if g.Steps == 1 {
				c.PromptTokens = inputTokens
			}
			if c.Done {
				d.logDone(g, start)
			}
			if !yield(c, nil) {
				d.Log.Debug().Int("output_tokens", g.Steps).Msg("generation abandoned")
				return
			}
			if c.Done {
				return
			}
		}
	}
	return g
}

func (d *Driver) logDone(g *Generation, start time.Time) {
	d.Log.Info().
		Int("output_tokens", g.Steps).
		Str("reason", g.Reason.String()).
		Float64("seconds", time.Since(start).Seconds()).
		Msg("inference complete")
}
