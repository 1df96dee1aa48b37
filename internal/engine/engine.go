package engine

import "context"

// DefaultEndMarker is the literal end-of-sequence text emitted by llama-family
// tokenizers when the special token is decoded as text.
const DefaultEndMarker = "</s>"

// Engine is a loaded model plus tokenizer, adapter and decode cache.
// It is created once per process and reused across jobs.
type Engine interface {
	// Encode tokenizes the prompt.
	Encode(text string) (Prompt, error)
	// BeginStream resets the decode state and starts generating from prompt.
	// The returned Stream must be closed; closing early is allowed.
	BeginStream(ctx context.Context, prompt Prompt, s Settings) (Stream, error)
	// EndMarker is the literal text piece that signals end of generation.
	EndMarker() string
	// Name identifies the engine kind for status and logs.
	Name() string
	// Close releases the model. Only called at process shutdown.
	Close() error
}

// Stream is one job's decode cursor.
type Stream interface {
	// Step runs one decode step and returns the produced text piece and
	// whether the engine reached end-of-sequence.
	Step() (text string, eos bool, err error)
	Close() error
}

// Warmer is implemented by engines that benefit from a warm-up pass after load.
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Prompt is an encoded prompt. Text is kept for runtimes that re-tokenize
// internally.
type Prompt struct {
	Text   string
	Tokens []int32
}

// Len returns the prompt token count.
func (p Prompt) Len() int { return len(p.Tokens) }

// Settings is the engine's strongly-typed generation configuration.
// Sampling values are passed through to the runtime untouched.
type Settings struct {
	Temperature            float64
	TopP                   float64
	TopK                   int
	MinP                   float64
	TFS                    float64
	Typical                float64
	TokenRepetitionPenalty float64
	TokenRepetitionRange   int
	TokenRepetitionDecay   int
	Mirostat               int
	MirostatTau            float64
	MirostatEta            float64
	// MaxNewTokens bounds decode steps. The worker enforces it as well.
	MaxNewTokens int
	// Stop holds literal stop conditions, in caller order.
	Stop []string
}
