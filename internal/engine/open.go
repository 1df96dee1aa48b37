package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Kinds accepted by Open.
const (
	KindLlama = "llama"
	KindEcho  = "echo"
)

// LlamaOptions configures the in-process llama.cpp engine.
type LlamaOptions struct {
	ModelPath   string
	AdapterPath string
	ContextSize int
	Threads     int
	GPULayers   int
}

// Options selects and configures an engine.
type Options struct {
	Kind      string
	Tokenizer string
	Llama     LlamaOptions
	Log       zerolog.Logger
}

// Open constructs the engine named by o.Kind and runs its warm-up pass.
// It is called once at process start; any error aborts startup.
func Open(ctx context.Context, o Options) (Engine, error) {
	var (
		eng Engine
		err error
	)
	switch o.Kind {
	case KindLlama:
		eng, err = openLlama(o.Llama)
	case KindEcho:
		var tok Tokenizer
		tok, err = NewTokenizer(o.Tokenizer)
		if err == nil {
			eng = NewEcho(tok)
			o.Log.Debug().Str("tokenizer", tokenizerName(tok)).Msg("echo engine ready")
		}
	default:
		return nil, fmt.Errorf("unknown engine kind %q", o.Kind)
	}
	if err != nil {
		return nil, err
	}
	if w, ok := eng.(Warmer); ok {
		o.Log.Info().Str("engine", eng.Name()).Msg("warming up")
		if err := w.Warmup(ctx); err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("warmup: %w", err)
		}
	}
	o.Log.Info().Str("engine", eng.Name()).Bool("llama_built", llamaBuilt).Msg("engine loaded")
	return eng, nil
}
