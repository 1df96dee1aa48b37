//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// Llama owns a go-llama.cpp model loaded once at startup.
type Llama struct {
	model   *llama.LLama
	threads int
	opts    LlamaOptions
}

func openLlama(o LlamaOptions) (Engine, error) {
	if strings.TrimSpace(o.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(o.ContextSize, 2048)),
	}
	if o.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(o.GPULayers))
	}
	if o.AdapterPath != "" {
		mo = append(mo, llama.SetLoraAdapter(o.AdapterPath), llama.SetLoraBase(o.ModelPath))
	}
	m, err := llama.New(o.ModelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &Llama{model: m, threads: max(1, o.Threads), opts: o}, nil
}

func (l *Llama) Name() string      { return "llama" }
func (l *Llama) EndMarker() string { return DefaultEndMarker }

func (l *Llama) Encode(text string) (Prompt, error) {
	if l.model == nil {
		return Prompt{}, errors.New("llama model not initialized")
	}
	_, toks, err := l.model.TokenizeString(text, llama.SetThreads(l.threads))
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Text: text, Tokens: toks}, nil
}

// Warmup runs a one-token prediction so the first job does not pay for
// lazy allocations inside llama.cpp.
func (l *Llama) Warmup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.model.Predict(" ", llama.SetTokens(1), llama.SetThreads(l.threads))
	return err
}

// BeginStream starts Predict on a goroutine and turns its token callback into
// a pull-based cursor. The callback blocks until Step takes the piece, so
// decoding never runs more than one token ahead of the consumer.
func (l *Llama) BeginStream(ctx context.Context, prompt Prompt, s Settings) (Stream, error) {
	if l.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	st := &llamaStream{
		pieces: make(chan string),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	l.model.SetTokenCallback(func(tok string) bool {
		select {
		case st.pieces <- tok:
			return true
		case <-st.stop:
			return false
		case <-ctx.Done():
			return false
		}
	})
	po := mapSettingsToPredictOptions(s, l.threads)
	go func() {
		defer close(st.done)
		_, err := l.model.Predict(prompt.Text, po...)
		if err != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		st.err = err
	}()
	return st, nil
}

func (l *Llama) Close() error {
	if l.model != nil {
		l.model.Free()
		l.model = nil
	}
	return nil
}

type llamaStream struct {
	pieces chan string
	done   chan struct{}
	stop   chan struct{}
	err    error
	once   sync.Once
}

func (s *llamaStream) Step() (string, bool, error) {
	select {
	case tok := <-s.pieces:
		return tok, false, nil
	case <-s.done:
		return "", true, s.err
	case <-s.stop:
		return "", true, ErrStreamClosed
	}
}

// Close stops Predict and waits for it to return so the decode cache is free
// for the next job.
func (s *llamaStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// zf maps 0 ("disabled" in the job schema) to llama.cpp's neutral value.
func zf(v float64, neutral float32) float32 {
	if v > 0 {
		return float32(v)
	}
	return neutral
}

// mapSettingsToPredictOptions converts job settings into go-llama.cpp options.
// min_p and token_repetition_decay have no go-llama.cpp equivalent and are
// not forwarded.
func mapSettingsToPredictOptions(s Settings, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, s.MaxNewTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTemperature(float32(s.Temperature)),
		llama.SetTopP(zf(s.TopP, 1)),
		llama.SetTopK(s.TopK),
		llama.SetTailFreeSamplingZ(zf(s.TFS, 1)),
		llama.SetTypicalP(zf(s.Typical, 1)),
		llama.SetPenalty(zf(s.TokenRepetitionPenalty, 1)),
		llama.SetRepeat(s.TokenRepetitionRange),
	}
	if s.Mirostat > 0 {
		po = append(po,
			llama.SetMirostat(s.Mirostat),
			llama.SetMirostatTAU(float32(s.MirostatTau)),
			llama.SetMirostatETA(float32(s.MirostatEta)),
		)
	}
	if len(s.Stop) > 0 {
		po = append(po, llama.SetStopWords(s.Stop...))
	}
	return po
}
