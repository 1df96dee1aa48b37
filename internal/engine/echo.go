package engine

import (
	"context"
	"strings"
	"sync"
)

// Echo streams the encoded prompt back one token per step, then signals
// end-of-sequence. Output is a pure function of the prompt and stop list,
// which makes repeated runs byte-identical.
type Echo struct {
	tok Tokenizer

	mu     sync.Mutex
	active bool
}

// NewEcho builds an Echo engine around tok.
func NewEcho(tok Tokenizer) *Echo {
	if tok == nil {
		tok = NewWordTokenizer()
	}
	return &Echo{tok: tok}
}

func (e *Echo) Name() string      { return "echo" }
func (e *Echo) EndMarker() string { return DefaultEndMarker }
func (e *Echo) Close() error      { return nil }

func (e *Echo) Encode(text string) (Prompt, error) {
	return Prompt{Text: text, Tokens: e.tok.Encode(text)}, nil
}

func (e *Echo) BeginStream(ctx context.Context, prompt Prompt, s Settings) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.active = true
	e.mu.Unlock()
	pieces := make([]string, len(prompt.Tokens))
	for i, id := range prompt.Tokens {
		pieces[i] = e.tok.Decode(id)
	}
	return &echoStream{
		e:      e,
		ctx:    ctx,
		pieces: pieces,
		stop:   append([]string(nil), s.Stop...),
	}, nil
}

// Active reports whether a stream is open. Used to verify abandoned streams
// are released.
func (e *Echo) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

type echoStream struct {
	e      *Echo
	ctx    context.Context
	pieces []string
	stop   []string
	pos    int
	out    strings.Builder
	closed bool
}

func (s *echoStream) Step() (string, bool, error) {
	if s.closed {
		return "", true, ErrStreamClosed
	}
	if err := s.ctx.Err(); err != nil {
		return "", true, err
	}
	if s.pos >= len(s.pieces) {
		return "", true, nil
	}
	piece := s.pieces[s.pos]
	s.pos++
	if cut, hit := matchStop(s.out.String(), piece, s.stop); hit {
		s.pos = len(s.pieces)
		return cut, true, nil
	}
	s.out.WriteString(piece)
	return piece, s.pos >= len(s.pieces), nil
}

func (s *echoStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.e.mu.Lock()
	s.e.active = false
	s.e.mu.Unlock()
	return nil
}

// matchStop checks whether appending piece to emitted completes a stop
// string. On a hit it returns the part of piece that precedes the stop string.
func matchStop(emitted, piece string, stop []string) (string, bool) {
	if len(stop) == 0 {
		return piece, false
	}
	full := emitted + piece
	best := -1
	for _, s := range stop {
		if s == "" {
			continue
		}
		// only matches that end inside the new piece count
		from := len(emitted) - len(s) + 1
		if from < 0 {
			from = 0
		}
		if i := strings.Index(full[from:], s); i >= 0 {
			at := from + i
			if best < 0 || at < best {
				best = at
			}
		}
	}
	if best < 0 {
		return piece, false
	}
	if best <= len(emitted) {
		return "", true
	}
	return full[len(emitted):best], true
}
