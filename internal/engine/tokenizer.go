package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer converts text to token ids and single ids back to text.
type Tokenizer interface {
	Encode(text string) []int32
	Decode(id int32) string
}

// NewTokenizer returns the tokenizer registered under name. "words" needs no
// external data; tiktoken encodings (cl100k_base, p50k_base, r50k_base, ...)
// are loaded through tiktoken-go.
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", "words":
		return NewWordTokenizer(), nil
	default:
		return NewTikToken(name)
	}
}

// defaultWordVocab caps the words a WordTokenizer remembers.
const defaultWordVocab = 1 << 16

// WordTokenizer splits on whitespace boundaries; each token keeps its
// leading whitespace so decoding concatenates back to the input.
// The vocabulary is rebuilt once it would exceed its limit, which
// invalidates ids handed out earlier; decode before the next Encode.
type WordTokenizer struct {
	mu    sync.Mutex
	limit int
	ids   map[string]int32
	vocab []string
}

func NewWordTokenizer() *WordTokenizer {
	return newWordTokenizer(defaultWordVocab)
}

func newWordTokenizer(limit int) *WordTokenizer {
	return &WordTokenizer{limit: limit, ids: make(map[string]int32)}
}

func (w *WordTokenizer) Encode(text string) []int32 {
	pieces := splitWords(text)
	out := make([]int32, 0, len(pieces))
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.vocab)+len(pieces) > w.limit {
		w.ids = make(map[string]int32)
		w.vocab = nil
	}
	for _, p := range pieces {
		id, ok := w.ids[p]
		if !ok {
			id = int32(len(w.vocab))
			w.ids[p] = id
			w.vocab = append(w.vocab, p)
		}
		out = append(out, id)
	}
	return out
}

func (w *WordTokenizer) Decode(id int32) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id < 0 || int(id) >= len(w.vocab) {
		return ""
	}
	return w.vocab[id]
}

// splitWords cuts text before every whitespace run that follows a non-space,
// e.g. "a  b c" -> ["a", "  b", " c"].
func splitWords(text string) []string {
	var out []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if space && !inSpace && i > start {
			out = append(out, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// TikToken wraps pkoukk/tiktoken-go encodings.
type TikToken struct {
	enc  *tiktoken.Tiktoken
	name string
}

// NewTikToken loads the named BPE encoding. tiktoken-go fetches the ranks file
// on first use and caches it under TIKTOKEN_CACHE_DIR.
func NewTikToken(name string) (*TikToken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", name, err)
	}
	return &TikToken{enc: enc, name: name}, nil
}

func (t *TikToken) Encode(text string) []int32 {
	ids := t.enc.Encode(text, nil, nil)
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}
	return out
}

func (t *TikToken) Decode(id int32) string {
	return t.enc.Decode([]int{int(id)})
}

func (t *TikToken) Name() string { return t.name }

// tokenizerName names the tokenizer for logs.
func tokenizerName(t Tokenizer) string {
	if n, ok := t.(interface{ Name() string }); ok {
		return n.Name()
	}
	return strings.ToLower(fmt.Sprintf("%T", t))
}
