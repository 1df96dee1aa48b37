package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, st Stream) []string {
	t.Helper()
	var out []string
	for i := 0; i < 100; i++ {
		text, eos, err := st.Step()
		require.NoError(t, err)
		out = append(out, text)
		if eos {
			return out
		}
	}
	t.Fatalf("stream did not end")
	return nil
}

func TestEcho_StreamsPromptBack(t *testing.T) {
	e := NewEcho(NewWordTokenizer())
	p, err := e.Encode("hello big world")
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	st, err := e.BeginStream(context.Background(), p, Settings{})
	require.NoError(t, err)
	defer st.Close()
	require.Equal(t, []string{"hello", " big", " world"}, drain(t, st))
}

func TestEcho_StopWordCutsPiece(t *testing.T) {
	e := NewEcho(nil)
	p, _ := e.Encode("one two three four")
	st, err := e.BeginStream(context.Background(), p, Settings{Stop: []string{"thr"}})
	require.NoError(t, err)
	defer st.Close()
	got := drain(t, st)
	require.Equal(t, []string{"one", " two", " "}, got)
	require.NotContains(t, strings.Join(got, ""), "thr")
}

func TestEcho_EmptyPromptEndsImmediately(t *testing.T) {
	e := NewEcho(nil)
	p, _ := e.Encode("")
	st, err := e.BeginStream(context.Background(), p, Settings{})
	require.NoError(t, err)
	text, eos, err := st.Step()
	require.NoError(t, err)
	require.True(t, eos)
	require.Empty(t, text)
	require.NoError(t, st.Close())
}

func TestEcho_CloseReleasesHandle(t *testing.T) {
	e := NewEcho(nil)
	p, _ := e.Encode("a b c")
	st, err := e.BeginStream(context.Background(), p, Settings{})
	require.NoError(t, err)
	require.True(t, e.Active())
	_, _, _ = st.Step()
	require.NoError(t, st.Close())
	require.False(t, e.Active())
	_, _, err = st.Step()
	require.ErrorIs(t, err, ErrStreamClosed)
}

func TestEcho_CanceledContext(t *testing.T) {
	e := NewEcho(nil)
	p, _ := e.Encode("a b")
	ctx, cancel := context.WithCancel(context.Background())
	st, err := e.BeginStream(ctx, p, Settings{})
	require.NoError(t, err)
	cancel()
	_, _, err = st.Step()
	require.ErrorIs(t, err, context.Canceled)
}

func TestMatchStop(t *testing.T) {
	cases := []struct {
		emitted, piece string
		stop           []string
		cut            string
		hit            bool
	}{
		{"", "abc", nil, "abc", false},
		{"ab", "cd", []string{"bc"}, "", true},
		{"a", "bcd", []string{"cd"}, "b", true},
		{"a", "bcd", []string{"cd", "bc"}, "", true},
		{"a", "b", []string{""}, "b", false},
	}
	for _, c := range cases {
		cut, hit := matchStop(c.emitted, c.piece, c.stop)
		require.Equal(t, c.hit, hit, "%+v", c)
		require.Equal(t, c.cut, cut, "%+v", c)
	}
}

func TestSplitWords(t *testing.T) {
	require.Equal(t, []string{"a", "  b", " c"}, splitWords("a  b c"))
	require.Equal(t, []string{" a", " "}, splitWords(" a "))
	require.Nil(t, splitWords(""))
}

func TestWordTokenizer_RoundTrip(t *testing.T) {
	tok := NewWordTokenizer()
	ids := tok.Encode("the cat the")
	require.Len(t, ids, 3)
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(tok.Decode(id))
	}
	require.Equal(t, "the cat the", b.String())
	require.Empty(t, tok.Decode(999))
}

func TestWordTokenizer_VocabIsBounded(t *testing.T) {
	tok := newWordTokenizer(4)
	tok.Encode("a b c")
	ids := tok.Encode("d e")
	require.LessOrEqual(t, len(tok.vocab), 4)
	require.Equal(t, "d", tok.Decode(ids[0]))
	require.Equal(t, " e", tok.Decode(ids[1]))

	for i := 0; i < 100; i++ {
		tok.Encode(fmt.Sprintf("w%d x%d", i, i))
	}
	require.LessOrEqual(t, len(tok.vocab), 4)
}

func TestEcho_StreamSurvivesVocabReset(t *testing.T) {
	tok := newWordTokenizer(3)
	e := NewEcho(tok)
	p, err := e.Encode("one two three")
	require.NoError(t, err)
	st, err := e.BeginStream(context.Background(), p, Settings{})
	require.NoError(t, err)
	defer st.Close()
	tok.Encode("x y")
	require.Equal(t, []string{"one", " two", " three"}, drain(t, st))
}
