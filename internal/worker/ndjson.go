package worker

import (
	"encoding/json"
	"fmt"
	"io"

	"llmworker/pkg/types"
)

// ndjsonSink writes one JSON record per line and flushes after each so the
// caller sees every step as soon as it is produced.
type ndjsonSink struct {
	w     io.Writer
	flush func()
}

// NewNDJSONSink returns a Sink writing newline-delimited JSON to w.
// flush may be nil.
func NewNDJSONSink(w io.Writer, flush func()) Sink {
	return &ndjsonSink{w: w, flush: flush}
}

func (s *ndjsonSink) Send(r types.Record) error {
	line, err := recordLineJSON(r)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(line); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// marshalRecord is swapped in tests.
var marshalRecord = func(r types.Record) ([]byte, error) { return json.Marshal(r) }

// recordLineJSON formats one NDJSON line.
func recordLineJSON(r types.Record) ([]byte, error) {
	b, err := marshalRecord(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return append(b, '\n'), nil
}
