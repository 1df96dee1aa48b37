package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"llmworker/internal/worker"
	"llmworker/pkg/types"
)

type mockService struct {
	status    types.StatusResponse
	ready     bool
	handleErr error
	records   []types.Record
	got       types.Job
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }
func (m *mockService) Handle(ctx context.Context, job types.Job, sink worker.Sink) error {
	m.got = job
	if m.handleErr != nil {
		return m.handleErr
	}
	for _, r := range m.records {
		if err := sink.Send(r); err != nil {
			return err
		}
	}
	return nil
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postRun(t *testing.T, h http.Handler, body, ct string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString(body))
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Engine: "echo", JobsCompleted: 3}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Engine != "echo" || body.JobsCompleted != 3 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRunStreamsRecords(t *testing.T) {
	svc := &mockService{ready: true, records: []types.Record{
		{Text: "Hello", OutputTokens: 1, InputTokens: 2},
		{Text: " world", OutputTokens: 1},
	}}
	w := postRun(t, NewMux(svc), `{"id":"job-1","input":{"prompt":"hi"}}`, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type=%s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", len(lines))
	}
	if lines[0] != `{"text":"Hello","output_tokens":1,"input_tokens":2}` {
		t.Fatalf("first line=%s", lines[0])
	}
	if svc.got.ID != "job-1" || svc.got.Input["prompt"] != "hi" {
		t.Fatalf("job not forwarded: %+v", svc.got)
	}
}

func TestRunErrorRecordStaysInStream(t *testing.T) {
	svc := &mockService{ready: true, records: []types.Record{{Error: "ValidationError: prompt is a required input."}}}
	w := postRun(t, NewMux(svc), `{"input":{}}`, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"ValidationError: prompt is a required input."}` {
		t.Fatalf("body=%s", got)
	}
	if svc.got.ID == "" {
		t.Fatalf("expected request id to fill job id")
	}
}

func TestRunNotReady(t *testing.T) {
	w := postRun(t, NewMux(&mockService{}), `{"input":{"prompt":"x"}}`, "application/json")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRunBadJSON(t *testing.T) {
	w := postRun(t, NewMux(&mockService{ready: true}), "not-json", "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRunUnsupportedMediaType(t *testing.T) {
	w := postRun(t, NewMux(&mockService{ready: true}), `{"input":{}}`, "text/plain")
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	w := postRun(t, NewMux(&mockService{ready: true}), `{"input":{"prompt":"hi"}}`, "Application/JSON; charset=utf-8")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", w.Code)
	}
}

func TestRunBodyTooLarge(t *testing.T) {
	big := bytes.Repeat([]byte("a"), (1<<20)+10)
	w := postRun(t, NewMux(&mockService{ready: true}), string(big), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestRunErrorBeforeStreamMapsStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{mockHTTPError{msg: "slow down", code: http.StatusTooManyRequests}, http.StatusTooManyRequests},
		{&worker.ValidationError{Problems: []string{"bad"}}, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		svc := &mockService{ready: true, handleErr: tc.err}
		w := postRun(t, NewMux(svc), `{"input":{"prompt":"x"}}`, "application/json")
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want)
		}
		var body types.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != tc.want {
			t.Fatalf("error body=%s err=%v", w.Body.String(), err)
		}
	}
}

func TestRunWithDebugLogging(t *testing.T) {
	svc := &mockService{ready: true, records: []types.Record{{Text: "a", OutputTokens: 1}}}
	req := httptest.NewRequest(http.MethodPost, "/run?log=debug", bytes.NewBufferString(`{"input":{"prompt":"hi"}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with debug logging, got %d", w.Code)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)

	h := NewMux(&mockService{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}
