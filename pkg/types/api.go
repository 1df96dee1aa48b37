package types

import "encoding/json"

// Job is the envelope accepted by POST /run and `llmworker run`.
type Job struct {
	// Optional caller-assigned identifier, echoed into logs only.
	// example: job-42
	ID string `json:"id,omitempty" example:"job-42"`
	// Raw parameter bag. Validated and normalized by the worker before any
	// engine work starts.
	Input map[string]any `json:"input"`
}

// Record is one element of the output stream. Exactly one of the two shapes
// is populated: a generation step (Text, OutputTokens and optionally
// InputTokens) or a terminal failure (Error).
type Record struct {
	// Text generated by this decode step.
	// example: Hello
	Text string `json:"text"`
	// Tokens consumed to produce Text.
	// example: 1
	OutputTokens int `json:"output_tokens"`
	// Prompt token count. Present on the first record only.
	// example: 12
	InputTokens int `json:"input_tokens,omitempty"`
	// Terminal error message. Always the last record when present.
	Error string `json:"error,omitempty"`
}

// IsError reports whether r is a terminal error record.
func (r Record) IsError() bool { return r.Error != "" }

// MarshalJSON writes the error shape as {"error": ...} only, without the
// zero-valued step fields.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.IsError() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	type step Record
	return json.Marshal(step(r))
}

// ErrorResponse is a consistent JSON error payload for non-streaming failures.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Engine kind serving jobs (e.g., llama, echo).
	// example: llama
	Engine string `json:"engine" example:"llama"`
	// Model identifier resolved at startup.
	// example: TheBloke/Llama-2-7B-GGUF
	Model string `json:"model,omitempty"`
	// Optional LoRA adapter identifier.
	Adapter string `json:"adapter,omitempty"`
	// Whether the engine handle finished loading.
	Ready bool `json:"ready"`
	// Jobs waiting for the generation slot.
	QueueLen int `json:"queue_len"`
	// Jobs currently generating (0 or 1).
	Inflight int `json:"inflight"`
	// Jobs handled since start, by outcome.
	JobsCompleted uint64 `json:"jobs_completed"`
	JobsFailed    uint64 `json:"jobs_failed"`
	// Last error surfaced to a caller (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the process in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
}
