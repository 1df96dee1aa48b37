package worker

import "llmworker/pkg/types"

// Emit converts a chunk into its wire record. input_tokens is attached only
// when first is set and the prompt count is positive.
func Emit(c Chunk, first bool) types.Record {
	r := types.Record{Text: c.Text, OutputTokens: c.Tokens}
	if first && c.PromptTokens > 0 {
		r.InputTokens = c.PromptTokens
	}
	return r
}

// ErrorRecord converts a terminal failure into its wire record.
func ErrorRecord(err error) types.Record {
	return types.Record{Error: errorText(err)}
}
