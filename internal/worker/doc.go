// Package worker is the request-handling core of the inference endpoint.
//
// A job flows through four pieces, each in its own file:
//
//   - schema.go, settings.go: Validate fills defaults and type-checks the raw
//     input; Normalize turns it into Settings (stop must be a list of strings).
//   - driver.go: Driver.Drive returns a single-use lazy sequence of chunks,
//     one per decode step, ending on end-of-sequence, max_new_tokens or the
//     engine's end marker.
//   - emitter.go: Emit turns chunks into wire records; input_tokens rides on
//     the first record only.
//   - handler.go: Handler.Handle is the state machine
//     (validating -> generating -> completed | failed) that guarantees at most
//     one error record, always last.
//
// admission.go serializes jobs per engine handle; events.go and metrics.go
// expose the lifecycle to tests and Prometheus.
package worker
