// Package engine defines the Engine Handle consumed by the worker and ships
// the implementations the binary can be built with:
//
//   - llama.go: in-process llama.cpp via go-llama.cpp. Enabled with `-tags=llama`.
//     llama_cgo.go carries the linker rpath hints for that build.
//   - llama_stub.go: compiled without the tag; Open("llama") fails with a
//     dependency-unavailable error instead of pretending to generate.
//   - echo.go: a deterministic engine that streams the prompt back one token
//     at a time. Used for smoke runs and for exercising the pipeline end to end
//     without model weights.
//
// An Engine owns mutable decode state. Callers must not run two streams
// against the same Engine at once; the worker serializes jobs per handle.
package engine
