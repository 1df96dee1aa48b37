//go:build !llama

package engine

// llamaBuilt is false when the binary was compiled without the 'llama' tag.
var llamaBuilt = false

// openLlama fails fast: llama runtime not available in this build.
func openLlama(o LlamaOptions) (Engine, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
