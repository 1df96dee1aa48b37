package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"llmworker/internal/artifact"
	"llmworker/internal/config"
	"llmworker/internal/engine"
)

// openEngine acquires model artifacts when needed and loads the engine.
func openEngine(ctx context.Context, cfg config.Config, log zerolog.Logger) (engine.Engine, error) {
	opts := engine.Options{Kind: cfg.Engine, Tokenizer: cfg.Tokenizer, Log: log}
	if cfg.Engine == engine.KindLlama {
		res := &artifact.Resolver{BasePath: cfg.ModelBasePath, Log: log}
		if cfg.FetchCmd != "" {
			res.Fetcher = artifact.NewCommandFetcher(cfg.FetchCmd)
		}
		var adapter *artifact.Ref
		if cfg.AdapterName != "" {
			adapter = &artifact.Ref{Name: cfg.AdapterName, Revision: cfg.AdapterRevision}
		}
		paths, err := res.Resolve(ctx, artifact.Ref{Name: cfg.ModelName, Revision: cfg.ModelRevision}, adapter)
		if err != nil {
			return nil, err
		}
		opts.Llama = engine.LlamaOptions{
			ModelPath:   paths.Weights,
			AdapterPath: paths.AdapterWeights,
			ContextSize: cfg.LlamaCtx,
			Threads:     cfg.LlamaThreads,
			GPULayers:   cfg.LlamaGPULayers,
		}
	}
	eng, err := engine.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s engine: %w", cfg.Engine, err)
	}
	return eng, nil
}
