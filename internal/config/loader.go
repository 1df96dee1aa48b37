package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the worker. It is resolved once at
// startup: Default, then the config file, then environment variables.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// Engine selects the runtime: "llama" or "echo".
	Engine    string `json:"engine" yaml:"engine" toml:"engine"`
	Tokenizer string `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer"`

	ModelName       string `json:"model_name" yaml:"model_name" toml:"model_name"`
	ModelRevision   string `json:"model_revision" yaml:"model_revision" toml:"model_revision"`
	AdapterName     string `json:"adapter_name" yaml:"adapter_name" toml:"adapter_name"`
	AdapterRevision string `json:"adapter_revision" yaml:"adapter_revision" toml:"adapter_revision"`
	ModelBasePath   string `json:"model_base_path" yaml:"model_base_path" toml:"model_base_path"`
	// FetchCmd downloads a missing artifact; see artifact.CommandFetcher.
	FetchCmd string `json:"fetch_cmd" yaml:"fetch_cmd" toml:"fetch_cmd"`

	LlamaCtx       int `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads   int `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaGPULayers int `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers"`

	MaxBodyBytes         int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxQueueDepth        int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	AdmissionWaitSeconds int      `json:"admission_wait_seconds" yaml:"admission_wait_seconds" toml:"admission_wait_seconds"`
	CORSOrigins          []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	SentryDSN         string `json:"sentry_dsn" yaml:"sentry_dsn" toml:"sentry_dsn"`
	SentryEnvironment string `json:"sentry_environment" yaml:"sentry_environment" toml:"sentry_environment"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		LogLevel:             "info",
		LogFormat:            "auto",
		Engine:               "llama",
		Tokenizer:            "words",
		ModelRevision:        "main",
		AdapterRevision:      "main",
		ModelBasePath:        "/runpod-volume/",
		LlamaCtx:             2048,
		MaxBodyBytes:         1 << 20,
		MaxQueueDepth:        32,
		AdmissionWaitSeconds: 30,
	}
}

// Load reads a configuration file over Default based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. lookup is os.LookupEnv in main.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MODEL_NAME", &c.ModelName)
	str("MODEL_REVISION", &c.ModelRevision)
	str("LORA_ADAPTER_NAME", &c.AdapterName)
	str("LORA_ADAPTER_REVISION", &c.AdapterRevision)
	str("MODEL_BASE_PATH", &c.ModelBasePath)
	str("LLMWORKER_FETCH_CMD", &c.FetchCmd)
	str("LLMWORKER_ADDR", &c.Addr)
	str("LLMWORKER_LOG_LEVEL", &c.LogLevel)
	str("LLMWORKER_LOG_FORMAT", &c.LogFormat)
	str("LLMWORKER_ENGINE", &c.Engine)
	str("LLMWORKER_TOKENIZER", &c.Tokenizer)
	str("SENTRY_DSN", &c.SentryDSN)
	str("SENTRY_ENVIRONMENT", &c.SentryEnvironment)
	for key, dst := range map[string]*int{
		"LLMWORKER_LLAMA_CTX":        &c.LlamaCtx,
		"LLMWORKER_LLAMA_THREADS":    &c.LlamaThreads,
		"LLMWORKER_LLAMA_GPU_LAYERS": &c.LlamaGPULayers,
	} {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate rejects configurations the worker cannot start with.
func (c Config) Validate() error {
	switch c.Engine {
	case "echo":
	case "llama":
		if strings.TrimSpace(c.ModelName) == "" {
			return fmt.Errorf("model_name (MODEL_NAME) is required for the llama engine")
		}
	default:
		return fmt.Errorf("unknown engine %q (want llama or echo)", c.Engine)
	}
	if c.AdmissionWaitSeconds < 0 || c.MaxQueueDepth < 0 {
		return fmt.Errorf("admission_wait_seconds and max_queue_depth must not be negative")
	}
	return nil
}
