package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nengine: echo\nmodel_name: org/m1\nllama_ctx: 4096\ncors_origins: [\"*\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Engine != "echo" || cfg.ModelName != "org/m1" || cfg.LlamaCtx != 4096 || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	// untouched fields keep defaults
	if cfg.ModelRevision != "main" || cfg.ModelBasePath != "/runpod-volume/" || cfg.MaxQueueDepth != 32 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","model_name":"org/m2","adapter_name":"org/lora","admission_wait_seconds":5}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ModelName != "org/m2" || cfg.AdapterName != "org/lora" || cfg.AdmissionWaitSeconds != 5 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodel_base_path=\"/x/\"\nllama_threads=9\nsentry_dsn=\"https://k@o.ingest.sentry.io/1\"\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelBasePath != "/x/" || cfg.LlamaThreads != 9 || cfg.SentryDSN == "" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MODEL_NAME":          "TheBloke/Llama-2-7B-GGUF",
		"LORA_ADAPTER_NAME":   "org/adapter",
		"MODEL_BASE_PATH":     "/data/",
		"LLMWORKER_LLAMA_CTX": "1024",
		"LLMWORKER_ENGINE":    "echo",
		"MODEL_REVISION":      "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.ModelName != "TheBloke/Llama-2-7B-GGUF" || cfg.AdapterName != "org/adapter" || cfg.ModelBasePath != "/data/" || cfg.LlamaCtx != 1024 || cfg.Engine != "echo" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ModelRevision != "main" {
		t.Fatalf("empty env must not clear default, got %q", cfg.ModelRevision)
	}

	env["LLMWORKER_LLAMA_THREADS"] = "many"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("llama without model name must fail")
	}
	cfg.ModelName = "org/m"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Engine = "echo"
	cfg.ModelName = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("echo needs no model: %v", err)
	}
	cfg.Engine = "gpt"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("unknown engine must fail")
	}
}
