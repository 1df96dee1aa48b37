package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

func TestMain(m *testing.M) {
	testscript.Main(m, map[string]func(){
		"llmworker": func() { os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) },
	})
}

func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			for _, k := range []string{"MODEL_NAME", "LORA_ADAPTER_NAME", "LLMWORKER_ENGINE", "SENTRY_DSN"} {
				env.Setenv(k, "")
			}
			env.Setenv("MODEL_BASE_PATH", env.WorkDir+"/models/")
			return nil
		},
	})
}
