package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"llmworker/internal/logging"
	"llmworker/internal/worker"
	"llmworker/pkg/types"
)

func newRunCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [job.json]",
		Short: "Run one job from a file or stdin and stream NDJSON records to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, args, stdout, stderr)
		},
	}
	cmd.Flags().String("engine", "", "Engine: llama or echo")
	cmd.Flags().String("tokenizer", "", "Tokenizer for the echo engine: words or a tiktoken encoding")
	return cmd
}

func runJob(cmd *cobra.Command, args []string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	job, err := decodeJob(in)
	if err != nil {
		return err
	}

	eng, err := openEngine(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	out := bufio.NewWriter(stdout)
	defer out.Flush()
	failed := false
	ndjson := worker.NewNDJSONSink(out, func() { _ = out.Flush() })
	sink := worker.SinkFunc(func(r types.Record) error {
		failed = failed || r.IsError()
		return ndjson.Send(r)
	})
	h := worker.NewHandler(eng, worker.Options{Log: log})
	if err := h.Handle(cmd.Context(), job, sink); err != nil {
		return err
	}
	if failed {
		return errExit
	}
	return nil
}

// decodeJob accepts either a {"id","input"} envelope or a bare input object.
func decodeJob(r io.Reader) (types.Job, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return types.Job{}, fmt.Errorf("decoding job: %w", err)
	}
	var job types.Job
	if _, ok := raw["input"]; ok {
		b, _ := json.Marshal(raw)
		if err := json.Unmarshal(b, &job); err != nil {
			return types.Job{}, fmt.Errorf("decoding job: %w", err)
		}
		return job, nil
	}
	job.Input = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return types.Job{}, fmt.Errorf("decoding job: %w", err)
		}
		job.Input[k] = val
	}
	return job, nil
}
