package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandFetcher runs an external download tool, e.g.
//
//	huggingface-cli download {name} --revision {revision} --local-dir {dest}
//
// The placeholders are substituted per argument.
type CommandFetcher struct {
	Argv []string
}

// NewCommandFetcher splits a command line on whitespace.
func NewCommandFetcher(cmdline string) *CommandFetcher {
	return &CommandFetcher{Argv: strings.Fields(cmdline)}
}

func (f *CommandFetcher) Fetch(ctx context.Context, ref Ref, dest string) error {
	if len(f.Argv) == 0 {
		return fmt.Errorf("empty fetch command")
	}
	r := strings.NewReplacer("{name}", ref.Name, "{revision}", ref.Revision, "{dest}", dest)
	args := make([]string, len(f.Argv))
	for i, a := range f.Argv {
		args[i] = r.Replace(a)
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	// Capture stderr for diagnostics (kept in-memory; tail is included on failure)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		return fmt.Errorf("%s: %w; stderr tail: %s", args[0], err, strings.TrimSpace(tail))
	}
	return nil
}
