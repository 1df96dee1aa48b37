// Package artifact resolves model and adapter directories on local storage
// before the engine is loaded, fetching them on a miss.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"llmworker/internal/common/fsutil"
)

// Ref names a remote artifact, e.g. "TheBloke/Llama-2-7B-GGUF" at "main".
type Ref struct {
	Name     string
	Revision string
}

// DirName is the local directory name for r: the second '/'-separated
// segment, so "org/repo/sub" maps to "repo".
func (r Ref) DirName() string {
	parts := strings.Split(r.Name, "/")
	if len(parts) < 2 {
		return r.Name
	}
	return parts[1]
}

// StartupError is fatal: the process must not accept jobs.
type StartupError struct {
	Ref Ref
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("acquire %s@%s: %v", e.Ref.Name, e.Ref.Revision, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

// IsStartup reports whether err is a StartupError.
func IsStartup(err error) bool {
	var s *StartupError
	return errors.As(err, &s)
}

// Fetcher downloads an artifact into dest.
type Fetcher interface {
	Fetch(ctx context.Context, ref Ref, dest string) error
}

// Paths are the resolved local locations.
type Paths struct {
	ModelDir   string
	AdapterDir string
	// Weights is the model weights file inside ModelDir (first *.gguf).
	Weights string
	// AdapterWeights is the adapter file inside AdapterDir, if any.
	AdapterWeights string
}

// Resolver maps refs under BasePath and fetches missing ones.
type Resolver struct {
	BasePath string
	Fetcher  Fetcher
	Log      zerolog.Logger
}

// Resolve makes model (and adapter, when non-nil) available locally. A failed
// fetch removes whatever was partially written before returning a
// StartupError; a failed adapter fetch also removes a model fetched by the
// same call.
func (r *Resolver) Resolve(ctx context.Context, model Ref, adapter *Ref) (Paths, error) {
	base, err := fsutil.ExpandHome(r.BasePath)
	if err != nil {
		return Paths{}, &StartupError{Ref: model, Err: err}
	}
	var p Paths
	p.ModelDir = filepath.Join(base, model.DirName())
	fetchedModel, err := r.ensure(ctx, model, p.ModelDir)
	if err != nil {
		return Paths{}, err
	}
	if adapter != nil && adapter.Name != "" {
		p.AdapterDir = filepath.Join(base, adapter.DirName())
		if _, err := r.ensure(ctx, *adapter, p.AdapterDir); err != nil {
			if fetchedModel {
				r.cleanup(p.ModelDir)
			}
			return Paths{}, err
		}
		p.AdapterWeights, _ = FindWeights(p.AdapterDir, ".gguf", ".bin")
	}
	p.Weights, err = FindWeights(p.ModelDir, ".gguf")
	if err != nil {
		return Paths{}, &StartupError{Ref: model, Err: err}
	}
	r.Log.Info().Str("model_dir", p.ModelDir).Str("weights", p.Weights).Str("adapter_dir", p.AdapterDir).Msg("artifacts resolved")
	return p, nil
}

// ensure fetches ref into dir unless dir already exists. fetched reports
// whether a download happened.
func (r *Resolver) ensure(ctx context.Context, ref Ref, dir string) (fetched bool, err error) {
	if fsutil.DirExists(dir) {
		return false, nil
	}
	if r.Fetcher == nil {
		return false, &StartupError{Ref: ref, Err: fmt.Errorf("%s not found and no fetcher configured", dir)}
	}
	r.Log.Info().Str("name", ref.Name).Str("revision", ref.Revision).Str("dest", dir).Msg("downloading model")
	if err := r.Fetcher.Fetch(ctx, ref, dir); err != nil {
		r.Log.Error().Err(err).Str("name", ref.Name).Msg("error downloading model")
		r.cleanup(dir)
		return false, &StartupError{Ref: ref, Err: err}
	}
	return true, nil
}

func (r *Resolver) cleanup(dir string) {
	if removed, err := fsutil.RemovePartial(dir); err != nil {
		r.Log.Warn().Err(err).Str("dir", dir).Msg("cleanup partial download")
	} else if removed {
		r.Log.Info().Str("dir", dir).Msg("removed partial download")
	}
}

// FindWeights returns the first file in dir whose extension matches one of
// exts (case-insensitive), in directory order.
func FindWeights(dir string, exts ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir: %w", err)
	}
	for _, ext := range exts {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.HasSuffix(strings.ToLower(e.Name()), ext) {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", fmt.Errorf("no %s file in %s", strings.Join(exts, "/"), dir)
}
