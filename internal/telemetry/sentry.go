// Package telemetry forwards unexpected job failures to Sentry.
package telemetry

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
)

// Options configures a Reporter. An empty DSN yields a reporter whose events
// are processed locally and never sent.
type Options struct {
	DSN         string
	Environment string
	Release     string
	// BeforeSend is called for every event; returning nil drops it.
	BeforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event
}

// Reporter captures errors on a dedicated hub.
type Reporter struct {
	hub *sentry.Hub
}

// New builds a Reporter. It does not touch the global sentry hub.
func New(o Options) (*Reporter, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              o.DSN,
		Environment:      o.Environment,
		Release:          o.Release,
		AttachStacktrace: true,
		BeforeSend:       o.BeforeSend,
	})
	if err != nil {
		return nil, err
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Report captures err with the given tags.
func (r *Reporter) Report(err error, tags map[string]string) {
	if r == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events.
func (r *Reporter) Flush(timeout time.Duration) error {
	if r == nil {
		return nil
	}
	if !r.hub.Flush(timeout) {
		return errors.New("sentry flush timed out")
	}
	return nil
}
