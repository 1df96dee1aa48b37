package worker

import (
	"context"
	"time"
)

// admission serializes jobs on one engine handle: a bounded FIFO of queue
// slots in front of a single in-flight generation slot.
type admission struct {
	genCh   chan struct{} // size 1: single in-flight generation
	queueCh chan struct{} // buffered: queue slots
	maxWait time.Duration
}

func newAdmission(depth int, maxWait time.Duration) *admission {
	return &admission{
		genCh:   make(chan struct{}, 1),
		queueCh: make(chan struct{}, depth),
		maxWait: maxWait,
	}
}

// acquire reserves a queue slot and then the generation slot.
// Returns a release func to be deferred.
func (a *admission) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer := time.NewTimer(a.maxWait)
	defer timer.Stop()
	select {
	case a.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{wait: a.maxWait.String()}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-a.queueCh
		}
	}()
	select {
	case a.genCh <- struct{}{}:
		acquired = true
		return func() { <-a.genCh; <-a.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{wait: a.maxWait.String()}
	}
}

// queued returns jobs waiting for the generation slot.
func (a *admission) queued() int {
	n := len(a.queueCh) - len(a.genCh)
	if n < 0 {
		return 0
	}
	return n
}

func (a *admission) inflight() int { return len(a.genCh) }
