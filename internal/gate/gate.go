// Package gate provides the single permit that serializes every background
// loop and every mutating API call against the store.
package gate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/amaumene/storarr/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// ErrPanic wraps a panic recovered from a gated task
var ErrPanic = errors.New("gated task panicked")

// Gate is a mutual-exclusion permit with cancellable acquisition
type Gate struct {
	sem    *semaphore.Weighted
	holder atomic.Value // string
}

// New creates an open gate
func New() *Gate {
	g := &Gate{sem: semaphore.NewWeighted(1)}
	g.holder.Store("")
	return g
}

// Run waits for the gate, runs fn while holding it and releases it on every
// exit path. A cancelled ctx aborts the wait without taking the gate. A panic
// in fn is recovered and returned as an error wrapping ErrPanic.
func (g *Gate) Run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: gate not acquired: %w", name, err)
	}

	waitStart := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: gate not acquired: %w", name, err)
	}
	metrics.GateWait.WithLabelValues(name).Observe(time.Since(waitStart).Seconds())

	held := time.Now()
	g.holder.Store(name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v\n%s", ErrPanic, name, r, debug.Stack())
		}
		g.holder.Store("")
		g.sem.Release(1)
		metrics.GateHold.WithLabelValues(name).Observe(time.Since(held).Seconds())
	}()

	// Acquire may succeed even when ctx was cancelled while waiting
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: cancelled after acquiring gate: %w", name, err)
	}

	return fn(ctx)
}

// Holder returns the name of the task currently holding the gate, or ""
func (g *Gate) Holder() string {
	return g.holder.Load().(string)
}
