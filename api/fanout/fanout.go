// Package fanout calls a set of backends concurrently and merges what they
// return, isolating each backend's failure from the others.
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// ErrorCode defines error types for fan-out branches
type ErrorCode string

const (
	// ErrBranchPanicked is recorded when a backend call panics
	ErrBranchPanicked ErrorCode = "BranchPanicked"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// DefaultTimeout bounds a single backend call when the executor has none
const DefaultTimeout = 5 * time.Second

// Call performs one operation against one backend
type Call[T any] func(ctx context.Context, b backend.Backend) ([]T, error)

// Outcome is what a single backend contributed to a fan-out
type Outcome[T any] struct {
	Backend  string
	Items    []T
	Err      error
	Duration time.Duration
}

// Observer is notified once per finished branch
type Observer interface {
	ObserveBranch(op, backend string, d time.Duration, items int, err error)
}

// Executor holds the policy shared by every fan-out
type Executor struct {
	// Timeout bounds each branch, which is usually one backend call. Zero
	// means DefaultTimeout.
	Timeout time.Duration

	// Observer is optional
	Observer Observer
}

func (e *Executor) timeout() time.Duration {
	if e == nil || e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

// CallTimeout returns the deadline for a single backend call
func (e *Executor) CallTimeout() time.Duration {
	return e.timeout()
}

// ForCalls returns a copy of e whose branch deadline covers n sequential
// calls to the same backend
func (e *Executor) ForCalls(n int) *Executor {
	c := &Executor{Timeout: e.timeout() * time.Duration(max(n, 1))}
	if e != nil {
		c.Observer = e.Observer
	}
	return c
}

func (e *Executor) observe(op string, o branchResult) {
	if e == nil || e.Observer == nil {
		return
	}
	e.Observer.ObserveBranch(op, o.backend, o.duration, o.items, o.err)
}

type branchResult struct {
	backend  string
	duration time.Duration
	items    int
	err      error
}

// Collect calls every backend concurrently and waits for all of them.
// Outcomes are returned in the order of backends regardless of which call
// finished first. A failed, timed out or panicking call yields an Outcome
// with Err set and no items; it never cancels the other calls.
func Collect[T any](ctx context.Context, e *Executor, op string, backends []backend.Backend, call Call[T]) []Outcome[T] {
	if len(backends) == 0 {
		return nil
	}

	logger := log.FromContext(ctx).With("op", op)
	outcomes := make([]Outcome[T], len(backends))
	timeout := e.timeout()

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			start := time.Now()
			items, err := runBranch(ctx, timeout, b, call)
			outcomes[i] = Outcome[T]{
				Backend:  b.Name,
				Items:    items,
				Err:      err,
				Duration: time.Since(start),
			}
			if err != nil {
				outcomes[i].Items = nil
				logger.Warn("Backend call failed",
					"backend", b.Name,
					"error", err,
					"duration", outcomes[i].Duration,
				)
			} else {
				logger.Debug("Backend call finished",
					"backend", b.Name,
					"items", len(items),
					"duration", outcomes[i].Duration,
				)
			}
			e.observe(op, branchResult{
				backend:  b.Name,
				duration: outcomes[i].Duration,
				items:    len(outcomes[i].Items),
				err:      err,
			})
			// Branch errors are values; the group never short-circuits.
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Run is Collect followed by Merge
func Run[T any](ctx context.Context, e *Executor, op string, backends []backend.Backend, call Call[T]) []T {
	return Merge(Collect(ctx, e, op, backends, call))
}

// Merge concatenates the items of successful outcomes in outcome order
func Merge[T any](outcomes []Outcome[T]) []T {
	return lo.Flatten(lo.FilterMap(outcomes, func(o Outcome[T], _ int) ([]T, bool) {
		return o.Items, o.Err == nil
	}))
}

// Failed returns the names of backends whose call failed
func Failed[T any](outcomes []Outcome[T]) []string {
	return lo.FilterMap(outcomes, func(o Outcome[T], _ int) (string, bool) {
		return o.Backend, o.Err != nil
	})
}

func runBranch[T any](ctx context.Context, timeout time.Duration, b backend.Backend, call Call[T]) (items []T, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = failure.New(ErrBranchPanicked,
				failure.Message("Backend call panicked"),
				failure.Context{
					"backend": b.Name,
					"panic":   fmt.Sprint(r),
				},
			)
		}
	}()

	return call(ctx, b)
}
