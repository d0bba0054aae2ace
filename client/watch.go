package client

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the poll cadence applied when an interval is not
// configured.
const DefaultPollInterval = 4 * time.Second

// WatchOptions configures a detail watch.
type WatchOptions struct {
	// Interval between poll ticks; the cache default applies when zero.
	Interval time.Duration
	// StopOnTerminal stops polling once the task reaches a terminal
	// status. The terminal value is still delivered.
	StopOnTerminal bool
	// OnUpdate receives the task after each tick. On a failed tick the
	// last-known-good value is delivered together with the error.
	OnUpdate func(t *Task, err error)
}

// WatchListOptions configures a list watch.
type WatchListOptions struct {
	Interval time.Duration
	OnUpdate func(tasks []Task, err error)
}

// StopFunc cancels a watch and waits for its poll goroutine to exit: once
// it returns, no further request is issued and OnUpdate is not called
// again. It is idempotent; extra calls are no-ops. Must not be called
// from inside OnUpdate.
type StopFunc func()

// Watch polls detail(id) at the configured interval, delivering each
// observation to OnUpdate. An empty id issues no request and starts no
// timer; the returned stop handle is still safe to call. Polling starts
// with an immediate fetch, then continues on the interval until stopped.
func (c *Cache) Watch(id string, opts WatchOptions) StopFunc {
	if id == "" {
		return func() {}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = c.pollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var once sync.Once
	cancelPolling := func() { once.Do(cancel) }

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			t, err := c.refreshDetail(ctx, id)
			if ctx.Err() != nil {
				return
			}
			if opts.OnUpdate != nil {
				opts.OnUpdate(t, err)
			}
			if opts.StopOnTerminal && t != nil && err == nil && t.Status.Terminal() {
				cancelPolling()
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// A tick can already be pending when stop races the
				// ticker; never fetch past cancellation.
				if ctx.Err() != nil {
					return
				}
			}
		}
	}()

	return func() {
		cancelPolling()
		<-done
	}
}

// WatchList polls the list for f at the configured interval.
func (c *Cache) WatchList(f Filter, opts WatchListOptions) StopFunc {
	interval := opts.Interval
	if interval <= 0 {
		interval = c.pollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var once sync.Once
	cancelPolling := func() { once.Do(cancel) }

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			tasks, err := c.refreshList(ctx, f)
			if ctx.Err() != nil {
				return
			}
			if opts.OnUpdate != nil {
				opts.OnUpdate(tasks, err)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
			}
		}
	}()

	return func() {
		cancelPolling()
		<-done
	}
}

// refreshDetail forces a fetch by marking the entry stale first; a fresh
// cached copy would otherwise short-circuit the poll.
func (c *Cache) refreshDetail(ctx context.Context, id string) (*Task, error) {
	c.Invalidate(id)
	return c.Task(ctx, id)
}

func (c *Cache) refreshList(ctx context.Context, f Filter) ([]Task, error) {
	c.InvalidateList(f)
	return c.Tasks(ctx, f)
}
