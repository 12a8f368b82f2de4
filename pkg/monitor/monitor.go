// Package monitor polls an external status field until it reaches a terminal
// value or a deadline passes.
package monitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome is the final state of a poll.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed-out"
	OutcomeCanceled  Outcome = "canceled"
)

// StatusUnknown is reported when a fetch fails.
const StatusUnknown = "unknown"

// FetchFunc reads the current status value.
type FetchFunc func(ctx context.Context) (string, error)

// Follower runs alongside a poll until its context is canceled.
type Follower func(ctx context.Context) error

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
	WithDeadline(ctx context.Context, d time.Time) (context.Context, context.CancelFunc)
}

// RealClock uses the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (RealClock) WithDeadline(ctx context.Context, d time.Time) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, d)
}

// Poll is one observation, reported through Config.OnPoll.
type Poll struct {
	Attempt int
	Status  string
	Err     error
	Elapsed time.Duration
}

// Config describes what counts as terminal and how often to look.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Success  []string
	Failure  []string

	Clock  Clock
	OnPoll func(Poll)
}

// Result is what Poll returns.
type Result struct {
	Outcome     Outcome
	LastStatus  string
	LastErr     error
	Attempts    int
	Elapsed     time.Duration
	FollowerErr error
}

// Terminal reports whether the watched resource resolved.
func (r Result) Terminal() bool {
	return r.Outcome == OutcomeSucceeded || r.Outcome == OutcomeFailed
}

func matches(status string, values []string) bool {
	for _, v := range values {
		if strings.EqualFold(status, v) {
			return true
		}
	}
	return false
}

// Run fetches until a success or failure value is seen, the timeout elapses,
// or ctx ends. A fetch error counts as an unknown status, not a failure.
// Timeout 0 means exactly one fetch.
//
// Fetches share a deadline of Timeout+Interval from the start, so Run returns
// by then even when a fetch hangs.
func Run(ctx context.Context, fetch FetchFunc, cfg Config) Result {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}

	start := clock.Now()
	res := Result{Outcome: OutcomePending}

	runCtx, cancel := clock.WithDeadline(ctx, start.Add(cfg.Timeout+cfg.Interval))
	defer cancel()

	for {
		res.Attempts++
		status, err := fetchWithin(runCtx, fetch)
		if err != nil {
			status = StatusUnknown
		}
		res.LastStatus = status
		res.LastErr = err
		res.Elapsed = clock.Now().Sub(start)

		if cfg.OnPoll != nil {
			cfg.OnPoll(Poll{Attempt: res.Attempts, Status: status, Err: err, Elapsed: res.Elapsed})
		}

		switch {
		case err == nil && matches(status, cfg.Success):
			res.Outcome = OutcomeSucceeded
			return res
		case err == nil && matches(status, cfg.Failure):
			res.Outcome = OutcomeFailed
			return res
		}

		if ctx.Err() != nil {
			res.Outcome = OutcomeCanceled
			return res
		}
		if runCtx.Err() != nil || res.Elapsed >= cfg.Timeout {
			res.Outcome = OutcomeTimedOut
			return res
		}

		if err := clock.Sleep(ctx, cfg.Interval); err != nil {
			res.Elapsed = clock.Now().Sub(start)
			res.Outcome = OutcomeCanceled
			return res
		}
	}
}

// fetchWithin returns when fetch does or when ctx ends, whichever is first.
// A fetch that ignores ctx finishes in the background.
func fetchWithin(ctx context.Context, fetch FetchFunc) (string, error) {
	type reply struct {
		status string
		err    error
	}

	done := make(chan reply, 1)
	go func() {
		status, err := fetch(ctx)
		done <- reply{status, err}
	}()

	select {
	case r := <-done:
		return r.status, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Watch runs follower in the background while polling, cancels it once the
// poll resolves, and waits for it to exit before returning.
func Watch(ctx context.Context, fetch FetchFunc, cfg Config, follower Follower) Result {
	if follower == nil {
		return Run(ctx, fetch, cfg)
	}

	followCtx, stopFollowing := context.WithCancel(ctx)
	defer stopFollowing()

	var g errgroup.Group
	g.Go(func() error {
		return follower(followCtx)
	})

	res := Run(ctx, fetch, cfg)
	stopFollowing()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		res.FollowerErr = err
	}

	return res
}
