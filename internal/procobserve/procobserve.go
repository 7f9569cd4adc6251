// Package procobserve implements the Process Observer (spec §4.C): the
// is-running probe and the two convergence helpers the Action Dispatcher
// uses to decide whether a start or stop command actually took effect.
package procobserve

import (
	"context"
	"time"
)

// Status is the observed convergence outcome.
type Status int

const (
	Stopped Status = iota
	Started
)

// backoffCap bounds the exponential back-off used by WaitStart.
const backoffCap = time.Second

// stopPollInterval is the fixed polling period used by WaitStop. Stopping
// is cheap to re-check, unlike starting a possibly heavy service, so no
// back-off is used here (spec §4.C).
const stopPollInterval = 100 * time.Millisecond

// ResolveFunc reports whether the service's process is currently alive,
// returning its pid when it is. It must be side-effect-free and safe to
// call repeatedly; the concrete resolution strategy (pidfile read + argv
// match, or a process-table scan) lives in sampler.go's PidfileResolver and
// ScanResolver.
type ResolveFunc func() (pid int, running bool)

// WaitStart polls resolve with exponential back-off — 50ms, 100ms, 200ms,
// 400ms, 800ms, capped at 1s — until the process is observed running, the
// remaining budget is exhausted, or ctx is cancelled (daemon shutdown).
// *remaining is decremented by each interval actually waited.
func WaitStart(ctx context.Context, resolve ResolveFunc, remaining *time.Duration) Status {
	if _, running := resolve(); running {
		return Started
	}

	interval := 50 * time.Millisecond
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Stopped
		case <-timer.C:
			*remaining -= interval
			if _, running := resolve(); running {
				return Started
			}
			if *remaining <= 0 {
				return Stopped
			}
			interval *= 2
			if interval > backoffCap {
				interval = backoffCap
			}
			timer.Reset(interval)
		}
	}
}

// WaitStop polls every 100ms for pid to disappear (resolve returns false),
// until the remaining budget is exhausted or ctx is cancelled.
func WaitStop(ctx context.Context, resolve ResolveFunc, remaining *time.Duration) Status {
	if _, running := resolve(); !running {
		return Stopped
	}

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Started
		case <-ticker.C:
			*remaining -= stopPollInterval
			if _, running := resolve(); !running {
				return Stopped
			}
			if *remaining <= 0 {
				return Started
			}
		}
	}
}
