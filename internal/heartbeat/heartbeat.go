// Package heartbeat implements the Heartbeat Worker (spec §4.H): a
// goroutine that periodically pushes a status snapshot to one or more
// remote collectors, independent of the validation cycle. Scheduling uses
// robfig/cron's standard five-field grammar (or its "@every" descriptors),
// deliberately the opposite choice from internal/cronmatch: a heartbeat
// schedule is operator-supplied daemon configuration, not a guest-supplied
// rule gate, so the superset grammar is a feature here instead of the
// validation hole it would be there.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ServiceStatus is one service's line in a heartbeat Snapshot.
type ServiceStatus struct {
	Name    string `json:"name"`
	Monitor string `json:"monitor"`
	Message string `json:"message,omitempty"`
}

// Snapshot is the payload pushed to a collector on every fire.
type Snapshot struct {
	ID        string          `json:"id"`
	Generated time.Time       `json:"generated"`
	Services  []ServiceStatus `json:"services"`
}

// Sender delivers one Snapshot to a collector endpoint.
type Sender func(ctx context.Context, url string, snap Snapshot) error

// Worker pushes snapshots on a cron schedule to every configured URL.
// Collaborators are function fields, matching the DI style used across the
// engine's other components (e.g. internal/dispatch.Runner).
type Worker struct {
	URLs    []string
	Collect func() Snapshot
	Send    Sender
	Log     zerolog.Logger

	// Next returns the next fire time strictly after now. Set from the
	// parsed cron schedule by New; tests can override it directly.
	Next func(now time.Time) time.Time

	reloadCh chan struct{}
}

// New parses schedule (standard 5-field cron, or an "@every 30s"-style
// descriptor) and returns a Worker ready to Run.
func New(schedule string, urls []string, collect func() Snapshot, send Sender, log zerolog.Logger) (*Worker, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("heartbeat: parse schedule %q: %w", schedule, err)
	}

	return &Worker{
		URLs:     urls,
		Collect:  collect,
		Send:     send,
		Log:      log.With().Str("component", "heartbeat").Logger(),
		Next:     sched.Next,
		reloadCh: make(chan struct{}, 1),
	}, nil
}

// Run blocks, firing on schedule, until ctx is cancelled. A reload (see
// Reload) recomputes the next fire time immediately, for when the schedule
// itself changes via a config reload.
func (w *Worker) Run(ctx context.Context) {
	if w.reloadCh == nil {
		w.reloadCh = make(chan struct{}, 1)
	}

	timer := time.NewTimer(time.Until(w.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.reloadCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(time.Until(w.Next(time.Now())))

		case <-timer.C:
			w.fire(ctx)
			timer.Reset(time.Until(w.Next(time.Now())))
		}
	}
}

// Reload wakes Run to recompute the next fire time. Non-blocking: a reload
// already pending is coalesced with this one.
func (w *Worker) Reload() {
	if w.reloadCh == nil {
		return
	}
	select {
	case w.reloadCh <- struct{}{}:
	default:
	}
}

func (w *Worker) fire(ctx context.Context) {
	if w.Collect == nil || w.Send == nil {
		return
	}
	snap := w.Collect()
	for _, url := range w.URLs {
		if err := w.Send(ctx, url, snap); err != nil {
			w.Log.Warn().Err(err).Str("url", url).Msg("heartbeat push failed")
		}
	}
}
