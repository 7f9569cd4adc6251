// Package daemon implements the Daemon Loop (spec §4.I): process
// lifecycle (pidfile, optional start delay), signal-driven shutdown and
// reload, and the goroutines that run the Engine's validation loop and the
// optional Heartbeat Worker side by side.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/asydsolutions/sentinel/internal/engine"
	"github.com/asydsolutions/sentinel/internal/heartbeat"
)

// Daemon owns one daemon process's signal handling and the goroutines it
// supervises. Unlike the original C daemon, signal delivery here already
// runs on an ordinary goroutine (signal.Notify's channel, not an
// async-signal-unsafe handler) — so "flags-only handlers" falls out of the
// language for free; Run's select loop is itself the one place signals do
// any work, and that work is plain, cancellable Go code.
type Daemon struct {
	Engine    *engine.Engine
	Heartbeat *heartbeat.Worker // nil disables heartbeat push entirely

	PidFile    string
	StartDelay time.Duration

	// OnReload is invoked on SIGHUP, before the heartbeat schedule (if
	// any) is woken. Typically re-reads the control file and swaps
	// service definitions; nil is a valid no-op.
	OnReload func()

	Log zerolog.Logger
}

// Run blocks until ctx is cancelled or a terminating signal (SIGTERM,
// SIGINT) arrives, then shuts down cleanly: it cancels the engine and
// heartbeat goroutines, waits for them to return, and removes the pidfile.
func (d *Daemon) Run(ctx context.Context) error {
	if d.PidFile != "" {
		if err := writePidFile(d.PidFile); err != nil {
			return err
		}
		defer func() { _ = os.Remove(d.PidFile) }()
	}

	if d.StartDelay > 0 {
		select {
		case <-time.After(d.StartDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGPIPE)
	defer signal.Stop(sigCh)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.Engine.Run(runCtx)
	}()

	if d.Heartbeat != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Heartbeat.Run(runCtx)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return nil

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				d.Log.Info().Str("signal", sig.String()).Msg("shutting down")
				cancel()
				wg.Wait()
				return nil

			case syscall.SIGHUP:
				d.Log.Info().Msg("reload requested")
				if d.OnReload != nil {
					d.OnReload()
				}
				if d.Heartbeat != nil {
					d.Heartbeat.Reload()
				}

			case syscall.SIGUSR1:
				d.Log.Info().Msg("wakeup requested, running an immediate cycle")
				d.Engine.Cycle(runCtx)

			case syscall.SIGPIPE:
				// A dead HTTP control client or a closed heartbeat socket
				// must not kill the daemon; Go itself only delivers this
				// when explicitly notified, so reaching here is just a
				// no-op drain.
			}
		}
	}
}
