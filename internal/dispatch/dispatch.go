// Package dispatch implements the Action Dispatcher (spec §4.E): it walks
// the dependency graph to apply start/stop/restart/monitor/unmonitor while
// respecting inter-service dependencies, and posts an Event per executed
// command.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
)

// Outcome is what a command runner reports back for one start/stop/restart
// attempt: whether it converged, and the message to attach to the Event.
type Outcome struct {
	OK      bool
	Message string
}

// Runner performs the actual command execution and convergence wait for
// one verb. The dispatcher is agnostic to how that happens (real exec +
// process polling in production, a fake in tests) — dependency injection
// via function fields, not an interface, matching how the rest of this
// codebase wires collaborators for testing.
type Runner struct {
	Start   func(ctx context.Context, s *service.Service) Outcome
	Stop    func(ctx context.Context, s *service.Service) Outcome
	Restart func(ctx context.Context, s *service.Service) Outcome

	// IsRunning reports whether s's process is currently alive, via the
	// Process Observer. Only consulted for TypeProcess services: every
	// other type has no pid to resolve, so start/stop always run for
	// them. A nil IsRunning disables the gate (start/stop always run),
	// matching the pre-gate behaviour for callers that don't wire one.
	IsRunning func(ctx context.Context, s *service.Service) bool
}

// Dispatcher applies user- or rule-triggered actions to a Table of
// services. Control holds the Dispatcher's own mutex (the Run-wide mutex
// described in spec §5) for the whole action batch, so concurrent Control
// calls are serialised; Control is not reentrant.
type Dispatcher struct {
	Table  *depgraph.Table
	Runner Runner
	Emit   func(service.Event)

	mu sync.Mutex
}

// Control applies action to the named service and resets both traversal
// marks afterwards, regardless of outcome (spec §4.D/§4.E).
func (d *Dispatcher) Control(ctx context.Context, name string, action service.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.Table.ResetMarks()

	s, ok := d.Table.Get(name)
	if !ok {
		return fmt.Errorf("service %q: doesn't exist", name)
	}

	switch action {
	case service.ActionStart:
		d.doDepend(ctx, s, service.ActionStop)
		d.doStart(ctx, s)
		d.doDepend(ctx, s, service.ActionStart)

	case service.ActionStop:
		d.doDepend(ctx, s, service.ActionStop)
		d.doStop(ctx, s, true)

	case service.ActionRestart:
		d.doDepend(ctx, s, service.ActionStop)
		if s.Restart != nil {
			d.doRestart(ctx, s)
			d.doDepend(ctx, s, service.ActionStart)
		} else if d.doStop(ctx, s, false) {
			d.doStart(ctx, s)
			d.doDepend(ctx, s, service.ActionStart)
		} else {
			// Stop failed: re-enable monitoring so the next cycle retries.
			s.Monitor = service.MonitorYes
		}

	case service.ActionMonitor:
		d.doMonitor(s)

	case service.ActionUnmonitor:
		d.doDepend(ctx, s, service.ActionUnmonitor)
		d.doUnmonitor(s)

	default:
		return fmt.Errorf("service %q: invalid action %s", name, action)
	}

	return nil
}

// doStart recurses into every prerequisite of s first (post-order), then
// starts s itself if it is not already running.
func (d *Dispatcher) doStart(ctx context.Context, s *service.Service) {
	if s.Visited {
		return
	}
	s.Visited = true

	for _, depName := range s.DependsOn {
		if parent, ok := d.Table.Get(depName); ok {
			d.doStart(ctx, parent)
		}
	}

	if s.Start == nil {
		s.Monitor = service.MonitorYes
		return
	}

	if d.shouldRun(ctx, s, false) {
		outcome := d.Runner.Start(ctx, s)
		d.postExec(s, outcome, "start")
	}
	s.Monitor = service.MonitorYes
}

// shouldRun reports whether a start (wantRunning=false) or stop
// (wantRunning=true) command should actually be invoked on s. Only
// TypeProcess services have a real running/not-running state to gate on;
// every other type always runs the command, matching the original
// implementation's process-only convergence check.
func (d *Dispatcher) shouldRun(ctx context.Context, s *service.Service, wantRunning bool) bool {
	if s.Type != service.TypeProcess || d.Runner.IsRunning == nil {
		return true
	}
	return d.Runner.IsRunning(ctx, s) == wantRunning
}

// doStop is the direct stop action on s (no recursion into prerequisites —
// only doDepend walks the subtree of dependants). It returns whether the
// stop converged.
func (d *Dispatcher) doStop(ctx context.Context, s *service.Service, disableMonitoring bool) bool {
	if s.DependVisited {
		return true
	}
	s.DependVisited = true

	ok := true
	if s.Stop != nil && d.shouldRun(ctx, s, true) {
		outcome := d.Runner.Stop(ctx, s)
		d.postExec(s, outcome, "stop")
		ok = outcome.OK
	}

	if disableMonitoring {
		s.Monitor = service.MonitorNot
	}
	return ok
}

func (d *Dispatcher) doRestart(ctx context.Context, s *service.Service) {
	outcome := d.Runner.Restart(ctx, s)
	d.postExec(s, outcome, "restart")
	s.Monitor = service.MonitorYes
}

// doMonitor mirrors doStart: enable monitoring of s and every prerequisite,
// without touching services that depend on s.
func (d *Dispatcher) doMonitor(s *service.Service) {
	if s.Visited {
		return
	}
	s.Visited = true

	for _, depName := range s.DependsOn {
		if parent, ok := d.Table.Get(depName); ok {
			d.doMonitor(parent)
		}
	}
	s.Monitor = service.MonitorYes
}

// doUnmonitor disables monitoring of s alone; the dependent subtree is
// handled separately by doDepend before this is called.
func (d *Dispatcher) doUnmonitor(s *service.Service) {
	if s.DependVisited {
		return
	}
	s.DependVisited = true
	s.Monitor = service.MonitorNot
}

// doDepend walks every service that depends on s (its dependants) and
// applies action to the whole chain. For Start/Monitor the dependant acts
// before its own descendants are visited; for Stop/Unmonitor it acts after,
// so the deepest dependants stop first and s itself stops last (in the
// caller, after doDepend returns).
func (d *Dispatcher) doDepend(ctx context.Context, s *service.Service, action service.Action) {
	for _, child := range d.Table.Dependants(s.Name) {
		switch action {
		case service.ActionStart:
			d.doStart(ctx, child)
		case service.ActionMonitor:
			d.doMonitor(child)
		}

		d.doDepend(ctx, child, action)

		switch action {
		case service.ActionStop:
			d.doStop(ctx, child, true)
		case service.ActionUnmonitor:
			d.doUnmonitor(child)
		}
	}
}

func (d *Dispatcher) postExec(s *service.Service, outcome Outcome, verb string) {
	if d.Emit == nil {
		return
	}
	state := service.StateSucceeded
	if !outcome.OK {
		state = service.StateFailed
	}
	d.Emit(service.Event{
		Service: s.Name,
		Kind:    "exec",
		State:   state,
		Action:  actionForVerb(verb),
		Message: outcome.Message,
	})
}

func actionForVerb(verb string) service.Action {
	switch verb {
	case "start":
		return service.ActionStart
	case "stop":
		return service.ActionStop
	case "restart":
		return service.ActionRestart
	default:
		return service.ActionIgnore
	}
}
