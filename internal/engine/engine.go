// Package engine wires components A-J into one running daemon context:
// no package-level globals, the whole graph of collaborators is an
// explicit *Engine value the caller constructs and passes around (spec
// §9's redesign note against a singleton Run struct).
package engine

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/dispatch"
	"github.com/asydsolutions/sentinel/internal/execcmd"
	"github.com/asydsolutions/sentinel/internal/heartbeat"
	"github.com/asydsolutions/sentinel/internal/procobserve"
	"github.com/asydsolutions/sentinel/internal/service"
	"github.com/asydsolutions/sentinel/internal/statestore"
	"github.com/asydsolutions/sentinel/internal/validator"
)

// defaultConvergenceBudget bounds how long the engine waits for a process
// to appear or disappear after a start/stop command exits, when the
// service's own Command.Timeout doesn't already cover it.
const defaultConvergenceBudget = 15 * time.Second

// Engine is one daemon's live object graph.
type Engine struct {
	Table      *depgraph.Table
	Dispatcher *dispatch.Dispatcher
	Validator  *validator.Validator
	Store      *statestore.Store
	PollTime   time.Duration

	log zerolog.Logger
}

// New builds an Engine over services, ready to Run. store may be nil (no
// persistence configured).
func New(services []*service.Service, store *statestore.Store, pollTime time.Duration, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "engine").Logger()
	table := depgraph.NewTable(services)

	emit := func(e service.Event) { logEvent(log, e) }

	dispatcher := &dispatch.Dispatcher{
		Table:  table,
		Runner: buildRunner(log),
		Emit:   emit,
	}

	v := &validator.Validator{
		Table:  table,
		Sample: buildSampler(),
		Control: func(ctx context.Context, name string, action service.Action) error {
			return dispatcher.Control(ctx, name, action)
		},
		ExecRule: buildExecRule(),
		Emit:     emit,
		Now:      time.Now,
	}

	if pollTime <= 0 {
		pollTime = 30 * time.Second
	}

	return &Engine{
		Table:      table,
		Dispatcher: dispatcher,
		Validator:  v,
		Store:      store,
		PollTime:   pollTime,
		log:        log,
	}
}

// Run blocks, running one Validator cycle every PollTime and persisting
// state after each, until ctx is cancelled (spec §4.I's main loop).
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.PollTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Cycle(ctx)
		}
	}
}

// Cycle runs one validation pass and persists the result, outside of the
// ticker loop so callers (e.g. the SIGUSR1 wakeup handler, or a test) can
// trigger it directly.
func (e *Engine) Cycle(ctx context.Context) {
	active := e.Validator.Cycle(ctx)
	e.log.Debug().Int("active", active).Msg("cycle complete")

	if e.Store == nil {
		return
	}
	if err := e.Store.Save(ctx, e.Table); err != nil {
		e.log.Error().Err(err).Msg("state persist failed")
	}
}

// Reload replaces the service set with services, carrying over the live
// Monitor state and restart-budget history of any service that survives
// under the same name (spec §4.I's reinit: re-parse the control file,
// keep running state, swap the table in place). The Dispatcher and
// Validator start using the new table on their very next call.
func (e *Engine) Reload(services []*service.Service) {
	for _, s := range services {
		if old, ok := e.Table.Get(s.Name); ok {
			s.Monitor = old.Monitor
			s.Budget = old.Budget
		}
	}

	table := depgraph.NewTable(services)
	e.Table = table
	e.Dispatcher.Table = table
	e.Validator.Table = table
}

// Snapshot builds a heartbeat.Snapshot of current service states.
func (e *Engine) Snapshot(id string) heartbeat.Snapshot {
	var statuses []heartbeat.ServiceStatus
	for _, s := range e.Table.All() {
		statuses = append(statuses, heartbeat.ServiceStatus{Name: s.Name, Monitor: s.Monitor.String()})
	}
	return heartbeat.Snapshot{ID: id, Generated: time.Now(), Services: statuses}
}

func logEvent(log zerolog.Logger, e service.Event) {
	level := log.Info()
	if e.State == service.StateFailed {
		level = log.Warn()
	}
	level.
		Str("service", e.Service).
		Str("kind", e.Kind).
		Str("state", e.State.String()).
		Str("action", e.Action.String()).
		Msg(e.Message)
}

func buildRunner(log zerolog.Logger) dispatch.Runner {
	return dispatch.Runner{
		Start:   func(ctx context.Context, s *service.Service) dispatch.Outcome { return runVerb(ctx, s, s.Start, "start", log) },
		Stop:    func(ctx context.Context, s *service.Service) dispatch.Outcome { return runVerb(ctx, s, s.Stop, "stop", log) },
		Restart: func(ctx context.Context, s *service.Service) dispatch.Outcome { return runVerb(ctx, s, s.Restart, "restart", log) },
		IsRunning: func(ctx context.Context, s *service.Service) bool {
			_, running := resolverFor(s)()
			return running
		},
	}
}

func runVerb(ctx context.Context, s *service.Service, cmd *service.Command, verb string, log zerolog.Logger) dispatch.Outcome {
	if cmd == nil {
		return dispatch.Outcome{OK: true, Message: "no command configured"}
	}

	env := execcmd.BuildEnv(s, eventNameForVerb(verb), hostName(), time.Now())
	remaining := cmd.Timeout
	if remaining <= 0 {
		remaining = defaultConvergenceBudget
	}

	result, err := execcmd.Execute(ctx, cmd, env, &remaining)
	if err != nil {
		log.Warn().Err(err).Str("service", s.Name).Str("verb", verb).Msg("command failed to start")
		return dispatch.Outcome{OK: false, Message: result.Message}
	}
	if result.TimedOut || result.ExitStatus != 0 {
		return dispatch.Outcome{OK: false, Message: result.Message}
	}

	// Nothing to observe (a non-process service, or one with neither a
	// pidfile nor an argv pattern): the exit status is the only signal.
	if s.Type != service.TypeProcess || (s.PidFile == "" && s.ArgvPattern == "") {
		return dispatch.Outcome{OK: true, Message: result.Message}
	}

	resolve := resolverFor(s)
	waitBudget := defaultConvergenceBudget

	var converged bool
	if verb == "stop" {
		converged = procobserve.WaitStop(ctx, resolve, &waitBudget) == procobserve.Stopped
	} else {
		converged = procobserve.WaitStart(ctx, resolve, &waitBudget) == procobserve.Started
	}

	if !converged {
		return dispatch.Outcome{OK: false, Message: fmt.Sprintf("%s did not converge: %s", verb, result.Message)}
	}
	return dispatch.Outcome{OK: true, Message: result.Message}
}

func buildSampler() func(ctx context.Context, s *service.Service) (service.Info, error) {
	return func(ctx context.Context, s *service.Service) (service.Info, error) {
		if s.Type != service.TypeProcess {
			return s.Info, nil
		}
		pid, running := resolverFor(s)()
		if !running {
			return service.Info{}, fmt.Errorf("process %s is not running", s.Name)
		}
		return procobserve.Sample(pid)
	}
}

func buildExecRule() func(ctx context.Context, s *service.Service, rule *service.Rule) (bool, string) {
	return func(ctx context.Context, s *service.Service, rule *service.Rule) (bool, string) {
		if rule.Command == nil {
			return false, "exec action has no command configured"
		}
		env := execcmd.BuildEnv(s, "Exec", hostName(), time.Now())
		remaining := rule.Command.Timeout
		if remaining <= 0 {
			remaining = defaultConvergenceBudget
		}
		result, err := execcmd.Execute(ctx, rule.Command, env, &remaining)
		if err != nil {
			return false, result.Message
		}
		return !result.TimedOut && result.ExitStatus == 0, result.Message
	}
}

// resolverFor picks the Process Observer resolution strategy for s (spec
// §4.C): pidfile (optionally argv-guarded), a bare process-table scan, or
// — when neither a pidfile nor an argv pattern is configured, as for
// non-process service types — a stub that always reports running. runVerb
// does not poll such services for convergence, so their start/stop outcome
// is the command's exit status alone.
func resolverFor(s *service.Service) procobserve.ResolveFunc {
	var argvMatch *regexp.Regexp
	if s.ArgvPattern != "" {
		argvMatch = regexp.MustCompile(s.ArgvPattern)
	}

	switch {
	case s.PidFile != "":
		r := procobserve.PidfileResolver{Path: s.PidFile, ArgvMatch: argvMatch}
		return r.Resolve
	case argvMatch != nil:
		r := procobserve.ScanResolver{Pattern: argvMatch}
		return r.Resolve
	default:
		return func() (int, bool) { return 0, true }
	}
}

func eventNameForVerb(verb string) string {
	switch verb {
	case "start":
		return execcmd.EventStarted
	case "stop":
		return execcmd.EventStopped
	case "restart":
		return execcmd.EventRestarted
	default:
		return verb
	}
}

func hostName() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
