// Package validator implements the Validator (spec §4.F): one monitoring
// cycle over every enabled service, posting events and delegating to the
// Action Dispatcher when a rule's action demands it.
package validator

import (
	"context"
	"time"

	"github.com/asydsolutions/sentinel/internal/cronmatch"
	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
)

// Validator runs one cycle across a Table. Every collaborator is injected
// as a function field so the cycle logic can be exercised with fakes.
type Validator struct {
	Table *depgraph.Table

	// Sample refreshes a service's Info via the type-specific external
	// sampler (process stats, filesystem stats, checksum, ...).
	Sample func(ctx context.Context, s *service.Service) (service.Info, error)

	// Control delegates a rule-triggered action to the Action Dispatcher.
	Control func(ctx context.Context, name string, action service.Action) error

	// ExecRule runs a rule-local command for an Exec action and reports
	// its outcome message.
	ExecRule func(ctx context.Context, s *service.Service, rule *service.Rule) (ok bool, message string)

	Emit func(service.Event)
	Now  func() time.Time
}

// Cycle evaluates every service in configuration order and returns the
// number of services that were not unmonitored when the cycle reached them
// (Monitor other than Not, so services still in Init are counted), for
// callers that want a cheap cycle summary.
func (v *Validator) Cycle(ctx context.Context) int {
	now := v.Now()
	active := 0

	for _, s := range v.Table.All() {
		if s.Monitor == service.MonitorNot {
			continue
		}
		active++

		if s.Monitor == service.MonitorInit {
			v.initialize(ctx, s)
			continue
		}

		v.refresh(ctx, s)
		restarted := v.evaluateRules(ctx, s, now)
		v.enforceBudget(s, restarted)
	}

	return active
}

func (v *Validator) initialize(ctx context.Context, s *service.Service) {
	if info, err := v.Sample(ctx, s); err == nil {
		s.Info = info
	}
	s.Monitor = service.MonitorYes
	v.post(service.Event{Service: s.Name, Kind: "monitor", State: service.StateInit, Message: "monitoring enabled"})
}

func (v *Validator) refresh(ctx context.Context, s *service.Service) {
	if info, err := v.Sample(ctx, s); err == nil {
		s.Info = info
	}
}

// evaluateRules runs every rule whose cron gate (if any) matches now, and
// reports whether a Start or Restart action was dispatched this cycle (for
// the restart-budget ring buffer).
func (v *Validator) evaluateRules(ctx context.Context, s *service.Service, now time.Time) bool {
	restarted := false

	for i := range s.Rules {
		rule := &s.Rules[i]

		if rule.Cron != "" && !cronmatch.Match(rule.Cron, now) {
			continue
		}
		if rule.Predicate == nil {
			continue
		}

		failed, message := rule.Predicate(s.Info)
		changed := !rule.LastEvaluated || failed != rule.LastFailed
		rule.LastFailed = failed
		rule.LastEvaluated = true

		if !changed && !failed {
			continue
		}

		state := service.StateSucceeded
		if failed {
			state = service.StateFailed
		}
		v.post(service.Event{Service: s.Name, Kind: "rule", State: state, Action: rule.Action, Message: message})

		if !failed {
			continue
		}

		switch rule.Action {
		case service.ActionAlert:
			// Logged via the Emit above; no further action.
		case service.ActionExec:
			if v.ExecRule != nil {
				ok, msg := v.ExecRule(ctx, s, rule)
				state := service.StateSucceeded
				if !ok {
					state = service.StateFailed
				}
				v.post(service.Event{Service: s.Name, Kind: "exec", State: state, Action: service.ActionExec, Message: msg})
			}
		case service.ActionRestart, service.ActionStart:
			restarted = true
			if v.Control != nil {
				_ = v.Control(ctx, s.Name, rule.Action)
			}
		case service.ActionStop, service.ActionUnmonitor, service.ActionMonitor:
			if v.Control != nil {
				_ = v.Control(ctx, s.Name, rule.Action)
			}
		}
	}

	return restarted
}

func (v *Validator) enforceBudget(s *service.Service, restartedThisCycle bool) {
	s.Budget.RecordCycle(restartedThisCycle)
	if !s.Budget.Exceeded() {
		return
	}
	s.Monitor = service.MonitorNot
	v.post(service.Event{
		Service: s.Name,
		Kind:    "budget",
		State:   service.StateFailed,
		Action:  service.ActionUnmonitor,
		Message: "restart limit exceeded",
	})
}

func (v *Validator) post(e service.Event) {
	if v.Emit == nil {
		return
	}
	e.Timestamp = v.Now()
	v.Emit(e)
}
