package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/asydsolutions/sentinel/internal/service"
)

// CommandSpec is the JSON shape of a service.Command. Parsing the control
// file's human-authored grammar is delegated (spec §6's glossary entry for
// "control file"); this package's concrete stand-in for that delegation is
// a JSON document shaped like the service model itself.
type CommandSpec struct {
	Argv    []string `json:"argv"`
	UID     *int     `json:"uid,omitempty"`
	GID     *int     `json:"gid,omitempty"`
	Timeout string   `json:"timeout,omitempty"`
}

func (c *CommandSpec) build() (*service.Command, error) {
	if c == nil {
		return nil, nil
	}
	if len(c.Argv) == 0 {
		return nil, fmt.Errorf("command has no argv")
	}
	cmd := &service.Command{Argv: c.Argv, UID: c.UID, GID: c.GID}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		cmd.Timeout = d
	}
	return cmd, nil
}

// RuleSpec is the JSON shape of a service.Rule. Test names one of a fixed
// set of built-in predicates over service.Info; Exec rules additionally
// carry their own Command.
type RuleSpec struct {
	Action    string       `json:"action"`
	Cron      string       `json:"cron,omitempty"`
	Test      string       `json:"test"`
	Threshold float64      `json:"threshold,omitempty"`
	Command   *CommandSpec `json:"command,omitempty"`
}

func (r RuleSpec) build() (service.Rule, error) {
	action, ok := actionFromString(r.Action)
	if !ok {
		return service.Rule{}, fmt.Errorf("unknown action %q", r.Action)
	}

	predicate, err := predicateFor(r.Test, r.Threshold)
	if err != nil {
		return service.Rule{}, err
	}

	cmd, err := r.Command.build()
	if err != nil {
		return service.Rule{}, fmt.Errorf("rule command: %w", err)
	}

	return service.Rule{Action: action, Cron: r.Cron, Predicate: predicate, Command: cmd}, nil
}

func actionFromString(s string) (service.Action, bool) {
	switch s {
	case "alert":
		return service.ActionAlert, true
	case "restart":
		return service.ActionRestart, true
	case "stop":
		return service.ActionStop, true
	case "start":
		return service.ActionStart, true
	case "exec":
		return service.ActionExec, true
	case "unmonitor":
		return service.ActionUnmonitor, true
	case "monitor":
		return service.ActionMonitor, true
	default:
		return service.ActionIgnore, false
	}
}

// predicateFor builds a service.Rule's Predicate from a fixed vocabulary of
// tests over service.Info, the JSON stand-in for the control file's own
// expression grammar (e.g. "if cpu > 80%").
func predicateFor(test string, threshold float64) (func(service.Info) (bool, string), error) {
	switch test {
	case "cpu_percent_gt":
		return func(i service.Info) (bool, string) {
			return i.CPUPercent > threshold, fmt.Sprintf("cpu %.1f%% exceeds %.1f%%", i.CPUPercent, threshold)
		}, nil
	case "rss_kb_gt":
		return func(i service.Info) (bool, string) {
			return float64(i.RSSKB) > threshold, fmt.Sprintf("memory %dkB exceeds %.0fkB", i.RSSKB, threshold)
		}, nil
	case "children_gt":
		return func(i service.Info) (bool, string) {
			return float64(i.Children) > threshold, fmt.Sprintf("child count %d exceeds %.0f", i.Children, threshold)
		}, nil
	case "size_gt":
		return func(i service.Info) (bool, string) {
			return float64(i.Size) > threshold, fmt.Sprintf("size %d exceeds %.0f", i.Size, threshold)
		}, nil
	case "pid_changed":
		var last int = -1
		return func(i service.Info) (bool, string) {
			changed := last != -1 && i.PID != last
			last = i.PID
			return changed, "pid changed since last cycle"
		}, nil
	default:
		return nil, fmt.Errorf("unknown test %q", test)
	}
}

// ServiceSpec is the JSON shape of one service.Service, read from the
// control file.
type ServiceSpec struct {
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	DependsOn     []string     `json:"depends_on,omitempty"`
	Group         string       `json:"group,omitempty"`
	PidFile       string       `json:"pid_file,omitempty"`
	ArgvPattern   string       `json:"argv_pattern,omitempty"`
	Start         *CommandSpec `json:"start,omitempty"`
	Stop          *CommandSpec `json:"stop,omitempty"`
	Restart       *CommandSpec `json:"restart,omitempty"`
	Rules         []RuleSpec   `json:"rules,omitempty"`
	RestartLimit  int          `json:"restart_limit,omitempty"`
	RestartWindow int          `json:"restart_window,omitempty"`
}

func (s ServiceSpec) build() (*service.Service, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("service has no name")
	}

	typ, ok := typeFromString(s.Type)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", s.Type)
	}

	start, err := s.Start.build()
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	stop, err := s.Stop.build()
	if err != nil {
		return nil, fmt.Errorf("stop: %w", err)
	}
	restart, err := s.Restart.build()
	if err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}

	rules := make([]service.Rule, 0, len(s.Rules))
	for i, rs := range s.Rules {
		rule, err := rs.build()
		if err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}

	limit, window := s.RestartLimit, s.RestartWindow
	if window <= 0 {
		window = 1
	}

	return &service.Service{
		Name:        s.Name,
		Type:        typ,
		DependsOn:   s.DependsOn,
		Group:       s.Group,
		PidFile:     s.PidFile,
		ArgvPattern: s.ArgvPattern,
		Start:       start,
		Stop:        stop,
		Restart:     restart,
		Rules:       rules,
		Monitor:     service.MonitorInit,
		Budget:      service.RestartBudget{Limit: limit, Window: window},
	}, nil
}

func typeFromString(s string) (service.Type, bool) {
	switch s {
	case "filesystem":
		return service.TypeFilesystem, true
	case "directory":
		return service.TypeDirectory, true
	case "file":
		return service.TypeFile, true
	case "process":
		return service.TypeProcess, true
	case "host":
		return service.TypeHost, true
	case "system":
		return service.TypeSystem, true
	case "fifo":
		return service.TypeFifo, true
	case "program":
		return service.TypeProgram, true
	case "network":
		return service.TypeNetwork, true
	default:
		return 0, false
	}
}

// LoadServices reads and builds the service set described by the control
// file at path.
func LoadServices(path string) ([]*service.Service, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read control file: %w", err)
	}

	var specs []ServiceSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("config: parse control file: %w", err)
	}

	services := make([]*service.Service, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		svc, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("config: service %q: %w", spec.Name, err)
		}
		if seen[svc.Name] {
			return nil, fmt.Errorf("config: duplicate service name %q", svc.Name)
		}
		seen[svc.Name] = true
		services = append(services, svc)
	}

	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if !seen[dep] {
				return nil, fmt.Errorf("config: service %q depends on unknown service %q", svc.Name, dep)
			}
		}
	}

	return services, nil
}

// ValidateControlFile implements the `-t` verb: parse and structurally
// validate without starting anything.
func ValidateControlFile(path string) error {
	_, err := LoadServices(path)
	return err
}
