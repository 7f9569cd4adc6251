package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asydsolutions/sentinel/internal/depgraph"
	"github.com/asydsolutions/sentinel/internal/service"
)

func cmd() *service.Command { return &service.Command{Argv: []string{"true"}} }

func newDispatcher(svcs []*service.Service) (*Dispatcher, *[]string, *[]service.Event) {
	var order []string
	var events []service.Event
	running := map[string]bool{}
	tbl := depgraph.NewTable(svcs)
	d := &Dispatcher{
		Table: tbl,
		Runner: Runner{
			Start: func(ctx context.Context, s *service.Service) Outcome {
				order = append(order, s.Name+".start")
				running[s.Name] = true
				return Outcome{OK: true, Message: "started"}
			},
			Stop: func(ctx context.Context, s *service.Service) Outcome {
				order = append(order, s.Name+".stop")
				running[s.Name] = false
				return Outcome{OK: true, Message: "stopped"}
			},
			Restart: func(ctx context.Context, s *service.Service) Outcome {
				order = append(order, s.Name+".restart")
				running[s.Name] = true
				return Outcome{OK: true, Message: "restarted"}
			},
			IsRunning: func(ctx context.Context, s *service.Service) bool {
				return running[s.Name]
			},
		},
		Emit: func(e service.Event) { events = append(events, e) },
	}
	return d, &order, &events
}

func TestControl_DependencyStartOrder(t *testing.T) {
	a := &service.Service{Name: "A", Start: cmd()}
	b := &service.Service{Name: "B", Start: cmd(), DependsOn: []string{"A"}}
	c := &service.Service{Name: "C", Start: cmd(), DependsOn: []string{"B"}}

	d, order, _ := newDispatcher([]*service.Service{a, b, c})
	require.NoError(t, d.Control(context.Background(), "C", service.ActionStart))

	// A must start before B, B before C.
	idxA, idxB, idxC := indexOf(*order, "A.start"), indexOf(*order, "B.start"), indexOf(*order, "C.start")
	assert.True(t, idxA < idxB)
	assert.True(t, idxB < idxC)
}

func TestControl_RestartWithFailingStopDoesNotStart(t *testing.T) {
	s := &service.Service{Name: "svc", Start: cmd(), Stop: cmd()}
	d, order, events := newDispatcher([]*service.Service{s})
	d.Runner.Stop = func(ctx context.Context, svc *service.Service) Outcome {
		return Outcome{OK: false, Message: "failed to stop -- exit status 2"}
	}

	require.NoError(t, d.Control(context.Background(), "svc", service.ActionRestart))

	assert.NotContains(t, *order, "svc.start")
	assert.Equal(t, service.MonitorYes, s.Monitor, "monitoring re-enabled for retry next cycle")

	found := false
	for _, e := range *events {
		if e.State == service.StateFailed {
			found = true
		}
	}
	assert.True(t, found, "a failed stop event must be posted")
}

func TestControl_SharedSubtreeStartsOnce(t *testing.T) {
	z := &service.Service{Name: "Z", Type: service.TypeProcess, Start: cmd()}
	x := &service.Service{Name: "X", Type: service.TypeProcess, Start: cmd(), DependsOn: []string{"Z"}}
	y := &service.Service{Name: "Y", Type: service.TypeProcess, Start: cmd(), DependsOn: []string{"Z"}}

	d, order, _ := newDispatcher([]*service.Service{z, x, y})

	require.NoError(t, d.Control(context.Background(), "X", service.ActionStart))
	count := 0
	for _, e := range *order {
		if e == "Z.start" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	*order = nil
	require.NoError(t, d.Control(context.Background(), "Y", service.ActionStart))
	for _, e := range *order {
		assert.NotEqual(t, "Z.start", e, "Z already started, second batch must not restart it")
	}
}

func TestControl_StopSkipsAlreadyStoppedProcess(t *testing.T) {
	s := &service.Service{Name: "svc", Type: service.TypeProcess, Stop: cmd()}
	d, order, _ := newDispatcher([]*service.Service{s})

	require.NoError(t, d.Control(context.Background(), "svc", service.ActionStop))
	assert.NotContains(t, *order, "svc.stop", "process was never started, nothing to stop")
}

func TestControl_MarksResetAfterBatch(t *testing.T) {
	a := &service.Service{Name: "A", Start: cmd()}
	d, _, _ := newDispatcher([]*service.Service{a})
	require.NoError(t, d.Control(context.Background(), "A", service.ActionStart))
	assert.False(t, a.Visited)
	assert.False(t, a.DependVisited)
}

func TestControl_UnmonitorDisablesDependants(t *testing.T) {
	a := &service.Service{Name: "A", Monitor: service.MonitorYes}
	b := &service.Service{Name: "B", Monitor: service.MonitorYes, DependsOn: []string{"A"}}
	d, _, _ := newDispatcher([]*service.Service{a, b})

	require.NoError(t, d.Control(context.Background(), "A", service.ActionUnmonitor))
	assert.Equal(t, service.MonitorNot, a.Monitor)
	assert.Equal(t, service.MonitorNot, b.Monitor)
}

func TestControl_UnknownService(t *testing.T) {
	d, _, _ := newDispatcher(nil)
	err := d.Control(context.Background(), "ghost", service.ActionStart)
	assert.Error(t, err)
}

func indexOf(s []string, v string) int {
	for i, e := range s {
		if e == v {
			return i
		}
	}
	return -1
}
