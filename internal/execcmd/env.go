package execcmd

import (
	"strconv"
	"time"

	"github.com/asydsolutions/sentinel/internal/monittime"
	"github.com/asydsolutions/sentinel/internal/service"
)

// Event names injected as MONIT_EVENT / MONIT_DESCRIPTION (spec §3, §6).
const (
	EventStarted   = "Started"
	EventStopped   = "Stopped"
	EventRestarted = "Restarted"
)

// BuildEnv assembles the environment overlay injected into every command
// the executor spawns (spec §3, §6). The caller's own environment is never
// inherited; this map is the entire child environment.
func BuildEnv(svc *service.Service, event string, hostName string, now time.Time) map[string]string {
	env := map[string]string{
		"MONIT_DATE":        monittime.Stamp(now),
		"MONIT_SERVICE":     svc.Name,
		"MONIT_HOST":        hostName,
		"MONIT_EVENT":       event,
		"MONIT_DESCRIPTION": event,
	}

	if svc.Type == service.TypeProcess {
		env["MONIT_PROCESS_PID"] = strconv.Itoa(svc.Info.PID)
		env["MONIT_PROCESS_MEMORY"] = strconv.FormatInt(svc.Info.RSSKB, 10)
		env["MONIT_PROCESS_CHILDREN"] = strconv.Itoa(svc.Info.Children)
		env["MONIT_PROCESS_CPU_PERCENT"] = strconv.FormatFloat(svc.Info.CPUPercent, 'f', 0, 64)
	}

	return env
}
