package daemon

import (
	"fmt"
	"os"
	"strconv"
)

func writePidFile(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("daemon: write pidfile %s: %w", path, err)
	}
	return nil
}

// ReadPidFile reads a previously written pidfile, for the CLI's `reload`/
// `quit` verbs that need the running daemon's pid without going through
// the HTTP control surface.
func ReadPidFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("daemon: read pidfile %s: %w", path, err)
	}
	pid, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("daemon: malformed pidfile %s: %w", path, err)
	}
	return pid, nil
}
