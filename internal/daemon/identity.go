package daemon

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Identity loads this daemon's persistent id from idFile, creating one
// with a random UUID on first run (spec §6's `--id`/`--resetid` verbs).
func Identity(idFile string) (string, error) {
	if raw, err := os.ReadFile(idFile); err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return id, nil
		}
	}
	return ResetIdentity(idFile)
}

// ResetIdentity generates a fresh id and overwrites idFile with it,
// implementing the `--resetid` verb.
func ResetIdentity(idFile string) (string, error) {
	id := uuid.NewString()
	if err := os.WriteFile(idFile, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("daemon: write id file %s: %w", idFile, err)
	}
	return id, nil
}
