package service

// RestartBudget is a rolling-window counter: it remembers, for the last
// Window cycles, whether a restart happened in that cycle, and reports
// whether the count within the window exceeds Limit. A ring buffer avoids
// resetting the count on an arbitrary cycle boundary (spec §9).
type RestartBudget struct {
	Limit  int
	Window int

	history []bool
	pos     int
	filled  bool
}

// Init (re)sizes the ring buffer to hold Window entries. Safe to call
// repeatedly; it only reallocates when the window size changes.
func (b *RestartBudget) Init() {
	if b.Window <= 0 {
		b.Window = 1
	}
	if len(b.history) != b.Window {
		b.history = make([]bool, b.Window)
		b.pos = 0
		b.filled = false
	}
}

// RecordCycle advances the window by one cycle, recording whether a
// restart occurred in that cycle.
func (b *RestartBudget) RecordCycle(restarted bool) {
	b.Init()
	b.history[b.pos] = restarted
	b.pos = (b.pos + 1) % len(b.history)
	if b.pos == 0 {
		b.filled = true
	}
}

// Count returns how many of the tracked cycles recorded a restart.
func (b *RestartBudget) Count() int {
	b.Init()
	n := 0
	for _, v := range b.history {
		if v {
			n++
		}
	}
	return n
}

// Exceeded reports whether the rolling restart count exceeds Limit. A
// non-positive Limit disables the budget (never exceeded).
func (b *RestartBudget) Exceeded() bool {
	if b.Limit <= 0 {
		return false
	}
	return b.Count() > b.Limit
}

// Snapshot returns the tracked cycle history in chronological order
// (oldest first), for persistence across restarts.
func (b *RestartBudget) Snapshot() []bool {
	b.Init()
	out := make([]bool, len(b.history))
	for i := range out {
		out[i] = b.history[(b.pos+i)%len(b.history)]
	}
	return out
}

// Restore replaces the tracked history with a previously saved snapshot
// (oldest first), reloaded on daemon start or after a reload.
func (b *RestartBudget) Restore(history []bool) {
	if len(history) == 0 {
		b.Reset()
		return
	}
	b.Window = len(history)
	b.history = append([]bool(nil), history...)
	b.pos = 0
	b.filled = true
}

// Reset clears all recorded history without changing Limit/Window.
func (b *RestartBudget) Reset() {
	b.history = nil
	b.pos = 0
	b.filled = false
	b.Init()
}
