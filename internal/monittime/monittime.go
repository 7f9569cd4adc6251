// Package monittime renders the fixed wall-clock and uptime formats used
// throughout Sentinel's events, environment variables and status output.
// It is a pure, side-effect-free package: every function takes its time
// value explicitly so callers control the clock.
package monittime

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout matches "Ddd, DD Mmm YYYY HH:MM:SS" using Go's reference
// time (Mon Jan 2 15:04:05 MST 2006).
const dateLayout = "Mon, 02 Jan 2006 15:04:05"

// Stamp renders t in local time as "Ddd, DD Mmm YYYY HH:MM:SS".
func Stamp(t time.Time) string {
	return t.Local().Format(dateLayout)
}

// StampUTC renders t in UTC as "Ddd, DD Mmm YYYY HH:MM:SS GMT".
func StampUTC(t time.Time) string {
	return t.UTC().Format(dateLayout) + " GMT"
}

// Uptime renders d as "Nd, Nh, Nm": the day and hour units are each skipped
// when their own count is zero, independent of whether a larger unit was
// printed, but the minute unit is always appended once d is positive (even
// "0m"). A non-positive duration renders as the empty string. The result
// always fits comfortably in a 24-byte buffer, matching the reference
// implementation's fixed-size stack buffer.
func Uptime(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	total := int64(d / time.Minute)
	days := total / (24 * 60)
	remaining := total - days*24*60
	hours := remaining / 60
	minutes := remaining % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))

	return strings.Join(parts, ", ")
}
