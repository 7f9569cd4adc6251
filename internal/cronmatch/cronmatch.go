// Package cronmatch implements the restricted five-field cron grammar used
// to gate rule evaluation (spec §4.A). It deliberately does not accept the
// wider syntax supported by general-purpose cron libraries such as
// robfig/cron — in particular step expressions like "*/5" are rejected, per
// §9's "cron grammar edge cases" note. Match is a pure function of its
// inputs; it opens no files and keeps no state.
package cronmatch

import (
	"strconv"
	"strings"
	"time"
)

type fieldRange struct {
	min, max int
}

var fieldRanges = [5]fieldRange{
	{0, 59}, // minute
	{0, 23}, // hour
	{1, 31}, // day of month
	{1, 12}, // month
	{0, 6},  // weekday, Sunday=0
}

// Match reports whether expr (five whitespace-separated fields: minute hour
// day month weekday) matches t's local-time decomposition. Any malformed
// field, wrong field count, or out-of-grammar token makes Match return
// false; it never panics on bad input.
func Match(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}

	local := t.Local()
	values := [5]int{
		local.Minute(),
		local.Hour(),
		local.Day(),
		int(local.Month()),
		int(local.Weekday()),
	}

	for i, field := range fields {
		ok, valid := matchField(field, values[i], fieldRanges[i])
		if !valid || !ok {
			return false
		}
	}
	return true
}

// matchField evaluates one field against value. The second return value is
// false when the field's syntax is invalid for the grammar (distinct from a
// well-formed field that simply doesn't match).
func matchField(field string, value int, rng fieldRange) (matched bool, valid bool) {
	if field == "*" {
		return true, true
	}

	for _, element := range strings.Split(field, ",") {
		if element == "" {
			return false, false
		}
		ok, valid := matchElement(element, value, rng)
		if !valid {
			return false, false
		}
		if ok {
			return true, true
		}
	}
	return false, true
}

// matchElement evaluates a single comma-list element: either an integer or
// an inclusive "from-to" range. Anything else (e.g. a step expression) is
// rejected as invalid.
func matchElement(element string, value int, rng fieldRange) (matched bool, valid bool) {
	if from, to, ok := splitRange(element); ok {
		fromN, errFrom := strconv.Atoi(from)
		toN, errTo := strconv.Atoi(to)
		if errFrom != nil || errTo != nil {
			return false, false
		}
		if !inBounds(fromN, rng) || !inBounds(toN, rng) || fromN > toN {
			return false, false
		}
		return value >= fromN && value <= toN, true
	}

	n, err := strconv.Atoi(element)
	if err != nil {
		return false, false
	}
	if !inBounds(n, rng) {
		return false, false
	}
	return value == n, true
}

func inBounds(n int, rng fieldRange) bool {
	return n >= rng.min && n <= rng.max
}

// splitRange splits "from-to" on the single interior hyphen. A leading
// hyphen (as in a negative number, which this grammar never uses) does not
// count as a range separator.
func splitRange(element string) (from, to string, ok bool) {
	idx := strings.IndexByte(element, '-')
	if idx <= 0 || idx == len(element)-1 {
		return "", "", false
	}
	return element[:idx], element[idx+1:], true
}
