// Package clock formats and parses the UTC ISO-8601 timestamps used
// throughout the job store, registry, and control files.
package clock

import (
	"fmt"
	"strings"
	"time"
)

const layout = "2006-01-02T15:04:05.999999Z07:00"

// Now returns the current instant in UTC. Every timestamp written by this
// module goes through Now so tests can substitute a fixed clock by calling
// Format directly on an arbitrary time.Time.
func Now() time.Time {
	return time.Now().UTC()
}

// Format renders t as UTC ISO-8601 with a literal Z suffix and microsecond
// precision, e.g. 2024-01-02T03:04:05.678901Z.
func Format(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999Z")
}

// Parse accepts either the Z-suffixed form this package writes or an
// explicit +00:00 offset, since both appear in hand-edited config/control
// files and in data produced by earlier tooling.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("clock: empty timestamp")
	}
	if t, err := time.Parse(layout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: parse %q: %w", s, err)
	}
	return t.UTC(), nil
}
