package util //nolint:revive // package name util hosts shared formatting and archive helpers

import "time"

// FormatDuration renders d for CLI summaries. Unknown durations print "—",
// runs of a minute or more round to whole seconds, shorter ones to milliseconds.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "—"
	case d < time.Millisecond:
		return d.String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}
