// Package timeutil formats times and durations for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat renders local timestamps in listings. The layout
// happens to equal Go's reference time, so it reads as its own example.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatTime parses an RFC3339 timestamp and renders it in local time.
// Unparseable input is returned unchanged.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Local().Format(LocalTimeFormat)
}

// FormatUptime renders a Go duration string (e.g. "72h30m15s") as
// "3d 0h 30m 15s", dropping leading zero units. Unparseable input is
// returned unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Expiry renders an expiry time with a relative suffix, for example
// "Mon Jan 2 15:04:05 2006 (in 2h 30m)". Past times get "(expired)".
func Expiry(t, now time.Time) string {
	abs := t.Local().Format(LocalTimeFormat)
	if !t.After(now) {
		return abs + " (expired)"
	}
	return fmt.Sprintf("%s (in %s)", abs, Approx(t.Sub(now)))
}

// Approx renders a duration with its two most significant units.
// Countdowns do not need second precision.
func Approx(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "under a minute"
	}
}
