package estimate

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatHMS renders a duration as H:MM:SS. Hours are zero-padded to at least
// two digits but grow unbounded (125h -> "125:00:00"). Negative durations
// render as zero.
func FormatHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// TruncateSimple strips everything from the first decimal separator onward.
func TruncateSimple(s string) string {
	if s == "" {
		return s
	}
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// TruncateRobust normalizes a duration string to H:MM:SS, accepting hour
// fields beyond 24 and fractional seconds ("125:00:00", "00:00:05.4999").
// Malformed input falls back to TruncateSimple; this never fails.
func TruncateRobust(s string) string {
	if strings.TrimSpace(s) == "" {
		return s
	}

	d, ok := parseHMS(s)
	if !ok {
		return TruncateSimple(s)
	}
	return FormatHMS(d)
}

// parseHMS parses "[-]H...H:MM:SS[.frac]" with an unbounded hour field.
func parseHMS(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	if neg {
		d = -d
	}
	return d, true
}
