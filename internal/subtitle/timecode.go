package subtitle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const timingSeparator = " --> "

// FormatTimestamp renders d as HH:MM:SS,mmm. Sub-millisecond precision is
// truncated and negative durations clamp to zero. Hours do not wrap.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	millis := ms % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// ParseTimestamp is the inverse of FormatTimestamp. A '.' millisecond
// separator is accepted as well.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	clock, millisPart, ok := strings.Cut(s, ",")
	if !ok {
		clock, millisPart, ok = strings.Cut(s, ".")
	}
	if !ok {
		return 0, fmt.Errorf("invalid timestamp %q: missing milliseconds", s)
	}

	fields := strings.Split(clock, ":")
	if len(fields) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q: expected HH:MM:SS", s)
	}

	h, err := parseField(fields[0], -1)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: hours: %w", s, err)
	}
	m, err := parseField(fields[1], 59)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: minutes: %w", s, err)
	}
	sec, err := parseField(fields[2], 59)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: seconds: %w", s, err)
	}
	if len(millisPart) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q: milliseconds must have 3 digits", s)
	}
	ms, err := parseField(millisPart, 999)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: milliseconds: %w", s, err)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

func parseField(s string, limit int) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty field")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit in %q", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if limit >= 0 && n > limit {
		return 0, fmt.Errorf("%d out of range", n)
	}
	return n, nil
}

// FormatTiming renders the "start --> end" line of a block.
func FormatTiming(start, end time.Duration) string {
	return FormatTimestamp(start) + timingSeparator + FormatTimestamp(end)
}

// ParseTiming splits and decodes a "start --> end" line.
func ParseTiming(line string) (time.Duration, time.Duration, error) {
	left, right, ok := strings.Cut(line, "-->")
	if !ok {
		return 0, 0, fmt.Errorf("invalid timing line %q", line)
	}
	start, err := ParseTimestamp(left)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimestamp(right)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// FromMillis converts whole milliseconds to a Duration.
func FromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// FromSeconds converts fractional seconds, truncating below a millisecond.
func FromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(int64(s*1000)) * time.Millisecond
}
