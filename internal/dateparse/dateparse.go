// Package dateparse parses relative and absolute "since" expressions into
// a point in time.
package dateparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseSince parses input relative to the current time.
//
// Supported formats:
//   - Exact dates: "2026-03-01" (midnight, local time)
//   - Timestamps: "2026-03-01T10:00:00Z"
//   - Relative minutes: "30m"
//   - Relative hours: "2h"
//   - Relative days: "3d"
//   - Relative weeks: "1w"
//   - Keywords: "today", "yesterday"
func ParseSince(input string) (time.Time, error) {
	return ParseSinceFrom(input, time.Now())
}

// ParseSinceFrom parses input relative to now.
func ParseSinceFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty since input")
	}

	if t, err := time.ParseInLocation("2006-01-02", input, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(input)); err == nil {
		return t, nil
	}

	switch input {
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)), nil
	}

	// Relative offsets back from now: Nm, Nh, Nd, Nw
	if len(input) >= 2 {
		suffix := input[len(input)-1]
		n, err := strconv.Atoi(input[:len(input)-1])
		if err == nil && n >= 0 {
			switch suffix {
			case 'm':
				return now.Add(-time.Duration(n) * time.Minute), nil
			case 'h':
				return now.Add(-time.Duration(n) * time.Hour), nil
			case 'd':
				return now.AddDate(0, 0, -n), nil
			case 'w':
				return now.AddDate(0, 0, -7*n), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use m, h, d, or w)", string(suffix), input)
			}
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized since format: %q", input)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
