// Package interval turns lookback windows such as "30m" or "1d" into
// activity cutoffs.
package interval

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"user-tracker/pkg/models"
)

var pattern = regexp.MustCompile(`^(\d+)([a-zA-Z])$`)

var units = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
}

// Parse converts "<n><unit>" into a duration. Only lowercase s, m, h and d
// are accepted.
func Parse(s string) (time.Duration, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q does not match <number><unit>", models.ErrInvalidInterval, s)
	}
	unit, ok := units[m[2]]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q in %q (use s, m, h or d)", models.ErrInvalidInterval, m[2], s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", models.ErrInvalidInterval, s, err)
	}
	if n > int64(1<<63-1)/int64(unit) {
		return 0, fmt.Errorf("%w: %q is too large", models.ErrInvalidInterval, s)
	}
	return time.Duration(n) * unit, nil
}

// Cutoff returns now minus the parsed interval
func Cutoff(now time.Time, s string) (time.Time, error) {
	d, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
