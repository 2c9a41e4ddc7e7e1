package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var intervalUnits = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// ParseSyncInterval parses "<n> <unit>" (e.g. "24 hours", "1 day", "30 minutes").
// Postgres accepts the same strings as an INTERVAL.
func ParseSyncInterval(s string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid sync interval %q", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid sync interval %q", s)
	}
	unit, ok := intervalUnits[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return 0, fmt.Errorf("invalid sync interval unit %q", fields[1])
	}
	return time.Duration(n) * unit, nil
}

// IsDue reports whether a record synced at synced with the given interval
// should sync again at now. Never-synced records are always due.
func IsDue(synced *time.Time, interval string, now time.Time) bool {
	if synced == nil {
		return true
	}
	d, err := ParseSyncInterval(interval)
	if err != nil {
		d, _ = ParseSyncInterval(DefaultSyncInterval)
	}
	return !synced.Add(d).After(now)
}

// NormalizeSyncInterval replaces an empty interval with DefaultSyncInterval.
func NormalizeSyncInterval(s string) string {
	if strings.TrimSpace(s) == "" {
		return DefaultSyncInterval
	}
	return strings.TrimSpace(s)
}
