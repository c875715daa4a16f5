// Package duration parses short relative/absolute duration strings into
// seconds (spec §8, testable property 7). The spin and spin_wait timeouts
// are integer seconds and are not parsed through this package.
package duration

import (
	"strconv"
	"strings"
	"time"
)

const maxTotalSeconds = 86400

// Parse accepts `Ns`, `Nm`, `Nh` for integers where 0 < N and the resulting
// total is <= 86400 seconds, or an `HH:MM` absolute clock-of-day value with
// range-checked hours (0-23) and minutes (0-59), returning the number of
// seconds from now until that clock time (rolling over to tomorrow if the
// time has already passed today). Invalid input returns (0, false) — the
// "unparsed" result.
func Parse(s string, now time.Time) (seconds int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if secs, ok := parseRelative(s); ok {
		return secs, true
	}
	if secs, ok := parseClock(s, now); ok {
		return secs, true
	}
	return 0, false
}

func parseRelative(s string) (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	unit := s[len(s)-1]
	var mult int
	switch unit {
	case 's':
		mult = 1
	case 'm':
		mult = 60
	case 'h':
		mult = 3600
	default:
		return 0, false
	}
	numPart := s[:len(s)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return 0, false
	}
	total := n * mult
	if total > maxTotalSeconds {
		return 0, false
	}
	return total, true
}

func parseClock(s string, now time.Time) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	return int(target.Sub(now).Seconds()), true
}
