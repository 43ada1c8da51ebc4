// Package schedule runs fetch jobs at fixed times of day.
//
// Times are written as "@H:MM,H:MM,...". FetchTimes builds the every-five
// minutes list the buzz index job uses.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String formats the clock as "H:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%d:%02d", c.Hour, c.Minute)
}

// CronSpec returns the standard five-field cron line for the clock.
func (c Clock) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", c.Minute, c.Hour)
}

// FetchTimes lists every step minutes from startHour:00 through the last
// step of endHour, e.g. "@5:00,5:05,...,23:55".
func FetchTimes(startHour, endHour, stepMinutes int) string {
	if stepMinutes <= 0 {
		stepMinutes = 60
	}
	var b strings.Builder
	b.WriteByte('@')
	first := true
	for h := startHour; h <= endHour; h++ {
		for m := 0; m < 60; m += stepMinutes {
			if !first {
				b.WriteByte(',')
			}
			first = false
			b.WriteString(Clock{Hour: h, Minute: m}.String())
		}
	}
	return b.String()
}

// ParseTimes parses a "@H:MM,H:MM" list. The result is sorted and free of
// duplicates.
func ParseTimes(s string) ([]Clock, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "@") {
		return nil, fmt.Errorf("times %q must start with @", s)
	}
	seen := map[Clock]bool{}
	var out []Clock
	for _, part := range strings.Split(s[1:], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseClock(part)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("times %q: no entries", s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out, nil
}

func parseClock(s string) (Clock, error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(ms) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q (want H:MM)", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// dailyTimes fires at each clock every day, in the location of the time
// passed to Next.
type dailyTimes []Clock

// Next implements cron.Schedule.
func (d dailyTimes) Next(t time.Time) time.Time {
	for day := 0; day <= 1; day++ {
		for _, c := range d {
			at := time.Date(t.Year(), t.Month(), t.Day()+day, c.Hour, c.Minute, 0, 0, t.Location())
			if at.After(t) {
				return at
			}
		}
	}
	return time.Time{}
}
