package schedule

import (
	"fmt"
	"sort"
	"time"
)

const (
	TypeInterval = "interval"
	TypeDaily    = "daily"
	TypeWeekly   = "weekly"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Spec is a rule's schedule definition. All times are UTC.
type Spec struct {
	Type            string
	IntervalMinutes int
	TimesOfDay      []string // "15:04"
	Weekdays        []string // "monday".."sunday", weekly only
}

func (s Spec) Validate() error {
	switch s.Type {
	case TypeInterval:
		if s.IntervalMinutes <= 0 {
			return fmt.Errorf("interval schedule requires a positive interval")
		}
	case TypeDaily:
		if len(s.TimesOfDay) == 0 {
			return fmt.Errorf("daily schedule requires at least one time of day")
		}
		for _, tod := range s.TimesOfDay {
			if _, err := time.Parse("15:04", tod); err != nil {
				return fmt.Errorf("invalid time of day %q: %w", tod, err)
			}
		}
	case TypeWeekly:
		if len(s.TimesOfDay) == 0 {
			return fmt.Errorf("weekly schedule requires at least one time of day")
		}
		for _, tod := range s.TimesOfDay {
			if _, err := time.Parse("15:04", tod); err != nil {
				return fmt.Errorf("invalid time of day %q: %w", tod, err)
			}
		}
		if len(s.Weekdays) == 0 {
			return fmt.Errorf("weekly schedule requires at least one weekday")
		}
		for _, day := range s.Weekdays {
			if _, ok := weekdayNames[day]; !ok {
				return fmt.Errorf("invalid weekday %q", day)
			}
		}
	default:
		return fmt.Errorf("unknown schedule type %q", s.Type)
	}

	return nil
}

// Next computes the execution after prev. The result is always strictly in
// the future of now: when more than one tick was missed, the rule fires once
// and resyncs to the first future tick instead of replaying the backlog.
// Interval schedules keep their phase relative to prev, so a stalled engine
// does not drift the cadence.
func (s Spec) Next(prev, now time.Time) time.Time {
	switch s.Type {
	case TypeInterval:
		return s.nextInterval(prev, now)
	case TypeDaily:
		return s.nextAtTimes(now, nil)
	case TypeWeekly:
		days := make(map[time.Weekday]bool, len(s.Weekdays))
		for _, name := range s.Weekdays {
			if day, ok := weekdayNames[name]; ok {
				days[day] = true
			}
		}
		return s.nextAtTimes(now, days)
	default:
		// Unknown types fall back to an hourly retry rather than sticking
		// the rule permanently in the due set
		return now.Add(time.Hour)
	}
}

func (s Spec) nextInterval(prev, now time.Time) time.Time {
	interval := time.Duration(s.IntervalMinutes) * time.Minute

	if prev.IsZero() {
		return now.Add(interval)
	}

	next := prev.Add(interval)
	if next.After(now) {
		return next
	}

	// Collapse missed ticks to the first future one, preserving phase
	missed := now.Sub(prev) / interval
	next = prev.Add((missed + 1) * interval)
	return next
}

// nextAtTimes finds the first (weekday, time-of-day) combination after now.
// days == nil means every day.
func (s Spec) nextAtTimes(now time.Time, days map[time.Weekday]bool) time.Time {
	now = now.UTC()

	times := make([]time.Duration, 0, len(s.TimesOfDay))
	for _, tod := range s.TimesOfDay {
		parsed, err := time.Parse("15:04", tod)
		if err != nil {
			continue
		}
		times = append(times, time.Duration(parsed.Hour())*time.Hour+time.Duration(parsed.Minute())*time.Minute)
	}
	if len(times) == 0 {
		return now.Add(time.Hour)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for day := 0; day <= 7; day++ {
		date := midnight.AddDate(0, 0, day)
		if days != nil && !days[date.Weekday()] {
			continue
		}
		for _, tod := range times {
			candidate := date.Add(tod)
			if candidate.After(now) {
				return candidate
			}
		}
	}

	// Unreachable with a validated spec
	return now.Add(24 * time.Hour)
}

// DayStart returns midnight UTC of now's calendar day, the lower bound of
// the daily post-cap window.
func DayStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns Monday 00:00 UTC of now's ISO week, the lower bound of
// the weekly post-cap window.
func WeekStart(now time.Time) time.Time {
	day := DayStart(now)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
