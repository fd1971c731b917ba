package tuition

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ScheduleSlot is one class happening today, as shown on the dashboard.
type ScheduleSlot struct {
	BatchID  string `json:"batch_id"`
	Name     string `json:"name"`
	Standard string `json:"standard,omitempty"`
	Time     string `json:"time"`
	Minutes  int    `json:"minutes"`
}

// unparsedMinutes sorts slots with unreadable times after every real time of day.
const unparsedMinutes = 24 * 60

// ParseClock converts a 12-hour time such as "04:30 PM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	// time.Parse takes hour 0 on a 12-hour layout; the clock face starts at 1.
	if hour, _, ok := strings.Cut(s, ":"); ok && strings.TrimLeft(hour, "0") == "" {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidTime)
	}
	for _, layout := range []string{"03:04 PM", "3:04 PM", "03:04PM", "3:04PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidTime)
}

// FormatClock renders minutes since midnight in the canonical "hh:mm AM" form.
func FormatClock(minutes int) string {
	return time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format("03:04 PM")
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// TodaySchedule picks every schedule entry that falls on now's weekday and
// orders the resulting slots by time of day.
func TodaySchedule(batches []Batch, now time.Time) []ScheduleSlot {
	today := ISOWeekday(now)
	slots := []ScheduleSlot{}
	for _, b := range batches {
		for _, entry := range b.Schedule {
			if entry.Day != today {
				continue
			}
			minutes, err := ParseClock(entry.Time)
			if err != nil {
				minutes = unparsedMinutes
			}
			slots = append(slots, ScheduleSlot{
				BatchID:  b.ID,
				Name:     b.Name,
				Standard: b.Standard,
				Time:     entry.Time,
				Minutes:  minutes,
			})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Minutes != slots[j].Minutes {
			return slots[i].Minutes < slots[j].Minutes
		}
		return slots[i].Name < slots[j].Name
	})
	return slots
}

// normalizeSchedule validates entries and rewrites times into canonical form.
func normalizeSchedule(entries []ScheduleEntry) ([]ScheduleEntry, error) {
	out := make([]ScheduleEntry, 0, len(entries))
	seen := make(map[ScheduleEntry]bool, len(entries))
	for _, e := range entries {
		if e.Day < 1 || e.Day > 7 {
			return nil, fmt.Errorf("day %d: %w", e.Day, ErrInvalidDay)
		}
		minutes, err := ParseClock(e.Time)
		if err != nil {
			return nil, err
		}
		norm := ScheduleEntry{Day: e.Day, Time: FormatClock(minutes)}
		if seen[norm] {
			return nil, fmt.Errorf("%d %s: %w", norm.Day, norm.Time, ErrDuplicateSlot)
		}
		seen[norm] = true
		out = append(out, norm)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		mi, _ := ParseClock(out[i].Time)
		mj, _ := ParseClock(out[j].Time)
		return mi < mj
	})
	return out, nil
}
