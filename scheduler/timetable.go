// Package scheduler runs the daily upload cycle: it selects pending videos
// in discovery order, assigns each to a configured time-of-day slot, uploads
// them, and relocates the files once the platform confirms.
package scheduler

import (
	"fmt"
	"time"
)

// TimeTable is the ordered list of daily publish slots. Slot i of a cycle
// publishes at the i-th time-of-day.
type TimeTable struct {
	slots []slot
}

type slot struct {
	hour, minute int
}

// ParseTimeTable parses "HH:MM" entries into a time table.
func ParseTimeTable(entries []string) (TimeTable, error) {
	if len(entries) == 0 {
		return TimeTable{}, fmt.Errorf("scheduler: time table is empty")
	}

	slots := make([]slot, 0, len(entries))
	for _, e := range entries {
		t, err := time.Parse("15:04", e)
		if err != nil {
			return TimeTable{}, fmt.Errorf("scheduler: invalid slot time %q: %w", e, err)
		}
		slots = append(slots, slot{hour: t.Hour(), minute: t.Minute()})
	}
	return TimeTable{slots: slots}, nil
}

// Len returns the number of slots, which caps uploads per cycle.
func (t TimeTable) Len() int { return len(t.slots) }

// SlotTime maps slot i to a concrete publish instant: today at the slot's
// time-of-day, or tomorrow if that has already passed. The result is always
// strictly after now.
func (t TimeTable) SlotTime(i int, now time.Time) time.Time {
	s := t.slots[i]
	at := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// NextFire returns the earliest slot instant after now, used by the polling
// loop to decide when the next cycle should run.
func (t TimeTable) NextFire(now time.Time) time.Time {
	var next time.Time
	for i := range t.slots {
		at := t.SlotTime(i, now)
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next
}
