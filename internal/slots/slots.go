// Package slots finds free time against a busy calendar.
package slots

import (
	"sort"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

// DefaultHorizonDays bounds how far ahead NextAvailableSlot searches.
const DefaultHorizonDays = 60

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Overlaps reports whether two half-open intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Pad extends the end of an interval by buffer.
func Pad(i Interval, buffer time.Duration) Interval {
	if buffer <= 0 {
		return i
	}
	return Interval{Start: i.Start, End: i.End.Add(buffer)}
}

// FromEvents converts calendar events to busy intervals, dropping empty ones.
func FromEvents(events []models.CalendarEvent) []Interval {
	busy := make([]Interval, 0, len(events))
	for _, e := range events {
		if !e.EndTime.After(e.StartTime) {
			continue
		}
		busy = append(busy, Interval{Start: e.StartTime, End: e.EndTime})
	}
	return busy
}

// FreeSlots returns the gaps between busy intervals inside [windowStart, windowEnd)
// that are at least minDuration long, in chronological order.
func FreeSlots(busy []Interval, windowStart, windowEnd time.Time, minDuration time.Duration) []Interval {
	if !windowEnd.After(windowStart) {
		return nil
	}

	var free []Interval
	emit := func(start, end time.Time) {
		if end.After(start) && end.Sub(start) >= minDuration {
			free = append(free, Interval{Start: start, End: end})
		}
	}

	cursor := windowStart
	for _, b := range sorted(busy) {
		if !b.End.After(windowStart) || !b.Start.Before(windowEnd) {
			continue
		}
		start := b.Start
		if start.Before(windowStart) {
			start = windowStart
		}
		if start.After(cursor) {
			emit(cursor, start)
		}
		if b.End.After(cursor) {
			cursor = b.End
			if cursor.After(windowEnd) {
				cursor = windowEnd
			}
		}
	}
	emit(cursor, windowEnd)
	return free
}

// NextAvailableSlot finds the earliest interval of exactly duration that starts
// at or after earliestStart, fits in one day's working hours on an allowed day
// and overlaps no busy interval. ok is false when the horizon is exhausted.
func NextAvailableSlot(earliestStart time.Time, duration time.Duration, busy []Interval, hours models.WorkingHours, allowWeekends bool, horizonDays int) (slot Interval, ok bool) {
	if duration <= 0 || hours.Validate() != nil {
		return Interval{}, false
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	limit := earliestStart.AddDate(0, 0, horizonDays)
	busy = sorted(busy)
	cursor := earliestStart

	for !cursor.After(limit) {
		dayStart, dayEnd := hours.Bounds(cursor)
		if !allowedDay(cursor, allowWeekends) || !cursor.Before(dayEnd) {
			cursor = nextDayStart(cursor, hours, allowWeekends)
			continue
		}
		if cursor.Before(dayStart) {
			cursor = dayStart
			if cursor.After(limit) {
				break
			}
		}

		end := cursor.Add(duration)
		if end.After(dayEnd) {
			cursor = nextDayStart(cursor, hours, allowWeekends)
			continue
		}

		if conflict, found := firstConflict(busy, cursor, end); found {
			cursor = conflict.End
			continue
		}
		return Interval{Start: cursor, End: end}, true
	}
	return Interval{}, false
}

// DailyBreaks expands the working-hours break window into busy intervals for
// every day touching [windowStart, windowEnd).
func DailyBreaks(windowStart, windowEnd time.Time, hours models.WorkingHours) []Interval {
	if hours.BreakStart == nil || hours.BreakDuration <= 0 || !windowEnd.After(windowStart) {
		return nil
	}
	length := models.Duration(hours.BreakDuration)

	var breaks []Interval
	day := hours.BreakStart.On(windowStart)
	for day.Before(windowEnd) {
		b := Interval{Start: day, End: day.Add(length)}
		if b.End.After(windowStart) {
			breaks = append(breaks, b)
		}
		y, m, d := day.Date()
		day = time.Date(y, m, d+1, hours.BreakStart.Hour, hours.BreakStart.Minute, 0, 0, day.Location())
	}
	return breaks
}

func firstConflict(busy []Interval, start, end time.Time) (Interval, bool) {
	for _, b := range busy {
		if !b.Start.Before(end) {
			break
		}
		if start.Before(b.End) && end.After(b.Start) {
			return b, true
		}
	}
	return Interval{}, false
}

func nextDayStart(t time.Time, hours models.WorkingHours, allowWeekends bool) time.Time {
	y, m, d := t.Date()
	next := time.Date(y, m, d+1, hours.Start.Hour, hours.Start.Minute, 0, 0, t.Location())
	for !allowedDay(next, allowWeekends) {
		y, m, d = next.Date()
		next = time.Date(y, m, d+1, hours.Start.Hour, hours.Start.Minute, 0, 0, t.Location())
	}
	return next
}

func allowedDay(t time.Time, allowWeekends bool) bool {
	if allowWeekends {
		return true
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func sorted(busy []Interval) []Interval {
	out := append([]Interval(nil), busy...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
