package slots

import (
	"math/rand"
	"testing"
	"time"

	"github.com/fentz26/cadence/internal/models"
)

func nineToFive() models.WorkingHours {
	return models.WorkingHours{Start: models.MustClock("09:00"), End: models.MustClock("17:00")}
}

// monday returns 2025-03-03 (a Monday) at the given clock time in UTC.
func monday(hour, minute int) time.Time {
	return time.Date(2025, 3, 3, hour, minute, 0, 0, time.UTC)
}

func TestNextAvailableSlotSkipsConflict(t *testing.T) {
	busy := []Interval{{Start: monday(10, 0), End: monday(11, 0)}}

	slot, ok := NextAvailableSlot(monday(9, 0), 2*time.Hour, busy, nineToFive(), false, 0)
	if !ok {
		t.Fatal("Expected a slot")
	}
	if !slot.Start.Equal(monday(11, 0)) || !slot.End.Equal(monday(13, 0)) {
		t.Errorf("Expected 11:00-13:00, got %s-%s", slot.Start.Format("15:04"), slot.End.Format("15:04"))
	}
}

func TestNextAvailableSlotSnapping(t *testing.T) {
	friday := time.Date(2025, 3, 7, 16, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		earliest      time.Time
		duration      time.Duration
		allowWeekends bool
		want          time.Time
	}{
		{"before working start", monday(7, 0), time.Hour, false, monday(9, 0)},
		{"exactly at start", monday(9, 0), time.Hour, false, monday(9, 0)},
		{"at working end", monday(17, 0), time.Hour, false, monday(9, 0).AddDate(0, 0, 1)},
		{"does not fit today", monday(16, 30), time.Hour, false, monday(9, 0).AddDate(0, 0, 1)},
		{"friday late skips weekend", friday, 2 * time.Hour, false, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{"friday late with weekends", friday, 2 * time.Hour, true, time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)},
		{"saturday start", time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC), time.Hour, false, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := NextAvailableSlot(tt.earliest, tt.duration, nil, nineToFive(), tt.allowWeekends, 0)
			if !ok {
				t.Fatal("Expected a slot")
			}
			if !slot.Start.Equal(tt.want) {
				t.Errorf("Expected start %v, got %v", tt.want, slot.Start)
			}
			if slot.Duration() != tt.duration {
				t.Errorf("Expected duration %v, got %v", tt.duration, slot.Duration())
			}
		})
	}
}

func TestNextAvailableSlotInfeasible(t *testing.T) {
	earliest := monday(9, 0)

	// Longer than a working day.
	for i := 0; i < 2; i++ {
		if _, ok := NextAvailableSlot(earliest, 9*time.Hour, nil, nineToFive(), false, 10); ok {
			t.Fatal("Expected infeasible result for a 9h task in an 8h day")
		}
	}

	// Calendar fully booked beyond the horizon.
	busy := []Interval{{Start: earliest.Add(-time.Hour), End: earliest.AddDate(0, 0, 90)}}
	if _, ok := NextAvailableSlot(earliest, time.Hour, busy, nineToFive(), true, 60); ok {
		t.Error("Expected infeasible result when the horizon is booked")
	}

	if _, ok := NextAvailableSlot(earliest, 0, nil, nineToFive(), false, 60); ok {
		t.Error("Expected infeasible result for zero duration")
	}
}

func TestNextAvailableSlotNeverViolatesConstraints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	hours := nineToFive()

	for round := 0; round < 200; round++ {
		var busy []Interval
		for i := 0; i < 12; i++ {
			start := monday(0, 0).Add(time.Duration(rng.Intn(14*24*4)) * 15 * time.Minute)
			busy = append(busy, Interval{Start: start, End: start.Add(time.Duration(1+rng.Intn(12)) * 15 * time.Minute)})
		}
		earliest := monday(0, 0).Add(time.Duration(rng.Intn(7*24)) * time.Hour)
		duration := time.Duration(1+rng.Intn(16)) * 15 * time.Minute

		slot, ok := NextAvailableSlot(earliest, duration, busy, hours, false, 30)
		if !ok {
			t.Fatalf("round %d: expected a slot", round)
		}
		if slot.Start.Before(earliest) {
			t.Fatalf("round %d: slot starts before earliest", round)
		}
		if slot.Duration() != duration {
			t.Fatalf("round %d: wrong duration %v", round, slot.Duration())
		}
		dayStart, dayEnd := hours.Bounds(slot.Start)
		if slot.Start.Before(dayStart) || slot.End.After(dayEnd) {
			t.Fatalf("round %d: slot %v outside working hours", round, slot)
		}
		if wd := slot.Start.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Fatalf("round %d: slot on weekend", round)
		}
		for _, b := range busy {
			if slot.Overlaps(b) {
				t.Fatalf("round %d: slot %v overlaps busy %v", round, slot, b)
			}
		}
	}
}

func TestFreeSlotsPartitionWindow(t *testing.T) {
	windowStart, windowEnd := monday(8, 0), monday(18, 0)
	busy := []Interval{
		{Start: monday(13, 0), End: monday(14, 0)},
		{Start: monday(7, 0), End: monday(9, 0)},
		{Start: monday(10, 0), End: monday(10, 30)},
		{Start: monday(17, 30), End: monday(19, 0)},
	}

	free := FreeSlots(busy, windowStart, windowEnd, 0)

	var total time.Duration
	for i, f := range free {
		total += f.Duration()
		if i > 0 && f.Start.Before(free[i-1].End) {
			t.Errorf("Gaps out of order or overlapping: %v then %v", free[i-1], f)
		}
		for _, b := range busy {
			if f.Overlaps(b) {
				t.Errorf("Gap %v overlaps busy %v", f, b)
			}
		}
	}
	for _, b := range busy {
		start, end := b.Start, b.End
		if start.Before(windowStart) {
			start = windowStart
		}
		if end.After(windowEnd) {
			end = windowEnd
		}
		total += end.Sub(start)
	}
	if total != windowEnd.Sub(windowStart) {
		t.Errorf("Expected gaps and busy to cover %v, got %v", windowEnd.Sub(windowStart), total)
	}
	if len(free) != 3 {
		t.Errorf("Expected 3 gaps, got %d: %v", len(free), free)
	}
}

func TestFreeSlotsMinDurationAndMerge(t *testing.T) {
	busy := []Interval{
		{Start: monday(9, 0), End: monday(11, 0)},
		{Start: monday(10, 0), End: monday(12, 0)},
		{Start: monday(12, 15), End: monday(13, 0)},
	}

	free := FreeSlots(busy, monday(9, 0), monday(17, 0), 30*time.Minute)
	if len(free) != 1 {
		t.Fatalf("Expected 1 gap, got %d: %v", len(free), free)
	}
	if !free[0].Start.Equal(monday(13, 0)) || !free[0].End.Equal(monday(17, 0)) {
		t.Errorf("Expected 13:00-17:00, got %v", free[0])
	}

	if got := FreeSlots(nil, monday(12, 0), monday(9, 0), 0); got != nil {
		t.Errorf("Expected nil for inverted window, got %v", got)
	}
}

func TestDailyBreaks(t *testing.T) {
	hours := nineToFive()
	if got := DailyBreaks(monday(0, 0), monday(23, 0), hours); got != nil {
		t.Errorf("Expected no breaks without a break window, got %v", got)
	}

	breakStart := models.MustClock("12:00")
	hours.BreakStart = &breakStart
	hours.BreakDuration = 1

	breaks := DailyBreaks(monday(12, 30), monday(12, 30).AddDate(0, 0, 2), hours)
	if len(breaks) != 3 {
		t.Fatalf("Expected 3 breaks, got %d", len(breaks))
	}
	if !breaks[0].Start.Equal(monday(12, 0)) || !breaks[0].End.Equal(monday(13, 0)) {
		t.Errorf("Unexpected first break %v", breaks[0])
	}
	if !breaks[2].Start.Equal(monday(12, 0).AddDate(0, 0, 2)) {
		t.Errorf("Unexpected last break %v", breaks[2])
	}
}

func TestPad(t *testing.T) {
	i := Interval{Start: monday(9, 0), End: monday(10, 0)}
	if got := Pad(i, 15*time.Minute); !got.End.Equal(monday(10, 15)) {
		t.Errorf("Expected padded end 10:15, got %v", got.End)
	}
	if got := Pad(i, -time.Minute); got != i {
		t.Errorf("Expected negative buffer to be ignored, got %v", got)
	}
}
