package appointment

import (
	"fmt"
	"sort"
	"time"
)

// FreeSlots subtracts busy intervals from the working windows and slices the
// remaining gaps into granularity-sized slots. A trailing remainder shorter
// than one granularity unit is dropped. The result is ordered by start.
func FreeSlots(working, busy []Interval, granularity time.Duration) []Slot {
	if granularity <= 0 || len(working) == 0 {
		return []Slot{}
	}

	windows := append([]Interval(nil), working...)
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	merged := mergeIntervals(busy)

	slots := []Slot{}
	for _, w := range windows {
		for _, gap := range subtract(w, merged) {
			slots = append(slots, sliceGap(gap, granularity)...)
		}
	}
	return slots
}

// mergeIntervals sorts by start and joins overlapping or touching intervals.
func mergeIntervals(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]Interval(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract returns the parts of window not covered by busy. busy must be
// sorted and merged.
func subtract(window Interval, busy []Interval) []Interval {
	var gaps []Interval
	cursor := window.Start
	for _, b := range busy {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
		if !cursor.Before(window.End) {
			return gaps
		}
	}
	if cursor.Before(window.End) {
		gaps = append(gaps, Interval{Start: cursor, End: window.End})
	}
	return gaps
}

func sliceGap(gap Interval, granularity time.Duration) []Slot {
	var slots []Slot
	for t := gap.Start; !t.Add(granularity).After(gap.End); t = t.Add(granularity) {
		slots = append(slots, Slot{Start: t, End: t.Add(granularity)})
	}
	return slots
}

// Covers reports whether want is exactly tiled by consecutive slots.
func Covers(slots []Slot, want Interval) bool {
	if !want.Start.Before(want.End) {
		return false
	}
	i := sort.Search(len(slots), func(i int) bool { return !slots[i].Start.Before(want.Start) })
	if i == len(slots) || !slots[i].Start.Equal(want.Start) {
		return false
	}
	cursor := want.Start
	for ; i < len(slots); i++ {
		if !slots[i].Start.Equal(cursor) {
			return false
		}
		cursor = slots[i].End
		if cursor.Equal(want.End) {
			return true
		}
		if cursor.After(want.End) {
			return false
		}
	}
	return false
}

// checkNoOverlap verifies the committed set read from storage. appts must be
// ordered by start.
func checkNoOverlap(appts []Appointment) error {
	for i := 1; i < len(appts); i++ {
		prev, cur := appts[i-1], appts[i]
		if cur.Start.Before(prev.End) {
			return fmt.Errorf("%w: appointments %s and %s overlap", ErrInconsistentState, prev.ID, cur.ID)
		}
	}
	return nil
}

func clip(iv, bounds Interval) Interval {
	if iv.Start.Before(bounds.Start) {
		iv.Start = bounds.Start
	}
	if iv.End.After(bounds.End) {
		iv.End = bounds.End
	}
	return iv
}
