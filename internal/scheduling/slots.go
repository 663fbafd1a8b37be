package scheduling

import (
	"sort"
	"time"

	"github.com/omriShneor/project_concierge/internal/booking"
)

func overlapsAny(slot booking.TimeSlot, busy []booking.BusyInterval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}

// freeSlots keeps the slots that overlap no busy interval, order preserved
func freeSlots(slots []booking.TimeSlot, busy []booking.BusyInterval) []booking.TimeSlot {
	out := make([]booking.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if !overlapsAny(s, busy) {
			out = append(out, s)
		}
	}
	return out
}

func capSlots(slots []booking.TimeSlot, limit int) []booking.TimeSlot {
	if len(slots) > limit {
		return slots[:limit]
	}
	return slots
}

// rankAlternatives orders free slots by distance to the requested start,
// earlier first on ties, and keeps at most limit.
func rankAlternatives(free []booking.TimeSlot, requested time.Time, limit int) []booking.TimeSlot {
	ranked := make([]booking.TimeSlot, len(free))
	copy(ranked, free)

	sort.SliceStable(ranked, func(i, j int) bool {
		di := absDuration(ranked[i].Start.Sub(requested))
		dj := absDuration(ranked[j].Start.Sub(requested))
		if di != dj {
			return di < dj
		}
		return ranked[i].Start.Before(ranked[j].Start)
	})

	return capSlots(ranked, limit)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
