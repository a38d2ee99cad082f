package availability

import (
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/calendar"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

// CandidateSlots returns the bookable slots of the given duration inside the
// resolved windows for one staff member, skipping any slot that overlaps a
// booked appointment and any slot whose start is not strictly in the future.
// Slots are emitted in chronological order.
//
// All times are expected to be UTC. A step smaller than duration offers
// finer-grained start times; a step larger than duration leaves gaps between
// offered slots, which is allowed.
func CandidateSlots(staffID string, windows []calendar.Interval, duration, step time.Duration, booked []model.Appointment, now time.Time) []model.CandidateSlot {
	if duration <= 0 {
		return nil
	}
	if step <= 0 {
		step = duration
	}

	busy := make([]calendar.Interval, 0, len(booked))
	for _, a := range booked {
		if a.Status != model.StatusBooked {
			continue
		}
		busy = append(busy, calendar.Interval{Start: a.StartTime, End: a.EndTime})
	}

	var slots []model.CandidateSlot
	for _, win := range windows {
		if !win.End.After(win.Start) {
			continue
		}
		for t := win.Start; !t.Add(duration).After(win.End); t = t.Add(step) {
			if !t.After(now) {
				continue
			}
			if overlapsAny(t, t.Add(duration), busy) {
				continue
			}
			slots = append(slots, model.CandidateSlot{
				StaffID: staffID,
				Start:   t,
				End:     t.Add(duration),
			})
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []calendar.Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
