package calendar

import (
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// DayWindows resolves the availability windows for one staff member on one
// date: the weekly working-hours entry minus approved leave. The result is
// ordered and non-overlapping. A non-working weekday or approved full-day
// leave yields no windows.
func DayWindows(date time.Time, wh model.WorkingHours, leave []model.LeaveRecord) []Interval {
	if !wh.IsWorking {
		return nil
	}

	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	base := Interval{
		Start: midnight.Add(time.Duration(wh.StartMinute) * time.Minute),
		End:   midnight.Add(time.Duration(wh.EndMinute) * time.Minute),
	}
	if !base.End.After(base.Start) {
		return nil
	}

	var blocks []Interval
	for _, l := range leave {
		if l.Status != model.LeaveApproved {
			continue
		}
		if l.StartTime == nil || l.EndTime == nil {
			// Full-day leave consumes the whole working window.
			return nil
		}
		blocks = append(blocks, Interval{Start: l.StartTime.UTC(), End: l.EndTime.UTC()})
	}

	return Subtract(base, blocks)
}

// Subtract removes blocks from base, returning the leftover windows in order.
// Blocks are clipped to base first; a block covering the middle of base splits
// it in two. Subtraction is commutative over blocks, so input order does not
// matter.
func Subtract(base Interval, blocks []Interval) []Interval {
	if !base.End.After(base.Start) {
		return nil
	}

	var clipped []Interval
	for _, b := range blocks {
		s, e := b.Start, b.End
		if !e.After(base.Start) || !s.Before(base.End) {
			continue
		}
		if s.Before(base.Start) {
			s = base.Start
		}
		if e.After(base.End) {
			e = base.End
		}
		if e.After(s) {
			clipped = append(clipped, Interval{Start: s, End: e})
		}
	}
	if len(clipped) == 0 {
		return []Interval{base}
	}

	sortIntervals(clipped)
	merged := make([]Interval, 0, len(clipped))
	for _, cur := range clipped {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}

	var out []Interval
	cursor := base.Start
	for _, m := range merged {
		if m.Start.After(cursor) {
			out = append(out, Interval{Start: cursor, End: m.Start})
		}
		if m.End.After(cursor) {
			cursor = m.End
		}
	}
	if base.End.After(cursor) {
		out = append(out, Interval{Start: cursor, End: base.End})
	}
	return out
}

func sortIntervals(in []Interval) {
	// Small n; insertion sort keeps deps minimal.
	for i := 1; i < len(in); i++ {
		j := i
		for j > 0 && (in[j].Start.Before(in[j-1].Start) || (in[j].Start.Equal(in[j-1].Start) && in[j].End.Before(in[j-1].End))) {
			in[j], in[j-1] = in[j-1], in[j]
			j--
		}
	}
}
