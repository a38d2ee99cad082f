package recommend

import (
	"sort"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

const (
	LabelBestMatch = "Best Match"
	LabelGreat     = "Great"
	LabelGood      = "Good"
	LabelAvailable = "Available"
)

// Label maps a total score to its display label using fixed thresholds.
func Label(total int) string {
	switch {
	case total >= 90:
		return LabelBestMatch
	case total >= 80:
		return LabelGreat
	case total >= 70:
		return LabelGood
	default:
		return LabelAvailable
	}
}

// Rank orders scored slots by total score descending, breaking ties by
// earlier start time and then lower staff id so identical inputs always
// produce identical output. Duplicate (staff, start) entries are dropped,
// labels assigned, the first topPicks slots flagged, and the list truncated
// to maxLen. Empty input yields an empty (nil) list.
func Rank(slots []model.ScoredSlot, maxLen, topPicks int) []model.ScoredSlot {
	if len(slots) == 0 {
		return nil
	}

	ranked := make([]model.ScoredSlot, len(slots))
	copy(ranked, slots)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		// Start ordering covers both the date and the time-of-day tie-breaks.
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.StaffID < b.StaffID
	})

	seen := make(map[slotKey]struct{}, len(ranked))
	out := ranked[:0]
	for _, s := range ranked {
		k := slotKey{staffID: s.StaffID, start: s.Start.Unix()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		s.Label = Label(s.Total)
		s.TopPick = len(out) < topPicks
		out = append(out, s)
		if maxLen > 0 && len(out) == maxLen {
			break
		}
	}
	return out
}

type slotKey struct {
	staffID string
	start   int64
}
