package recommend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

// halfDayMinutes is the preference decay horizon: a slot exactly at the
// user's preferred time of day scores 100, one twelve hours away scores 0.
const halfDayMinutes = 720

// neutralPreference is used when the user has no booking history.
const neutralPreference = 50.0

type Weights struct {
	Preference float64
	Workload   float64
	TimeFit    float64
}

func DefaultWeights() Weights {
	return Weights{Preference: 0.3, Workload: 0.4, TimeFit: 0.3}
}

func (w Weights) Validate() error {
	if w.Preference < 0 || w.Workload < 0 || w.TimeFit < 0 {
		return fmt.Errorf("score weights must be non-negative (got %+v)", w)
	}
	sum := w.Preference + w.Workload + w.TimeFit
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("score weights must sum to 1.0 (got %v)", sum)
	}
	return nil
}

// Scorer computes sub-scores and weighted totals for candidate slots. It is
// built once per recommendation request because the preference baseline
// depends on the requesting user's history.
type Scorer struct {
	weights         Weights
	preferredMinute int
	hasHistory      bool
}

// NewScorer derives the user's preferred time of day as the median
// minute-of-day of their past appointment start times. An empty history makes
// the preference score a flat neutral value.
func NewScorer(weights Weights, history []time.Time) *Scorer {
	s := &Scorer{weights: weights}
	if len(history) == 0 {
		return s
	}

	minutes := make([]int, 0, len(history))
	for _, t := range history {
		u := t.UTC()
		minutes = append(minutes, u.Hour()*60+u.Minute())
	}
	sort.Ints(minutes)

	mid := len(minutes) / 2
	if len(minutes)%2 == 1 {
		s.preferredMinute = minutes[mid]
	} else {
		s.preferredMinute = (minutes[mid-1] + minutes[mid]) / 2
	}
	s.hasHistory = true
	return s
}

// PreferenceScore decays linearly with distance from the preferred
// minute-of-day, hitting zero at twelve hours.
func (s *Scorer) PreferenceScore(slotStart time.Time) float64 {
	if !s.hasHistory {
		return neutralPreference
	}
	u := slotStart.UTC()
	slotMinute := u.Hour()*60 + u.Minute()
	dist := math.Abs(float64(slotMinute - s.preferredMinute))
	return 100 * math.Max(0, 1-dist/halfDayMinutes)
}

// WorkloadScore rewards less-loaded staff: count is this staff member's
// booked appointments on the slot's date, maxCount the maximum across all
// qualified staff for that date. Everyone scores 100 when nobody is booked.
func WorkloadScore(count, maxCount int) float64 {
	if maxCount <= 0 {
		return 100
	}
	return 100 * (1 - float64(count)/float64(maxCount))
}

// TimeFitScore rewards earlier slots: rank is the slot's 0-based
// chronological position among the same staff member's candidates on that
// date, total the number of those candidates.
func TimeFitScore(rank, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * (1 - float64(rank)/float64(total))
}

// Score combines the three sub-scores into a ScoredSlot. The total is the
// weighted sum rounded to the nearest integer and clamped to [0,100].
func (s *Scorer) Score(slot model.CandidateSlot, count, maxCount, rank, total int) model.ScoredSlot {
	pref := s.PreferenceScore(slot.Start)
	work := WorkloadScore(count, maxCount)
	fit := TimeFitScore(rank, total)

	weighted := s.weights.Preference*pref + s.weights.Workload*work + s.weights.TimeFit*fit
	totalScore := int(math.Round(weighted))
	if totalScore < 0 {
		totalScore = 0
	}
	if totalScore > 100 {
		totalScore = 100
	}

	return model.ScoredSlot{
		CandidateSlot: slot,
		Preference:    pref,
		Workload:      work,
		TimeFit:       fit,
		Total:         totalScore,
	}
}
