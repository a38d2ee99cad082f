package recommend

import (
	"math"
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

func slotAt(hour, min int) model.CandidateSlot {
	start := time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
	return model.CandidateSlot{StaffID: "s1", Start: start, End: start.Add(30 * time.Minute)}
}

func slotStartAt(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights: %v", err)
	}
	bad := Weights{Preference: 0.5, Workload: 0.5, TimeFit: 0.5}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for weights summing to 1.5")
	}
	neg := Weights{Preference: -0.1, Workload: 0.6, TimeFit: 0.5}
	if err := neg.Validate(); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestPreferenceNeutralWithoutHistory(t *testing.T) {
	s := NewScorer(DefaultWeights(), nil)
	if got := s.PreferenceScore(slotStartAt(9, 0)); got != neutralPreference {
		t.Fatalf("expected neutral %v, got %v", neutralPreference, got)
	}
}

func TestPreferenceMedianExactMatch(t *testing.T) {
	history := []time.Time{
		time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 12, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 19, 10, 0, 0, 0, time.UTC),
	}
	s := NewScorer(DefaultWeights(), history)
	// Median minute-of-day is 10:00.
	if got := s.PreferenceScore(slotStartAt(10, 0)); got != 100 {
		t.Fatalf("slot at median should score 100, got %v", got)
	}
	// Six hours away decays halfway to zero of the linear scale.
	if got := s.PreferenceScore(slotStartAt(16, 0)); math.Abs(got-50) > 1e-9 {
		t.Fatalf("slot six hours from median should score 50, got %v", got)
	}
	// Twelve or more hours away floors at zero.
	if got := s.PreferenceScore(slotStartAt(22, 0)); got != 0 {
		t.Fatalf("slot twelve hours from median should score 0, got %v", got)
	}
}

func TestPreferenceMedianEvenHistory(t *testing.T) {
	history := []time.Time{
		time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 12, 11, 0, 0, 0, time.UTC),
	}
	s := NewScorer(DefaultWeights(), history)
	// Median of 09:00 and 11:00 is 10:00.
	if got := s.PreferenceScore(slotStartAt(10, 0)); got != 100 {
		t.Fatalf("expected 100 at midpoint median, got %v", got)
	}
}

func TestWorkloadMonotonicity(t *testing.T) {
	prev := 101.0
	for c := 0; c <= 5; c++ {
		got := WorkloadScore(c, 5)
		if got >= prev {
			t.Fatalf("workload score must strictly decrease: count=%d got %v prev %v", c, got, prev)
		}
		prev = got
	}
	if got := WorkloadScore(0, 5); got != 100 {
		t.Fatalf("empty calendar should score 100, got %v", got)
	}
	if got := WorkloadScore(5, 5); got != 0 {
		t.Fatalf("busiest staff should score 0, got %v", got)
	}
}

func TestWorkloadAllIdle(t *testing.T) {
	if got := WorkloadScore(0, 0); got != 100 {
		t.Fatalf("no bookings anywhere should score 100, got %v", got)
	}
}

func TestTimeFitEarlierSlotScoresHigher(t *testing.T) {
	first := TimeFitScore(0, 4)
	last := TimeFitScore(3, 4)
	if first != 100 {
		t.Fatalf("first slot of the day should score 100, got %v", first)
	}
	if last >= first {
		t.Fatalf("later slot must score lower: first=%v last=%v", first, last)
	}
	if got := TimeFitScore(0, 1); got != 100 {
		t.Fatalf("single slot should score 100, got %v", got)
	}
}

func TestTotalIsWeightedRoundedAndClamped(t *testing.T) {
	s := NewScorer(Weights{Preference: 0.3, Workload: 0.4, TimeFit: 0.3}, nil)
	got := s.Score(slotAt(9, 0), 0, 0, 0, 1)
	// neutral 50 preference, 100 workload, 100 time-fit:
	// 0.3*50 + 0.4*100 + 0.3*100 = 85
	if got.Total != 85 {
		t.Fatalf("expected total 85, got %d", got.Total)
	}
	if got.Preference != 50 || got.Workload != 100 || got.TimeFit != 100 {
		t.Fatalf("unexpected components: %+v", got)
	}
	if got.Total < 0 || got.Total > 100 {
		t.Fatalf("total out of range: %d", got.Total)
	}
}
