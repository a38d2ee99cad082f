package availability

import (
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/calendar"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func window(startHour, endHour int) calendar.Interval {
	return calendar.Interval{Start: monday.Add(time.Duration(startHour) * time.Hour), End: monday.Add(time.Duration(endHour) * time.Hour)}
}

func bookedAppt(start, end time.Time) model.Appointment {
	return model.Appointment{StaffID: "s1", StartTime: start, EndTime: end, Status: model.StatusBooked}
}

// Staff works 09:00-12:00, 30-minute service at a 30-minute step: six slots.
func TestCandidateSlots_FullMorning(t *testing.T) {
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 12)}, 30*time.Minute, 30*time.Minute, nil, monday)
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	for i, s := range slots {
		wantStart := monday.Add(9*time.Hour + time.Duration(i*30)*time.Minute)
		if !s.Start.Equal(wantStart) {
			t.Fatalf("slot %d: expected start %s, got %s", i, wantStart.Format("15:04"), s.Start.Format("15:04"))
		}
		if !s.End.Equal(wantStart.Add(30 * time.Minute)) {
			t.Fatalf("slot %d: wrong end %s", i, s.End)
		}
		if s.StaffID != "s1" {
			t.Fatalf("slot %d: wrong staff %q", i, s.StaffID)
		}
	}
}

// An approved leave 10:00-10:30 resolves to two windows; only the 10:00 slot disappears.
func TestCandidateSlots_LeaveExcisesOneSlot(t *testing.T) {
	windows := calendar.Subtract(window(9, 12), []calendar.Interval{
		{Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)},
	})
	slots := CandidateSlots("s1", windows, 30*time.Minute, 30*time.Minute, nil, monday)
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(monday.Add(10 * time.Hour)) {
			t.Fatal("10:00 slot should have been excluded")
		}
	}
}

// One booked appointment 09:30-10:00 excludes exactly that slot.
func TestCandidateSlots_BookedExcisesOneSlot(t *testing.T) {
	booked := []model.Appointment{
		bookedAppt(monday.Add(9*time.Hour+30*time.Minute), monday.Add(10*time.Hour)),
	}
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 12)}, 30*time.Minute, 30*time.Minute, booked, monday)
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(monday.Add(9*time.Hour + 30*time.Minute)) {
			t.Fatal("09:30 slot should have been excluded")
		}
	}
}

func TestCandidateSlots_CancelledAppointmentsDoNotBlock(t *testing.T) {
	cancelled := model.Appointment{
		StaffID:   "s1",
		StartTime: monday.Add(9 * time.Hour),
		EndTime:   monday.Add(12 * time.Hour),
		Status:    model.StatusCancelled,
	}
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 12)}, 30*time.Minute, 30*time.Minute, []model.Appointment{cancelled}, monday)
	if len(slots) != 6 {
		t.Fatalf("expected cancelled appointment to be ignored, got %d slots", len(slots))
	}
}

func TestCandidateSlots_SkipsPastAndPresent(t *testing.T) {
	now := monday.Add(10 * time.Hour)
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 12)}, 30*time.Minute, 30*time.Minute, nil, now)
	// 09:00, 09:30 are past; 10:00 is not strictly in the future either.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(monday.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected first slot 10:30, got %s", slots[0].Start.Format("15:04"))
	}
}

func TestCandidateSlots_StepSmallerThanDuration(t *testing.T) {
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 10)}, 30*time.Minute, 15*time.Minute, nil, monday)
	// Starts 09:00, 09:15, 09:30; 09:45+30m would spill past 10:00.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
}

func TestCandidateSlots_SlotMustFitEntirely(t *testing.T) {
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 10)}, 45*time.Minute, 45*time.Minute, nil, monday)
	if len(slots) != 1 {
		t.Fatalf("expected a single 09:00 slot, got %d", len(slots))
	}
	if !slots[0].End.Equal(monday.Add(9*time.Hour + 45*time.Minute)) {
		t.Fatalf("unexpected end %s", slots[0].End)
	}
}

func TestCandidateSlots_ZeroStepDefaultsToDuration(t *testing.T) {
	slots := CandidateSlots("s1", []calendar.Interval{window(9, 11)}, time.Hour, 0, nil, monday)
	if len(slots) != 2 {
		t.Fatalf("expected 2 back-to-back slots, got %d", len(slots))
	}
}
