package calendar

import (
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func workingDay(startMin, endMin int) model.WorkingHours {
	return model.WorkingHours{StaffID: "s1", Weekday: 1, IsWorking: true, StartMinute: startMin, EndMinute: endMin}
}

func timedLeave(startMin, endMin int, status string) model.LeaveRecord {
	s := monday.Add(time.Duration(startMin) * time.Minute)
	e := monday.Add(time.Duration(endMin) * time.Minute)
	return model.LeaveRecord{StaffID: "s1", Date: monday, StartTime: &s, EndTime: &e, Status: status}
}

func TestDayWindows_NonWorkingDay(t *testing.T) {
	wh := model.WorkingHours{StaffID: "s1", Weekday: 1, IsWorking: false, StartMinute: 540, EndMinute: 1020}
	leave := []model.LeaveRecord{timedLeave(600, 660, model.LeaveApproved)}
	if got := DayWindows(monday, wh, leave); got != nil {
		t.Fatalf("expected no windows on a non-working day, got %v", got)
	}
}

func TestDayWindows_FullDayLeave(t *testing.T) {
	leave := []model.LeaveRecord{{StaffID: "s1", Date: monday, Status: model.LeaveApproved}}
	if got := DayWindows(monday, workingDay(540, 1020), leave); got != nil {
		t.Fatalf("expected full-day leave to empty the day, got %v", got)
	}
}

func TestDayWindows_UnapprovedLeaveIgnored(t *testing.T) {
	leave := []model.LeaveRecord{
		timedLeave(600, 660, model.LeaveRequested),
		timedLeave(600, 660, model.LeaveRejected),
	}
	got := DayWindows(monday, workingDay(540, 720), leave)
	if len(got) != 1 {
		t.Fatalf("expected 1 window, got %d", len(got))
	}
	if !got[0].Start.Equal(monday.Add(9*time.Hour)) || !got[0].End.Equal(monday.Add(12*time.Hour)) {
		t.Fatalf("unexpected window %v", got[0])
	}
}

func TestDayWindows_MiddleLeaveSplitsWindow(t *testing.T) {
	leave := []model.LeaveRecord{timedLeave(600, 630, model.LeaveApproved)}
	got := DayWindows(monday, workingDay(540, 720), leave)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d: %v", len(got), got)
	}
	if !got[0].End.Equal(monday.Add(10 * time.Hour)) {
		t.Fatalf("first window should end 10:00, got %s", got[0].End)
	}
	if !got[1].Start.Equal(monday.Add(10*time.Hour + 30*time.Minute)) {
		t.Fatalf("second window should start 10:30, got %s", got[1].Start)
	}
}

func TestDayWindows_LeaveOutsideHoursHasNoEffect(t *testing.T) {
	leave := []model.LeaveRecord{timedLeave(780, 840, model.LeaveApproved)} // 13:00-14:00, after hours
	got := DayWindows(monday, workingDay(540, 720), leave)
	if len(got) != 1 {
		t.Fatalf("expected the working window untouched, got %v", got)
	}
}

func TestDayWindows_CumulativeLeaveOrderIndependent(t *testing.T) {
	a := timedLeave(570, 600, model.LeaveApproved)
	b := timedLeave(660, 690, model.LeaveApproved)

	first := DayWindows(monday, workingDay(540, 720), []model.LeaveRecord{a, b})
	second := DayWindows(monday, workingDay(540, 720), []model.LeaveRecord{b, a})
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 windows each, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Fatalf("window %d differs by leave order: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestSubtract_OverlappingBlocksMerge(t *testing.T) {
	base := Interval{Start: monday.Add(9 * time.Hour), End: monday.Add(12 * time.Hour)}
	blocks := []Interval{
		{Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour)},
		{Start: monday.Add(10*time.Hour + 30*time.Minute), End: monday.Add(11*time.Hour + 30*time.Minute)},
	}
	got := Subtract(base, blocks)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %v", got)
	}
	if !got[1].Start.Equal(monday.Add(11*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected second window to start 11:30, got %s", got[1].Start)
	}
}

func TestSubtract_BlockCoveringBase(t *testing.T) {
	base := Interval{Start: monday.Add(9 * time.Hour), End: monday.Add(12 * time.Hour)}
	blocks := []Interval{{Start: monday.Add(8 * time.Hour), End: monday.Add(13 * time.Hour)}}
	if got := Subtract(base, blocks); got != nil {
		t.Fatalf("expected nothing left, got %v", got)
	}
}
