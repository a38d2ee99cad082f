package recommend

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

type fakeDirectory struct {
	services map[string]model.Service
	staff    map[string][]model.StaffMember // serviceID -> qualified staff
	hours    map[string]map[int]model.WorkingHours
	leave    map[string][]model.LeaveRecord
	err      error
}

func (f *fakeDirectory) GetService(_ context.Context, serviceID string) (model.Service, bool, error) {
	if f.err != nil {
		return model.Service{}, false, f.err
	}
	svc, ok := f.services[serviceID]
	return svc, ok, nil
}

func (f *fakeDirectory) ListQualifiedStaff(_ context.Context, serviceID string) ([]model.StaffMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.staff[serviceID], nil
}

func (f *fakeDirectory) GetWorkingHours(_ context.Context, staffID string, weekday int) (model.WorkingHours, bool, error) {
	wh, ok := f.hours[staffID][weekday]
	return wh, ok, nil
}

func (f *fakeDirectory) ListApprovedLeave(_ context.Context, staffID string, date time.Time) ([]model.LeaveRecord, error) {
	var out []model.LeaveRecord
	for _, l := range f.leave[staffID] {
		if l.Date.Equal(date) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeAppointments struct {
	booked  map[string][]model.Appointment // staffID -> booked
	history map[string][]time.Time
	err     error
}

func (f *fakeAppointments) ListBooked(_ context.Context, staffID string, date time.Time) ([]model.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Appointment
	for _, a := range f.booked[staffID] {
		if a.StartTime.Year() == date.Year() && a.StartTime.YearDay() == date.YearDay() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAppointments) ListUserStartTimes(_ context.Context, userID string) ([]time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history[userID], nil
}

func fullWeekHours(startMinute, endMinute int) map[int]model.WorkingHours {
	out := make(map[int]model.WorkingHours)
	for wd := 1; wd <= 5; wd++ {
		out[wd] = model.WorkingHours{Weekday: wd, IsWorking: true, StartMinute: startMinute, EndMinute: endMinute}
	}
	out[0] = model.WorkingHours{Weekday: 0}
	out[6] = model.WorkingHours{Weekday: 6}
	return out
}

func testEngine(dir *fakeDirectory, appts *fakeAppointments) *Engine {
	e := NewEngine(dir, appts, DefaultConfig(), slog.New(slog.DiscardHandler))
	e.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

var engineMonday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestRecommendHappyPath(t *testing.T) {
	dir := &fakeDirectory{
		services: map[string]model.Service{"svc": {ID: "svc", Name: "Cut", DurationMinutes: 30}},
		staff:    map[string][]model.StaffMember{"svc": {{ID: "s1", IsActive: true}}},
		hours:    map[string]map[int]model.WorkingHours{"s1": fullWeekHours(540, 600)},
	}
	appts := &fakeAppointments{}
	e := testEngine(dir, appts)

	got, err := e.Recommend(context.Background(), Request{
		ServiceID: "svc", UserID: "u1", StartDate: engineMonday, EndDate: engineMonday,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 slots for a one-hour window, got %d", len(got))
	}
	if !got[0].TopPick || got[1].TopPick {
		t.Fatalf("only the first slot should be a top pick")
	}
	for i := 1; i < len(got); i++ {
		if got[i].Total > got[i-1].Total {
			t.Fatalf("results not sorted by total: %d before %d", got[i-1].Total, got[i].Total)
		}
	}
}

func TestRecommendUnknownService(t *testing.T) {
	e := testEngine(&fakeDirectory{services: map[string]model.Service{}}, &fakeAppointments{})
	_, err := e.Recommend(context.Background(), Request{ServiceID: "nope", StartDate: engineMonday, EndDate: engineMonday})
	if !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}

func TestRecommendNoEligibleStaffYieldsEmpty(t *testing.T) {
	dir := &fakeDirectory{
		services: map[string]model.Service{"svc": {ID: "svc", DurationMinutes: 30}},
		staff:    map[string][]model.StaffMember{},
	}
	e := testEngine(dir, &fakeAppointments{})
	got, err := e.Recommend(context.Background(), Request{ServiceID: "svc", StartDate: engineMonday, EndDate: engineMonday})
	if err != nil {
		t.Fatalf("no eligible staff must not be an error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d slots", len(got))
	}
}

func TestRecommendUnqualifiedStaffFilterYieldsEmpty(t *testing.T) {
	dir := &fakeDirectory{
		services: map[string]model.Service{"svc": {ID: "svc", DurationMinutes: 30}},
		staff:    map[string][]model.StaffMember{"svc": {{ID: "s1", IsActive: true}}},
		hours:    map[string]map[int]model.WorkingHours{"s1": fullWeekHours(540, 1020)},
	}
	e := testEngine(dir, &fakeAppointments{})
	got, err := e.Recommend(context.Background(), Request{
		ServiceID: "svc", StaffID: "other", StartDate: engineMonday, EndDate: engineMonday,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("requesting an unqualified staff member should yield no slots, got %d", len(got))
	}
}

func TestRecommendInvalidRange(t *testing.T) {
	e := testEngine(&fakeDirectory{}, &fakeAppointments{})

	_, err := e.Recommend(context.Background(), Request{
		ServiceID: "svc", StartDate: engineMonday, EndDate: engineMonday.AddDate(0, 0, -1),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("inverted range: expected ErrInvalidDateRange, got %v", err)
	}

	_, err = e.Recommend(context.Background(), Request{
		ServiceID: "svc", StartDate: engineMonday, EndDate: engineMonday.AddDate(0, 0, 40),
	})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("oversized range: expected ErrInvalidDateRange, got %v", err)
	}
}

func TestRecommendStorageFailureSurfaces(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("connection refused")}
	e := testEngine(dir, &fakeAppointments{})
	_, err := e.Recommend(context.Background(), Request{ServiceID: "svc", StartDate: engineMonday, EndDate: engineMonday})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestRecommendWorkloadFavorsIdleStaff(t *testing.T) {
	bookedStart := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	dir := &fakeDirectory{
		services: map[string]model.Service{"svc": {ID: "svc", DurationMinutes: 30}},
		staff: map[string][]model.StaffMember{"svc": {
			{ID: "busy", IsActive: true},
			{ID: "idle", IsActive: true},
		}},
		hours: map[string]map[int]model.WorkingHours{
			"busy": fullWeekHours(540, 600),
			"idle": fullWeekHours(540, 600),
		},
	}
	appts := &fakeAppointments{
		booked: map[string][]model.Appointment{
			"busy": {{StaffID: "busy", StartTime: bookedStart, EndTime: bookedStart.Add(30 * time.Minute), Status: model.StatusBooked}},
		},
	}
	e := testEngine(dir, appts)

	got, err := e.Recommend(context.Background(), Request{ServiceID: "svc", StartDate: engineMonday, EndDate: engineMonday})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected slots")
	}
	if got[0].StaffID != "idle" {
		t.Fatalf("idle staff should outrank busy staff, got %s first", got[0].StaffID)
	}
}

func TestRecommendTruncatesToMax(t *testing.T) {
	dir := &fakeDirectory{
		services: map[string]model.Service{"svc": {ID: "svc", DurationMinutes: 30}},
		staff:    map[string][]model.StaffMember{"svc": {{ID: "s1", IsActive: true}}},
		hours:    map[string]map[int]model.WorkingHours{"s1": fullWeekHours(540, 1020)},
	}
	e := testEngine(dir, &fakeAppointments{})

	got, err := e.Recommend(context.Background(), Request{
		ServiceID: "svc", StartDate: engineMonday, EndDate: engineMonday.AddDate(0, 0, 4),
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 recommendations, got %d", len(got))
	}
}
