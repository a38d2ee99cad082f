package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/availability"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/calendar"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

var (
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrUnknownService   = errors.New("unknown service")

	// ErrStorageUnavailable wraps transient collaborator failures. The whole
	// computation is read-only, so callers can safely retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StaffDirectory supplies the service catalog, the service-to-staff
// eligibility relation and each staff member's calendar template.
type StaffDirectory interface {
	GetService(ctx context.Context, serviceID string) (model.Service, bool, error)
	ListQualifiedStaff(ctx context.Context, serviceID string) ([]model.StaffMember, error)
	GetWorkingHours(ctx context.Context, staffID string, weekday int) (model.WorkingHours, bool, error)
	ListApprovedLeave(ctx context.Context, staffID string, date time.Time) ([]model.LeaveRecord, error)
}

// AppointmentReader supplies booked appointments and user history. Writes go
// through the booking committer, never through the engine.
type AppointmentReader interface {
	ListBooked(ctx context.Context, staffID string, date time.Time) ([]model.Appointment, error)
	ListUserStartTimes(ctx context.Context, userID string) ([]time.Time, error)
}

type Config struct {
	Weights            Weights
	SlotStepMinutes    int // 0 means use the service duration
	MaxRecommendations int
	TopPickCount       int
	MaxRangeDays       int
}

func DefaultConfig() Config {
	return Config{
		Weights:            DefaultWeights(),
		MaxRecommendations: 10,
		TopPickCount:       1,
		MaxRangeDays:       31,
	}
}

type Request struct {
	ServiceID string
	StaffID   string // optional: restrict to one staff member
	UserID    string
	StartDate time.Time // inclusive, UTC midnight
	EndDate   time.Time // inclusive, UTC midnight
}

type Engine struct {
	staff  StaffDirectory
	appts  AppointmentReader
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(staff StaffDirectory, appts AppointmentReader, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 10
	}
	if cfg.TopPickCount <= 0 {
		cfg.TopPickCount = 1
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 31
	}
	return &Engine{
		staff:  staff,
		appts:  appts,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// dayResult is the per-(staff, date) fetch outcome. Pairs touch disjoint
// data, so they are fetched concurrently and merged before scoring.
type dayResult struct {
	staffID     string
	date        time.Time
	slots       []model.CandidateSlot
	bookedCount int
	err         error
}

// Recommend runs the read-only pipeline: resolve windows, generate candidate
// slots, score, rank. A service with no qualified working staff in range
// yields an empty list, not an error.
func (e *Engine) Recommend(ctx context.Context, req Request) ([]model.ScoredSlot, error) {
	dates, err := e.expandRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	svc, found, err := e.staff.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch service: %v", ErrStorageUnavailable, err)
	}
	if !found {
		return nil, ErrUnknownService
	}

	staff, err := e.qualifiedStaff(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(staff) == 0 {
		e.logger.Debug("no eligible staff for service", "service_id", req.ServiceID, "staff_id", req.StaffID)
		return nil, nil
	}

	history, err := e.appts.ListUserStartTimes(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch user history: %v", ErrStorageUnavailable, err)
	}

	duration := time.Duration(svc.DurationMinutes) * time.Minute
	step := duration
	if e.cfg.SlotStepMinutes > 0 {
		step = time.Duration(e.cfg.SlotStepMinutes) * time.Minute
	}
	now := e.now().UTC()

	results := make(chan dayResult, len(staff)*len(dates))
	var wg sync.WaitGroup
	for _, st := range staff {
		for _, date := range dates {
			wg.Add(1)
			go func(staffID string, date time.Time) {
				defer wg.Done()
				results <- e.fetchDay(ctx, staffID, date, duration, step, now)
			}(st.ID, date)
		}
	}
	wg.Wait()
	close(results)

	// Merge. Workload scoring needs the full per-date booked counts, so all
	// fetches complete before anything is scored.
	type staffDate struct {
		staffID string
		day     int64
	}
	counts := make(map[staffDate]int)
	maxCount := make(map[int64]int)
	slotsByPair := make(map[staffDate][]model.CandidateSlot)
	var pairs []staffDate
	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, r.err)
		}
		key := staffDate{staffID: r.staffID, day: r.date.Unix()}
		counts[key] = r.bookedCount
		if r.bookedCount > maxCount[key.day] {
			maxCount[key.day] = r.bookedCount
		}
		if len(r.slots) > 0 {
			slotsByPair[key] = r.slots
			pairs = append(pairs, key)
		}
	}

	scorer := NewScorer(e.cfg.Weights, history)
	var scored []model.ScoredSlot
	for _, key := range pairs {
		daySlots := slotsByPair[key]
		for rank, slot := range daySlots {
			scored = append(scored, scorer.Score(slot, counts[key], maxCount[key.day], rank, len(daySlots)))
		}
	}

	return Rank(scored, e.cfg.MaxRecommendations, e.cfg.TopPickCount), nil
}

func (e *Engine) fetchDay(ctx context.Context, staffID string, date time.Time, duration, step time.Duration, now time.Time) dayResult {
	res := dayResult{staffID: staffID, date: date}

	wh, found, err := e.staff.GetWorkingHours(ctx, staffID, int(date.Weekday()))
	if err != nil {
		res.err = fmt.Errorf("fetch working hours: %w", err)
		return res
	}
	booked, err := e.appts.ListBooked(ctx, staffID, date)
	if err != nil {
		res.err = fmt.Errorf("fetch booked appointments: %w", err)
		return res
	}
	res.bookedCount = len(booked)
	if !found || !wh.IsWorking {
		return res
	}

	leave, err := e.staff.ListApprovedLeave(ctx, staffID, date)
	if err != nil {
		res.err = fmt.Errorf("fetch leave: %w", err)
		return res
	}

	windows := calendar.DayWindows(date, wh, leave)
	res.slots = availability.CandidateSlots(staffID, windows, duration, step, booked, now)
	return res
}

func (e *Engine) qualifiedStaff(ctx context.Context, req Request) ([]model.StaffMember, error) {
	staff, err := e.staff.ListQualifiedStaff(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: list qualified staff: %v", ErrStorageUnavailable, err)
	}
	if req.StaffID == "" {
		return staff, nil
	}
	for _, st := range staff {
		if st.ID == req.StaffID {
			return []model.StaffMember{st}, nil
		}
	}
	// Requested staff member exists but is not qualified (or not active):
	// same outcome as no eligible staff.
	return nil, nil
}

func (e *Engine) expandRange(start, end time.Time) ([]time.Time, error) {
	start = midnightUTC(start)
	end = midnightUTC(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidDateRange, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > e.cfg.MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days exceeds maximum of %d", ErrInvalidDateRange, days, e.cfg.MaxRangeDays)
	}
	dates := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}

func midnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
