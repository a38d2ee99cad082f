package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

// Outcome tags a commit attempt. Conflict and transient failure are expected
// operating conditions, not programming errors, so they travel in the result
// instead of the error return.
type Outcome string

const (
	OutcomeBooked           Outcome = "booked"
	OutcomeConflict         Outcome = "conflict"
	OutcomeTransientFailure Outcome = "transient_failure"
)

type Result struct {
	Outcome     Outcome
	Appointment model.Appointment
}

var (
	// ErrSlotConflict reports that the requested interval overlaps a booked
	// appointment for the same staff member.
	ErrSlotConflict = errors.New("slot no longer available")

	// ErrRetryable reports a commit attempt that lost a serialization race
	// and can be retried as-is.
	ErrRetryable = errors.New("retryable commit failure")
)

// Store persists one appointment atomically. Implementations must reject an
// insert whose (staff, interval) overlaps an existing booked appointment and
// surface that as ErrSlotConflict; races that are safe to replay surface as
// ErrRetryable.
type Store interface {
	CreateBooked(ctx context.Context, appt model.Appointment) (model.Appointment, error)
}

// Notifier emits the booking-confirmed event. Failures are logged and
// swallowed: notification is best-effort and never unwinds a commit.
type Notifier interface {
	BookingConfirmed(ctx context.Context, appt model.Appointment) error
}

type Committer struct {
	store       Store
	notifier    Notifier
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

func NewCommitter(store Store, notifier Notifier, logger *slog.Logger, maxAttempts int) *Committer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Committer{
		store:       store,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     25 * time.Millisecond,
	}
}

type Request struct {
	ServiceID string
	StaffID   string
	UserID    string
	StartTime time.Time
	EndTime   time.Time
}

func (r Request) validate() error {
	if r.ServiceID == "" || r.StaffID == "" || r.UserID == "" {
		return fmt.Errorf("service, staff and user ids are required")
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("end time %s not after start time %s", r.EndTime.Format(time.RFC3339), r.StartTime.Format(time.RFC3339))
	}
	return nil
}

// Commit books the slot or reports why it could not. Overlap rejection is
// enforced by the store per staff member, so concurrent commits for different
// staff never contend. Retries cover only races the store marks replayable;
// a genuine overlap returns OutcomeConflict on the first attempt.
func (c *Committer) Commit(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	appt := model.Appointment{
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		UserID:    req.UserID,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		Status:    model.StatusBooked,
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		created, err := c.store.CreateBooked(ctx, appt)
		if err == nil {
			c.notify(ctx, created)
			return Result{Outcome: OutcomeBooked, Appointment: created}, nil
		}
		if errors.Is(err, ErrSlotConflict) {
			return Result{Outcome: OutcomeConflict}, nil
		}
		if !errors.Is(err, ErrRetryable) {
			return Result{Outcome: OutcomeTransientFailure}, err
		}
		lastErr = err
		c.logger.Warn("commit attempt lost serialization race",
			"attempt", attempt, "staff_id", req.StaffID, "start_time", req.StartTime)
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return Result{Outcome: OutcomeTransientFailure}, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}
	}
	return Result{Outcome: OutcomeTransientFailure}, fmt.Errorf("commit retries exhausted: %w", lastErr)
}

func (c *Committer) notify(ctx context.Context, appt model.Appointment) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.BookingConfirmed(ctx, appt); err != nil {
		c.logger.Error("booking confirmation notification failed",
			"appointment_id", appt.ID, "error", err)
	}
}
