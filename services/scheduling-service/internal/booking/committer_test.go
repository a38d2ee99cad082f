package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

type memStore struct {
	mu       sync.Mutex
	booked   []model.Appointment
	failures []error // consumed per call before the overlap check
}

func (m *memStore) CreateBooked(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		if err != nil {
			return model.Appointment{}, err
		}
	}
	for _, b := range m.booked {
		if b.StaffID == appt.StaffID && appt.StartTime.Before(b.EndTime) && b.StartTime.Before(appt.EndTime) {
			return model.Appointment{}, ErrSlotConflict
		}
	}
	appt.ID = "appt-1"
	m.booked = append(m.booked, appt)
	return appt, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []model.Appointment
	err   error
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, appt model.Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, appt)
	return n.err
}

func testRequest() Request {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return Request{
		ServiceID: "svc", StaffID: "s1", UserID: "u1",
		StartTime: start, EndTime: start.Add(30 * time.Minute),
	}
}

func newTestCommitter(store Store, notifier Notifier) *Committer {
	c := NewCommitter(store, notifier, slog.New(slog.DiscardHandler), 3)
	c.backoff = time.Millisecond
	return c
}

func TestCommitBooks(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	c := newTestCommitter(store, notifier)

	res, err := c.Commit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Outcome != OutcomeBooked {
		t.Fatalf("expected booked, got %s", res.Outcome)
	}
	if res.Appointment.ID == "" || res.Appointment.Status != model.StatusBooked {
		t.Fatalf("unexpected appointment: %+v", res.Appointment)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
}

func TestCommitConflictIsNotAnError(t *testing.T) {
	store := &memStore{}
	c := newTestCommitter(store, nil)
	ctx := context.Background()

	if _, err := c.Commit(ctx, testRequest()); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	res, err := c.Commit(ctx, testRequest())
	if err != nil {
		t.Fatalf("conflicting commit must not error: %v", err)
	}
	if res.Outcome != OutcomeConflict {
		t.Fatalf("expected conflict, got %s", res.Outcome)
	}
	if len(store.booked) != 1 {
		t.Fatalf("conflict must not persist anything, have %d", len(store.booked))
	}
}

func TestCommitRetriesSerializationRaces(t *testing.T) {
	store := &memStore{failures: []error{ErrRetryable, ErrRetryable}}
	c := newTestCommitter(store, nil)

	res, err := c.Commit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Commit after retries: %v", err)
	}
	if res.Outcome != OutcomeBooked {
		t.Fatalf("expected booked after retries, got %s", res.Outcome)
	}
}

func TestCommitExhaustsRetries(t *testing.T) {
	store := &memStore{failures: []error{ErrRetryable, ErrRetryable, ErrRetryable}}
	c := newTestCommitter(store, nil)

	res, err := c.Commit(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if res.Outcome != OutcomeTransientFailure {
		t.Fatalf("expected transient failure, got %s", res.Outcome)
	}
}

func TestCommitTransientStorageFailure(t *testing.T) {
	store := &memStore{failures: []error{errors.New("connection reset")}}
	c := newTestCommitter(store, nil)

	res, err := c.Commit(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error for non-retryable storage failure")
	}
	if res.Outcome != OutcomeTransientFailure {
		t.Fatalf("expected transient failure, got %s", res.Outcome)
	}
}

func TestCommitNotificationFailureDoesNotUnwind(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{err: errors.New("broker down")}
	c := newTestCommitter(store, notifier)

	res, err := c.Commit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Outcome != OutcomeBooked {
		t.Fatalf("notification failure must not affect the booking, got %s", res.Outcome)
	}
	if len(store.booked) != 1 {
		t.Fatalf("booking should be persisted, have %d", len(store.booked))
	}
}

func TestConcurrentCommitsExactlyOneWins(t *testing.T) {
	store := &memStore{}
	c := newTestCommitter(store, nil)
	req := testRequest()

	const workers = 8
	results := make(chan Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Commit(context.Background(), req)
			if err != nil {
				t.Errorf("Commit: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	var booked, conflicts int
	for res := range results {
		switch res.Outcome {
		case OutcomeBooked:
			booked++
		case OutcomeConflict:
			conflicts++
		}
	}
	if booked != 1 {
		t.Fatalf("expected exactly one winner, got %d", booked)
	}
	if conflicts != workers-1 {
		t.Fatalf("expected %d conflicts, got %d", workers-1, conflicts)
	}
	if len(store.booked) != 1 {
		t.Fatalf("expected one persisted appointment, got %d", len(store.booked))
	}
}

func TestCommitRejectsInvalidRequest(t *testing.T) {
	c := newTestCommitter(&memStore{}, nil)
	req := testRequest()
	req.EndTime = req.StartTime
	if _, err := c.Commit(context.Background(), req); err == nil {
		t.Fatal("expected validation error for zero-length interval")
	}
	req = testRequest()
	req.UserID = ""
	if _, err := c.Commit(context.Background(), req); err == nil {
		t.Fatal("expected validation error for missing user id")
	}
}
