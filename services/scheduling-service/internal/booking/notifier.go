package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/outbox"
)

// OutboxNotifier emits booking-confirmed events through the outbox table.
// The insert happens after the appointment row is already committed, so the
// event rides its own statement and a failure only costs the notification.
type OutboxNotifier struct {
	repo *outbox.Repository
}

func NewOutboxNotifier(repo *outbox.Repository) *OutboxNotifier {
	return &OutboxNotifier{repo: repo}
}

func (n *OutboxNotifier) BookingConfirmed(ctx context.Context, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"service_id":     appt.ServiceID,
		"staff_id":       appt.StaffID,
		"user_id":        appt.UserID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return n.repo.InsertStandalone(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	})
}
