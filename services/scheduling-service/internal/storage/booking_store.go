package storage

import (
	"context"
	"fmt"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/booking"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

// BookingStore adapts the appointment repository to the committer, mapping
// Postgres error classes to the committer's sentinels.
type BookingStore struct {
	repo *AppointmentRepository
}

func NewBookingStore(repo *AppointmentRepository) *BookingStore {
	return &BookingStore{repo: repo}
}

func (s *BookingStore) CreateBooked(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	created, err := s.repo.CreateBooked(ctx, appt)
	if err == nil {
		return created, nil
	}
	if IsConflict(err) {
		return model.Appointment{}, fmt.Errorf("staff %s at %s: %w", appt.StaffID, appt.StartTime, booking.ErrSlotConflict)
	}
	if IsSerializationFailure(err) {
		return model.Appointment{}, fmt.Errorf("insert appointment: %w (%v)", booking.ErrRetryable, err)
	}
	return model.Appointment{}, err
}
