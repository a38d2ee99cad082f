package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
)

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

func (r *StaffRepository) CreateService(ctx context.Context, name string, durationMinutes int) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes)
		VALUES ($1, $2, $3)
	`, id, name, durationMinutes)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *StaffRepository) GetService(ctx context.Context, serviceID string) (model.Service, bool, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes)
	if err == nil {
		return svc, true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, false, nil
	}
	return model.Service{}, false, err
}

func (r *StaffRepository) ListServices(ctx context.Context, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, duration_minutes
		FROM services
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CreateStaff inserts the staff member together with a full-week schedule.
// Default is Mon-Fri 09:00-17:00 working, Sat/Sun closed; a row exists for
// every weekday so a missing row later means a non-working day.
func (r *StaffRepository) CreateStaff(ctx context.Context, name, role string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO staff (id, name, role, is_active)
		VALUES ($1, $2, $3, true)
	`, id, name, role)
	if err != nil {
		return "", err
	}

	for wd := 0; wd <= 6; wd++ {
		isWorking := wd >= 1 && wd <= 5
		startMin, endMin := 540, 1020
		if !isWorking {
			startMin, endMin = 0, 0
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (staff_id, weekday) DO NOTHING
		`, id, wd, isWorking, startMin, endMin); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *StaffRepository) AssignService(ctx context.Context, staffID, serviceID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_services (staff_id, service_id)
		SELECT s.id, v.id
		FROM staff s, services v
		WHERE s.id = $1 AND v.id = $2
		ON CONFLICT (staff_id, service_id) DO NOTHING
	`, staffID, serviceID)
	return err
}

// ListQualifiedStaff returns active staff assigned to the service.
func (r *StaffRepository) ListQualifiedStaff(ctx context.Context, serviceID string) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id::text, s.name, COALESCE(s.role, ''), s.is_active
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE ss.service_id = $1 AND s.is_active
		ORDER BY s.id ASC
	`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StaffMember
	for rows.Next() {
		var s model.StaffMember
		if err := rows.Scan(&s.ID, &s.Name, &s.Role, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *StaffRepository) SetStaffActive(ctx context.Context, staffID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff SET is_active = $2 WHERE id = $1
	`, staffID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *StaffRepository) GetWorkingHours(ctx context.Context, staffID string, weekday int) (model.WorkingHours, bool, error) {
	var wh model.WorkingHours
	err := r.pool.QueryRow(ctx, `
		SELECT staff_id::text, weekday, is_working, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1 AND weekday = $2
	`, staffID, weekday).Scan(&wh.StaffID, &wh.Weekday, &wh.IsWorking, &wh.StartMinute, &wh.EndMinute)
	if err == nil {
		return wh, true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WorkingHours{StaffID: staffID, Weekday: weekday}, false, nil
	}
	return model.WorkingHours{}, false, err
}

func (r *StaffRepository) ListWorkingHours(ctx context.Context, staffID string) ([]model.WorkingHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id::text, weekday, is_working, start_minute, end_minute
		FROM staff_working_hours
		WHERE staff_id = $1
		ORDER BY weekday ASC
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHours
	for rows.Next() {
		var wh model.WorkingHours
		if err := rows.Scan(&wh.StaffID, &wh.Weekday, &wh.IsWorking, &wh.StartMinute, &wh.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *StaffRepository) UpsertWorkingHours(ctx context.Context, wh model.WorkingHours) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1)
	`, wh.StaffID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, wh.StaffID, wh.Weekday, wh.IsWorking, wh.StartMinute, wh.EndMinute)
	return err
}

// CreateLeave records a leave request. Nil start/end times mean the whole
// day. New requests start in 'requested' and do not block slots until
// approved.
func (r *StaffRepository) CreateLeave(ctx context.Context, staffID string, date time.Time, startTime, endTime *time.Time, reason string) (string, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE id = $1)
	`, staffID).Scan(&exists); err != nil {
		return "", err
	}
	if !exists {
		return "", pgx.ErrNoRows
	}

	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_leave (id, staff_id, leave_date, start_time, end_time, status, reason)
		VALUES ($1, $2, $3, $4, $5, 'requested', $6)
	`, id, staffID, date, startTime, endTime, reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *StaffRepository) SetLeaveStatus(ctx context.Context, leaveID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff_leave
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, leaveID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *StaffRepository) ListApprovedLeave(ctx context.Context, staffID string, date time.Time) ([]model.LeaveRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id::text, leave_date, start_time, end_time, status, COALESCE(reason, '')
		FROM staff_leave
		WHERE staff_id = $1 AND leave_date = $2 AND status = 'approved'
		ORDER BY start_time ASC NULLS FIRST
	`, staffID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeave(rows)
}

func (r *StaffRepository) ListLeave(ctx context.Context, staffID string, from, to time.Time) ([]model.LeaveRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id::text, leave_date, start_time, end_time, status, COALESCE(reason, '')
		FROM staff_leave
		WHERE staff_id = $1 AND leave_date >= $2 AND leave_date <= $3
		ORDER BY leave_date ASC, start_time ASC NULLS FIRST
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeave(rows)
}

func scanLeave(rows pgx.Rows) ([]model.LeaveRecord, error) {
	var out []model.LeaveRecord
	for rows.Next() {
		var l model.LeaveRecord
		var start, end *time.Time
		if err := rows.Scan(&l.ID, &l.StaffID, &l.Date, &start, &end, &l.Status, &l.Reason); err != nil {
			return nil, err
		}
		l.StartTime = start
		l.EndTime = end
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
