package model

import "time"

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	LeaveRequested = "requested"
	LeaveApproved  = "approved"
	LeaveRejected  = "rejected"
)

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
}

type StaffMember struct {
	ID       string
	Name     string
	Role     string
	IsActive bool
}

// WorkingHours is the weekly template entry for one (staff, weekday) pair.
// Start/end are minutes from midnight UTC; ignored when IsWorking is false.
type WorkingHours struct {
	StaffID     string
	Weekday     int
	IsWorking   bool
	StartMinute int
	EndMinute   int
}

// LeaveRecord blocks part or all of one date. A nil StartTime/EndTime pair
// means full-day leave. Only approved records affect availability.
type LeaveRecord struct {
	ID        string
	StaffID   string
	Date      time.Time
	StartTime *time.Time
	EndTime   *time.Time
	Status    string
	Reason    string
}

type Appointment struct {
	ID           string
	ServiceID    string
	StaffID      string
	UserID       string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}

// CandidateSlot is a bookable [Start,End) window for one staff member.
// It lives only for the duration of a recommendation request.
type CandidateSlot struct {
	StaffID string
	Start   time.Time
	End     time.Time
}

// ScoredSlot is a CandidateSlot with its sub-scores, weighted total and label.
type ScoredSlot struct {
	CandidateSlot
	Preference float64
	Workload   float64
	TimeFit    float64
	Total      int
	Label      string
	TopPick    bool
}
