package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/model"
	"github.com/slotwise/slotwise/services/scheduling-service/internal/storage"
)

// AdminHandler manages the catalog behind recommendations: services, staff,
// qualifications, weekly schedules and leave.
type AdminHandler struct {
	repo   *storage.StaffRepository
	logger *slog.Logger
}

func NewAdminHandler(repo *storage.StaffRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, logger: logger}
}

type createServiceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type createStaffRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type assignServiceRequest struct {
	StaffID   string `json:"staff_id"`
	ServiceID string `json:"service_id"`
}

type workingHoursRequest struct {
	StaffID     string `json:"staff_id"`
	Weekday     int    `json:"weekday"`
	IsWorking   bool   `json:"is_working"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type createLeaveRequest struct {
	StaffID   string `json:"staff_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Reason    string `json:"reason"`
}

type leaveStatusRequest struct {
	LeaveID string `json:"leave_id"`
	Status  string `json:"status"`
}

func (h *AdminHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		services, err := h.repo.ListServices(r.Context(), 100)
		if err != nil {
			http.Error(w, "failed to list services", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, services)
	case http.MethodPost:
		var req createServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" || req.DurationMinutes <= 0 || req.DurationMinutes > 8*60 {
			http.Error(w, "name and a duration between 1 and 480 minutes are required", http.StatusBadRequest)
			return
		}
		id, err := h.repo.CreateService(r.Context(), req.Name, req.DurationMinutes)
		if err != nil {
			http.Error(w, "failed to create service", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"service_id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) Staff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	id, err := h.repo.CreateStaff(r.Context(), req.Name, strings.TrimSpace(req.Role))
	if err != nil {
		http.Error(w, "failed to create staff", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"staff_id": id})
}

func (h *AdminHandler) AssignService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req assignServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.StaffID == "" || req.ServiceID == "" {
		http.Error(w, "staff_id and service_id required", http.StatusBadRequest)
		return
	}
	if err := h.repo.AssignService(r.Context(), req.StaffID, req.ServiceID); err != nil {
		http.Error(w, "failed to assign service", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) WorkingHours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		staffID := strings.TrimSpace(r.URL.Query().Get("staff_id"))
		if staffID == "" {
			http.Error(w, "staff_id required", http.StatusBadRequest)
			return
		}
		hours, err := h.repo.ListWorkingHours(r.Context(), staffID)
		if err != nil {
			http.Error(w, "failed to list working hours", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, hours)
	case http.MethodPut, http.MethodPost:
		var req workingHoursRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.StaffID = strings.TrimSpace(req.StaffID)
		if req.StaffID == "" || req.Weekday < 0 || req.Weekday > 6 {
			http.Error(w, "staff_id and weekday 0-6 required", http.StatusBadRequest)
			return
		}
		if req.IsWorking && (req.StartMinute < 0 || req.EndMinute > 1440 || req.EndMinute <= req.StartMinute) {
			http.Error(w, "start_minute and end_minute must form a window within the day", http.StatusBadRequest)
			return
		}
		err := h.repo.UpsertWorkingHours(r.Context(), model.WorkingHours{
			StaffID:     req.StaffID,
			Weekday:     req.Weekday,
			IsWorking:   req.IsWorking,
			StartMinute: req.StartMinute,
			EndMinute:   req.EndMinute,
		})
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "staff not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to update working hours", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AdminHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		http.Error(w, "staff_id required", http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	// Partial-day leave carries both times; neither means the whole day.
	var startTime, endTime *time.Time
	if req.StartTime != "" || req.EndTime != "" {
		st, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		et, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		if !et.After(st) {
			http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
			return
		}
		startTime, endTime = &st, &et
	}

	id, err := h.repo.CreateLeave(r.Context(), req.StaffID, date, startTime, endTime, strings.TrimSpace(req.Reason))
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "staff not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to create leave", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"leave_id": id, "status": model.LeaveRequested})
}

func (h *AdminHandler) LeaveStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req leaveStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.LeaveID = strings.TrimSpace(req.LeaveID)
	req.Status = strings.TrimSpace(req.Status)
	if req.LeaveID == "" {
		http.Error(w, "leave_id required", http.StatusBadRequest)
		return
	}
	if req.Status != model.LeaveApproved && req.Status != model.LeaveRejected {
		http.Error(w, "status must be approved or rejected", http.StatusBadRequest)
		return
	}
	if err := h.repo.SetLeaveStatus(r.Context(), req.LeaveID, req.Status); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "leave not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update leave", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
