package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/scheduling-service/internal/recommend"
)

type RecommendHandler struct {
	engine *recommend.Engine
	logger *slog.Logger
}

func NewRecommendHandler(engine *recommend.Engine, logger *slog.Logger) *RecommendHandler {
	return &RecommendHandler{engine: engine, logger: logger}
}

type recommendationItem struct {
	StaffID    string  `json:"staff_id"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Score      int     `json:"score"`
	Label      string  `json:"label"`
	TopPick    bool    `json:"top_pick"`
	Preference float64 `json:"preference_score"`
	Workload   float64 `json:"workload_score"`
	TimeFit    float64 `json:"time_fit_score"`
}

// Recommendations handles GET /api/v1/public/recommendations.
func (h *RecommendHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	serviceID := strings.TrimSpace(q.Get("service_id"))
	userID := strings.TrimSpace(q.Get("user_id"))
	if serviceID == "" || userID == "" {
		http.Error(w, "service_id and user_id are required", http.StatusBadRequest)
		return
	}

	startDate, err := parseDate(q.Get("start_date"))
	if err != nil {
		http.Error(w, "invalid start_date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	endDate, err := parseDate(q.Get("end_date"))
	if err != nil {
		http.Error(w, "invalid end_date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	slots, err := h.engine.Recommend(r.Context(), recommend.Request{
		ServiceID: serviceID,
		StaffID:   strings.TrimSpace(q.Get("staff_id")),
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrInvalidDateRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, recommend.ErrUnknownService):
			http.Error(w, "service not found", http.StatusNotFound)
		case errors.Is(err, recommend.ErrStorageUnavailable):
			h.logger.Error("recommendation storage failure", "err", err)
			http.Error(w, "storage unavailable, retry later", http.StatusServiceUnavailable)
		default:
			h.logger.Error("recommendation failed", "err", err)
			http.Error(w, "failed to compute recommendations", http.StatusInternalServerError)
		}
		return
	}

	items := make([]recommendationItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, recommendationItem{
			StaffID:    s.StaffID,
			StartTime:  s.Start.UTC().Format(time.RFC3339),
			EndTime:    s.End.UTC().Format(time.RFC3339),
			Score:      s.Total,
			Label:      s.Label,
			TopPick:    s.TopPick,
			Preference: s.Preference,
			Workload:   s.Workload,
			TimeFit:    s.TimeFit,
		})
	}

	body, err := json.Marshal(items)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
}
