package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecommendationsRejectsBadParams(t *testing.T) {
	h := NewRecommendHandler(nil, slog.New(slog.DiscardHandler))

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"missing service", "/api/v1/public/recommendations?user_id=u1&start_date=2026-03-02&end_date=2026-03-02", http.StatusBadRequest},
		{"missing user", "/api/v1/public/recommendations?service_id=svc&start_date=2026-03-02&end_date=2026-03-02", http.StatusBadRequest},
		{"bad start date", "/api/v1/public/recommendations?service_id=svc&user_id=u1&start_date=03-02-2026&end_date=2026-03-02", http.StatusBadRequest},
		{"bad end date", "/api/v1/public/recommendations?service_id=svc&user_id=u1&start_date=2026-03-02&end_date=notadate", http.StatusBadRequest},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.target, nil)
		rec := httptest.NewRecorder()
		h.Recommendations(rec, req)
		if rec.Code != c.want {
			t.Fatalf("%s: got status %d, want %d", c.name, rec.Code, c.want)
		}
	}
}

func TestRecommendationsRejectsWrongMethod(t *testing.T) {
	h := NewRecommendHandler(nil, slog.New(slog.DiscardHandler))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/recommendations", nil)
	rec := httptest.NewRecorder()
	h.Recommendations(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d, want 405", rec.Code)
	}
}
