package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// Mock repository
type mockHistoryRepository struct {
	items      []*models.AlertHistory
	listError  error
	lastLimit  int
	lastOffset int
	lastKind   models.AlertKind
}

func (m *mockHistoryRepository) Create(ctx context.Context, h *models.AlertHistory) error {
	m.items = append(m.items, h)
	return nil
}

func (m *mockHistoryRepository) RecordAlert(ctx context.Context, a *models.AlertEvent) error {
	return m.Create(ctx, &models.AlertHistory{Kind: a.Kind, Severity: a.Severity, Message: a.Message, FiredAt: a.FiredAt})
}

func (m *mockHistoryRepository) List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error) {
	return m.ListByKind(ctx, "", limit, offset)
}

func (m *mockHistoryRepository) ListByKind(ctx context.Context, kind models.AlertKind, limit, offset int) ([]*models.AlertHistory, int64, error) {
	m.lastLimit, m.lastOffset, m.lastKind = limit, offset, kind
	if m.listError != nil {
		return nil, 0, m.listError
	}
	var matched []*models.AlertHistory
	for _, h := range m.items {
		if kind == "" || h.Kind == kind {
			matched = append(matched, h)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return []*models.AlertHistory{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (m *mockHistoryRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func seedHistory(n int) *mockHistoryRepository {
	repo := &mockHistoryRepository{}
	for i := 0; i < n; i++ {
		kind := models.KindLowMoisture
		if i%2 == 1 {
			kind = models.KindRainWarning
		}
		repo.items = append(repo.items, &models.AlertHistory{
			ID:       string(rune('a' + i)),
			Kind:     kind,
			Severity: models.SeverityWarning,
			Message:  "msg",
			FiredAt:  testNow.Add(-time.Duration(i) * time.Minute),
		})
	}
	return repo
}

func decodeHistory(t *testing.T, rec *httptest.ResponseRecorder) HistoryListResponse {
	t.Helper()
	var body struct {
		Data HistoryListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body.Data
}

func TestHistory_Pagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantItems  int
	}{
		{"defaults", "", 50, 0, 5},
		{"limit and offset", "?limit=2&offset=1", 2, 1, 2},
		{"limit over max falls back", "?limit=500", 50, 0, 5},
		{"negative offset ignored", "?offset=-3", 50, 0, 5},
		{"offset past end", "?offset=10", 50, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := seedHistory(5)
			h := NewHandler(repo, alerting.NewCooldownStore(time.Minute), clock.NewFake(testNow))

			rec := httptest.NewRecorder()
			h.History(rec, httptest.NewRequest("GET", "/api/v1/alerts/history"+tt.query, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			body := decodeHistory(t, rec)
			if body.Limit != tt.wantLimit || body.Offset != tt.wantOffset {
				t.Errorf("limit/offset = %d/%d, want %d/%d", body.Limit, body.Offset, tt.wantLimit, tt.wantOffset)
			}
			if len(body.Items) != tt.wantItems {
				t.Errorf("items = %d, want %d", len(body.Items), tt.wantItems)
			}
			if body.Total != 5 {
				t.Errorf("total = %d, want 5", body.Total)
			}
		})
	}
}

func TestHistory_FilterByKind(t *testing.T) {
	repo := seedHistory(5)
	h := NewHandler(repo, alerting.NewCooldownStore(time.Minute), clock.NewFake(testNow))

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/v1/alerts/history?kind=rain_warning", nil))

	body := decodeHistory(t, rec)
	if body.Total != 2 {
		t.Errorf("total = %d, want 2", body.Total)
	}
	for _, item := range body.Items {
		if item.Kind != "rain_warning" {
			t.Errorf("unexpected kind %q", item.Kind)
		}
	}

	rec = httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/v1/alerts/history?kind=hail", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rec.Code)
	}
}

func TestHistory_StorageError(t *testing.T) {
	repo := &mockHistoryRepository{listError: errors.New("disk gone")}
	h := NewHandler(repo, alerting.NewCooldownStore(time.Minute), clock.NewFake(testNow))

	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/api/v1/alerts/history", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestCooldowns(t *testing.T) {
	clk := clock.NewFake(testNow)
	store := alerting.NewCooldownStore(30 * time.Minute)
	store.Admit(models.KindLowMoisture, testNow.Add(-10*time.Minute))
	store.Admit(models.KindRainWarning, testNow.Add(-45*time.Minute))

	h := NewHandler(&mockHistoryRepository{}, store, clk)
	rec := httptest.NewRecorder()
	h.Cooldowns(rec, httptest.NewRequest("GET", "/api/v1/alerts/cooldowns", nil))

	var body struct {
		Data CooldownListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.WindowSeconds != 1800 {
		t.Errorf("window = %d, want 1800", body.Data.WindowSeconds)
	}
	remaining := map[string]int64{}
	for _, item := range body.Data.Items {
		remaining[item.Kind] = item.RemainingSeconds
	}
	if len(remaining) != 2 {
		t.Fatalf("items = %v", body.Data.Items)
	}
	if remaining["low_moisture"] != 1200 {
		t.Errorf("low_moisture remaining = %d, want 1200", remaining["low_moisture"])
	}
	if remaining["rain_warning"] != 0 {
		t.Errorf("rain_warning remaining = %d, want 0", remaining["rain_warning"])
	}
}
