package devices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/models"
	"github.com/good-yellow-bee/fieldsense/internal/storage"
)

type mockTokenRepository struct {
	tokens map[string]*models.DeviceToken
}

func newMockRepo() *mockTokenRepository {
	return &mockTokenRepository{tokens: make(map[string]*models.DeviceToken)}
}

func (m *mockTokenRepository) Upsert(ctx context.Context, t *models.DeviceToken) error {
	if existing, ok := m.tokens[t.Token]; ok {
		t.CreatedAt = existing.CreatedAt
	}
	m.tokens[t.Token] = t
	return nil
}

func (m *mockTokenRepository) Get(ctx context.Context, token string) (*models.DeviceToken, error) {
	return m.tokens[token], nil
}

func (m *mockTokenRepository) Delete(ctx context.Context, token string) error {
	if _, ok := m.tokens[token]; !ok {
		return storage.ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *mockTokenRepository) List(ctx context.Context) ([]*models.DeviceToken, error) {
	out := make([]*models.DeviceToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (m *mockTokenRepository) DeviceTokens(ctx context.Context) ([]string, error) {
	var out []string
	for k := range m.tokens {
		out = append(out, k)
	}
	return out, nil
}

func setupRouter(repo *mockTokenRepository) *chi.Mux {
	h := NewHandler(repo, clock.NewFake(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	r := chi.NewRouter()
	r.Get("/tokens", h.List)
	r.Post("/tokens", h.Register)
	r.Delete("/tokens/{token}", h.Delete)
	return r
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"token":"abc","platform":"Android","label":"north field"}`, http.StatusCreated},
		{"no platform", `{"token":"def"}`, http.StatusCreated},
		{"missing token", `{"platform":"ios"}`, http.StatusBadRequest},
		{"blank token", `{"token":"   "}`, http.StatusBadRequest},
		{"bad platform", `{"token":"abc","platform":"pager"}`, http.StatusBadRequest},
		{"too long", `{"token":"` + strings.Repeat("x", maxTokenLength+1) + `"}`, http.StatusBadRequest},
		{"invalid json", `{"token":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			rec := httptest.NewRecorder()
			setupRouter(repo).ServeHTTP(rec, httptest.NewRequest("POST", "/tokens", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusCreated && len(repo.tokens) != 1 {
				t.Errorf("tokens stored = %d, want 1", len(repo.tokens))
			}
		})
	}
}

func TestRegister_NormalizesPlatform(t *testing.T) {
	repo := newMockRepo()
	rec := httptest.NewRecorder()
	setupRouter(repo).ServeHTTP(rec, httptest.NewRequest("POST", "/tokens", strings.NewReader(`{"token":"abc","platform":" IOS "}`)))

	var body struct {
		Data TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Platform != "ios" {
		t.Errorf("platform = %q, want ios", body.Data.Platform)
	}
	if body.Data.CreatedAt != "2026-06-01T00:00:00Z" {
		t.Errorf("created_at = %q", body.Data.CreatedAt)
	}
}

func TestListAndDelete(t *testing.T) {
	repo := newMockRepo()
	router := setupRouter(repo)
	for _, tok := range []string{"b", "a"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/tokens", strings.NewReader(`{"token":"`+tok+`"}`)))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/tokens", nil))
	var list struct {
		Data []TokenResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].Token != "a" {
		t.Fatalf("list = %+v", list.Data)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/tokens/a", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/tokens/a", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}
