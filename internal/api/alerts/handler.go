// Package alerts serves dispatched alert history and cooldown state.
package alerts

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/models"
	"github.com/good-yellow-bee/fieldsense/internal/storage"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		logger.Logger.Error().Err(err).Msg("json encode error")
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		logger.Logger.Error().Err(err).Msg("json encode error")
	}
}

// Response types
type AlertHistoryResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Message   string `json:"message"`
	DeviceID  string `json:"device_id,omitempty"`
	FiredAt   string `json:"fired_at"`
	CreatedAt string `json:"created_at"`
}

type HistoryListResponse struct {
	Items  []*AlertHistoryResponse `json:"items"`
	Total  int64                   `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

type CooldownResponse struct {
	Kind             string `json:"kind"`
	LastFiredAt      string `json:"last_fired_at"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type CooldownListResponse struct {
	WindowSeconds int64               `json:"window_seconds"`
	Items         []*CooldownResponse `json:"items"`
}

const (
	defaultLimit = 50
	maxLimit     = 100
)

// Handler handles alert endpoints.
type Handler struct {
	history   storage.AlertHistoryRepository
	cooldowns *alerting.CooldownStore
	clock     clock.Clock
}

// NewHandler creates an alerts handler.
func NewHandler(history storage.AlertHistoryRepository, cooldowns *alerting.CooldownStore, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{history: history, cooldowns: cooldowns, clock: clk}
}

// History returns dispatched alerts, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit := defaultLimit
	offset := 0
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= maxLimit {
			limit = v
		}
	}
	if o := q.Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	var (
		histories []*models.AlertHistory
		total     int64
		err       error
	)
	if k := q.Get("kind"); k != "" {
		kind := models.AlertKind(k)
		if !kind.Valid() {
			jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "unknown alert kind: "+k)
			return
		}
		histories, total, err = h.history.ListByKind(ctx, kind, limit, offset)
	} else {
		histories, total, err = h.history.List(ctx, limit, offset)
	}
	if err != nil {
		log := logger.WithComponent("api")
		log.Error().Err(err).Msg("list alert history")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	items := make([]*AlertHistoryResponse, len(histories))
	for i, ah := range histories {
		items[i] = historyToResponse(ah)
	}

	jsonOK(w, &HistoryListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Cooldowns returns the kinds that have fired and how long each stays suppressed.
func (h *Handler) Cooldowns(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	records := h.cooldowns.Records()

	items := make([]*CooldownResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, &CooldownResponse{
			Kind:             string(rec.Kind),
			LastFiredAt:      rec.LastFiredAt.UTC().Format(time.RFC3339),
			RemainingSeconds: int64(h.cooldowns.Remaining(rec.Kind, now).Seconds()),
		})
	}

	jsonOK(w, &CooldownListResponse{
		WindowSeconds: int64(h.cooldowns.Window().Seconds()),
		Items:         items,
	})
}

func historyToResponse(ah *models.AlertHistory) *AlertHistoryResponse {
	return &AlertHistoryResponse{
		ID:        ah.ID,
		Kind:      string(ah.Kind),
		Severity:  string(ah.Severity),
		Message:   ah.Message,
		DeviceID:  ah.DeviceID,
		FiredAt:   ah.FiredAt.UTC().Format(time.RFC3339),
		CreatedAt: ah.CreatedAt.UTC().Format(time.RFC3339),
	}
}
