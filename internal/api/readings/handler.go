// Package readings serves sensor ingestion and the latest-values view.
package readings

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/metrics"
	"github.com/good-yellow-bee/fieldsense/internal/models"
	"github.com/good-yellow-bee/fieldsense/internal/pipeline"
)

const maxBodyBytes = 64 << 10

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

const errCodeBadRequest = "BAD_REQUEST"

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		logger.Logger.Error().Err(err).Msg("json encode error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Error().Err(err).Msg("json encode error")
	}
}

// Processor runs a reading through the alerting pipeline.
type Processor interface {
	Process(ctx context.Context, reading *models.SensorReading) *pipeline.Result
}

// UpdateResponse is returned for every accepted reading.
type UpdateResponse struct {
	Status string             `json:"status"`
	Data   map[string]float64 `json:"data"`
	*pipeline.Result
}

// Handler handles ingestion endpoints.
type Handler struct {
	pipeline Processor
	store    *Store
	clock    clock.Clock
}

// NewHandler creates a readings handler.
func NewHandler(p Processor, store *Store, clk clock.Clock) *Handler {
	if store == nil {
		store = NewStore()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{pipeline: p, store: store, clock: clk}
}

// Update handles /update. The response is not wrapped, for existing field devices.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.ingest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ingest handles POST /api/v1/readings.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.ingest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: resp})
}

// Data returns the latest merged sensor values.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Snapshot())
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) (*UpdateResponse, bool) {
	now := h.clock.Now()

	var reading *models.SensorReading
	if r.Method == http.MethodGet {
		reading = models.ReadingFromQuery(r.URL.Query(), now)
	} else {
		payload, err := decodeObject(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid payload. Expected JSON object.")
			return nil, false
		}
		reading = models.ReadingFromMap(payload, now)
	}
	if reading.DeviceID == "" {
		reading.DeviceID = r.Header.Get("X-Device-ID")
	}

	metrics.ReadingsTotal.WithLabelValues("http").Inc()

	result := h.pipeline.Process(r.Context(), reading)
	return &UpdateResponse{
		Status: "Data received successfully",
		Data:   h.store.Merge(reading),
		Result: result,
	}, true
}

// decodeObject decodes a single JSON object, keeping numbers exact.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return payload, nil
}
