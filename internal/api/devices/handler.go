// Package devices manages the push-notification target registry.
package devices

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

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
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		logger.Logger.Error().Err(err).Msg("json encode error")
	}
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

const maxTokenLength = 512

var validPlatforms = map[string]bool{
	"":        true,
	"android": true,
	"ios":     true,
	"web":     true,
}

// RegisterRequest registers a device for push notifications.
type RegisterRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	Label    string `json:"label"`
}

// Validate normalizes and checks the request.
func (r *RegisterRequest) Validate() error {
	r.Token = strings.TrimSpace(r.Token)
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	r.Label = strings.TrimSpace(r.Label)

	if r.Token == "" {
		return errors.New("token is required")
	}
	if len(r.Token) > maxTokenLength {
		return errors.New("token is too long")
	}
	if !validPlatforms[r.Platform] {
		return errors.New("platform must be one of android, ios, web")
	}
	if len(r.Label) > 100 {
		return errors.New("label must be at most 100 characters")
	}
	return nil
}

type TokenResponse struct {
	Token     string `json:"token"`
	Platform  string `json:"platform,omitempty"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Handler handles device token endpoints.
type Handler struct {
	tokens storage.DeviceTokenRepository
	clock  clock.Clock
}

// NewHandler creates a device token handler.
func NewHandler(tokens storage.DeviceTokenRepository, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{tokens: tokens, clock: clk}
}

// Register creates or refreshes a device token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	token := &models.DeviceToken{
		Token:     req.Token,
		Platform:  req.Platform,
		Label:     req.Label,
		CreatedAt: h.clock.Now(),
	}
	if err := h.tokens.Upsert(r.Context(), token); err != nil {
		log := logger.WithComponent("api")
		log.Error().Err(err).Msg("register device token")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonCreated(w, tokenToResponse(token))
}

// List returns all registered device tokens.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.List(r.Context())
	if err != nil {
		log := logger.WithComponent("api")
		log.Error().Err(err).Msg("list device tokens")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	resp := make([]*TokenResponse, len(tokens))
	for i, t := range tokens {
		resp[i] = tokenToResponse(t)
	}
	jsonOK(w, resp)
}

// Delete removes a device token.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "token is required")
		return
	}

	if err := h.tokens.Delete(r.Context(), token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "device token not found")
			return
		}
		log := logger.WithComponent("api")
		log.Error().Err(err).Msg("delete device token")
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonNoContent(w)
}

func tokenToResponse(t *models.DeviceToken) *TokenResponse {
	return &TokenResponse{
		Token:     t.Token,
		Platform:  t.Platform,
		Label:     t.Label,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
	}
}
