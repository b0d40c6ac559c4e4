package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/good-yellow-bee/fieldsense/internal/logger"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// jsonError writes the standard error envelope.
func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		logger.Logger.Error().Err(err).Str("code", code).Msg("json encode error")
	}
}
