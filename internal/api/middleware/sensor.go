package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SensorTokenHeader carries the shared secret of field devices.
const SensorTokenHeader = "X-Sensor-Token"

// SensorToken rejects requests whose X-Sensor-Token does not match token.
// An empty token disables the check.
func SensorToken(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(SensorTokenHeader))
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				jsonUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func jsonUnauthorized(w http.ResponseWriter) {
	jsonError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized sensor client")
}
