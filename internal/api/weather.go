package api

import (
	"net/http"

	"github.com/good-yellow-bee/fieldsense/internal/models"
)

// WeatherResponse describes the current rain risk.
type WeatherResponse struct {
	Enabled          bool                   `json:"enabled"`
	Snapshot         models.WeatherSnapshot `json:"snapshot"`
	Stale            bool                   `json:"stale"`
	Warning          string                 `json:"warning,omitempty"`
	LookaheadSeconds int64                  `json:"lookahead_seconds"`
}

// weatherStatus returns the rain-risk snapshot, refreshing it when the cache has expired.
func (s *Server) weatherStatus(w http.ResponseWriter, r *http.Request) {
	wc := s.deps.Weather
	if wc == nil || !wc.Enabled() {
		OK(w, &WeatherResponse{Enabled: false})
		return
	}

	res := wc.RainRisk(r.Context())
	OK(w, &WeatherResponse{
		Enabled:          true,
		Snapshot:         res.Snapshot,
		Stale:            res.Stale,
		Warning:          res.Warning,
		LookaheadSeconds: int64(wc.Lookahead().Seconds()),
	})
}
