package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/good-yellow-bee/fieldsense/internal/clock"
)

const (
	defaultOpenWeatherURL = "https://api.openweathermap.org"
	// openWeatherSlot is the step of the 5 day / 3 hour forecast.
	openWeatherSlot = 3 * time.Hour
	// openWeatherSlots limits the response to the next 24 hours.
	openWeatherSlots = 8
)

// OpenWeatherConfig holds OpenWeather API configuration.
type OpenWeatherConfig struct {
	APIKey  string
	BaseURL string
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures int
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

// Validate validates the OpenWeather configuration.
func (c *OpenWeatherConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
	}
	return nil
}

// OpenWeatherProvider reads precipitation probability from the OpenWeather forecast API.
type OpenWeatherProvider struct {
	config     OpenWeatherConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	clock      clock.Clock
}

// NewOpenWeatherProvider creates a new OpenWeather provider.
func NewOpenWeatherProvider(config OpenWeatherConfig, clk clock.Clock) (*OpenWeatherProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid openweather config: %w", err)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenWeatherURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.BreakerFailures <= 0 {
		config.BreakerFailures = 3
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = time.Minute
	}
	if clk == nil {
		clk = clock.Real{}
	}

	fails := uint32(config.BreakerFailures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openweather",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
	})

	return &OpenWeatherProvider{
		config: config,
		// Requests are bounded by the caller's context.
		httpClient: &http.Client{},
		breaker:    breaker,
		clock:      clk,
	}, nil
}

// Name returns "openweather".
func (p *OpenWeatherProvider) Name() string {
	return "openweather"
}

// owmForecast is the subset of the /data/2.5/forecast response we read.
type owmForecast struct {
	List []struct {
		Dt  int64   `json:"dt"`
		Pop float64 `json:"pop"`
	} `json:"list"`
}

// Forecast fetches the upcoming forecast slots for a location.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.fetch(ctx, lat, lon)
	})
	if err != nil {
		return nil, fmt.Errorf("openweather forecast: %w", err)
	}
	return res.(*Forecast), nil
}

func (p *OpenWeatherProvider) fetch(ctx context.Context, lat, lon float64) (*Forecast, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("units", "metric")
	q.Set("cnt", strconv.Itoa(openWeatherSlots))
	q.Set("appid", p.config.APIKey)
	endpoint := p.config.BaseURL + "/data/2.5/forecast?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var out owmForecast
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.List) == 0 {
		return nil, fmt.Errorf("empty forecast")
	}

	now := p.clock.Now()
	f := &Forecast{Slots: make([]ForecastSlot, 0, len(out.List))}
	for _, item := range out.List {
		f.Slots = append(f.Slots, ForecastSlot{
			Offset:          time.Unix(item.Dt, 0).Sub(now),
			Duration:        openWeatherSlot,
			RainProbability: item.Pop,
		})
	}
	return f, nil
}
