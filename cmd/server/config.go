// Package main provides the fieldsense server CLI.
package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
)

// Config represents the server configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Alerting      AlertingConfig      `yaml:"alerting"`
	Weather       WeatherConfig       `yaml:"weather"`
	Notifications NotificationsConfig `yaml:"notifications"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Logging       LoggingConfig       `yaml:"logging"`
	Verbose       bool                `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress    string        `yaml:"http_address"`    // HTTP listen address (default: :8080)
	MetricsAddress string        `yaml:"metrics_address"` // Prometheus listen address (default: :9090, empty disables)
	SensorToken    string        `yaml:"sensor_token"`    // Shared secret expected in X-Sensor-Token
	RateLimitPerIP int           `yaml:"rate_limit_per_ip"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	HTTPTLS        HTTPTLSConfig `yaml:"http_tls"`
}

// HTTPTLSConfig contains HTTPS settings for the API listener.
type HTTPTLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path                 string `yaml:"path"`
	HistoryRetentionDays int    `yaml:"history_retention_days"` // 0 keeps history forever
}

// AlertingConfig contains rule and cooldown settings.
type AlertingConfig struct {
	CooldownSeconds int                 `yaml:"cooldown_seconds"` // 0 selects the 1800s default
	ThresholdsFile  string              `yaml:"thresholds_file"`  // optional, overrides thresholds
	Thresholds      alerting.Thresholds `yaml:"thresholds"`
}

// WeatherConfig contains rain-risk settings. Weather is disabled without an API key.
// Zero numeric settings select their defaults.
type WeatherConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`
	CacheSeconds   int     `yaml:"cache_seconds"`
	RainThreshold  float64 `yaml:"rain_threshold"`
	LookaheadHours float64 `yaml:"lookahead_hours"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// NotificationsConfig contains dispatcher and notifier settings.
type NotificationsConfig struct {
	QueueSize          int         `yaml:"queue_size"`
	Workers            int         `yaml:"workers"`
	SendTimeoutSeconds int         `yaml:"send_timeout_seconds"`
	RateLimitPerMinute int         `yaml:"rate_limit_per_minute"` // operator safeguard, 0 (default) disables
	Push               PushConfig  `yaml:"push"`
	Slack              SlackConfig `yaml:"slack"`
	Kafka              KafkaConfig `yaml:"kafka"`
	MQTTAlerts         bool        `yaml:"mqtt_alerts"` // publish alerts to <prefix>/alerts
}

type PushConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MQTTConfig contains broker settings. MQTT is disabled without a broker.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig loads configuration from a YAML file.
// An empty path yields the defaults. Environment overrides are applied on top.
func LoadConfig(path string) (*Config, error) {
	cfg := newConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if cfg.Alerting.ThresholdsFile != "" {
		t, err := alerting.LoadThresholdsFromFile(cfg.Alerting.ThresholdsFile)
		if err != nil {
			return nil, err
		}
		cfg.Alerting.Thresholds = t
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := newConfig()
	cfg.setDefaults()
	return cfg
}

func newConfig() *Config {
	return &Config{
		Server: ServerConfig{MetricsAddress: ":9090"},
		Alerting: AlertingConfig{
			Thresholds: alerting.DefaultThresholds(),
		},
	}
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/fieldsense.db"
	}
	if c.Alerting.CooldownSeconds == 0 {
		c.Alerting.CooldownSeconds = int(alerting.DefaultCooldown / time.Second)
	}
	if c.Weather.CacheSeconds == 0 {
		c.Weather.CacheSeconds = 300
	}
	if c.Weather.RainThreshold == 0 {
		c.Weather.RainThreshold = 0.5
	}
	if c.Weather.LookaheadHours == 0 {
		c.Weather.LookaheadHours = 2
	}
	if c.Weather.TimeoutSeconds == 0 {
		c.Weather.TimeoutSeconds = 5
	}
	if c.Notifications.Kafka.Topic == "" {
		c.Notifications.Kafka.Topic = "fieldsense.alerts"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "fieldsense"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Server.HTTPTLS.Enabled {
		if c.Server.HTTPTLS.CertFile == "" {
			return fmt.Errorf("server.http_tls.cert_file is required when HTTPS is enabled")
		}
		if c.Server.HTTPTLS.KeyFile == "" {
			return fmt.Errorf("server.http_tls.key_file is required when HTTPS is enabled")
		}
	}
	if c.Alerting.CooldownSeconds < 0 {
		return fmt.Errorf("alerting.cooldown_seconds must not be negative")
	}
	if err := c.Alerting.Thresholds.Validate(); err != nil {
		return fmt.Errorf("alerting.thresholds: %w", err)
	}
	if c.Weather.RainThreshold < 0 || c.Weather.RainThreshold > 1 {
		return fmt.Errorf("weather.rain_threshold must be between 0 and 1")
	}
	if c.Weather.LookaheadHours < 0 || c.Weather.CacheSeconds < 0 {
		return fmt.Errorf("weather durations must not be negative")
	}
	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		return fmt.Errorf("weather.latitude must be between -90 and 90")
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		return fmt.Errorf("weather.longitude must be between -180 and 180")
	}
	if c.Notifications.Push.Endpoint != "" {
		if u, err := url.Parse(c.Notifications.Push.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("notifications.push.endpoint must be an http(s) URL")
		}
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if c.Notifications.MQTTAlerts && c.MQTT.Broker == "" {
		return fmt.Errorf("notifications.mqtt_alerts requires mqtt.broker")
	}
	return nil
}

// applyEnv overrides file values with the environment variables field devices are deployed with.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	// Zero in the config file means "use the default", so an explicit zero
	// from the environment is rejected instead of being silently replaced.
	integer := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if n <= 0 {
			return fmt.Errorf("%s must be greater than zero", key)
		}
		*dst = n
		return nil
	}
	float := func(key string, dst *float64, positive bool) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if positive && f <= 0 {
			return fmt.Errorf("%s must be greater than zero", key)
		}
		*dst = f
		return nil
	}

	str("HTTP_ADDR", &c.Server.HTTPAddress)
	str("METRICS_ADDR", &c.Server.MetricsAddress)
	str("SENSOR_API_TOKEN", &c.Server.SensorToken)
	str("DB_PATH", &c.Database.Path)
	str("OPENWEATHER_API_KEY", &c.Weather.APIKey)
	str("PUSH_ENDPOINT", &c.Notifications.Push.Endpoint)
	str("PUSH_API_KEY", &c.Notifications.Push.APIKey)
	str("SLACK_WEBHOOK_URL", &c.Notifications.Slack.WebhookURL)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("LOG_LEVEL", &c.Logging.Level)
	if v := strings.TrimSpace(getenv("KAFKA_BROKERS")); v != "" {
		c.Notifications.Kafka.Brokers = splitList(v)
	}

	for _, err := range []error{
		integer("ALERT_COOLDOWN_SECONDS", &c.Alerting.CooldownSeconds),
		integer("WEATHER_CACHE_SECONDS", &c.Weather.CacheSeconds),
		integer("WEATHER_TIMEOUT_SECONDS", &c.Weather.TimeoutSeconds),
		float("RAIN_POP_THRESHOLD", &c.Weather.RainThreshold, true),
		float("RAIN_LOOKAHEAD_HOURS", &c.Weather.LookaheadHours, true),
		float("WEATHER_LAT", &c.Weather.Latitude, false),
		float("WEATHER_LON", &c.Weather.Longitude, false),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Durations derived from the seconds-based settings.

func (c *Config) cooldown() time.Duration {
	return time.Duration(c.Alerting.CooldownSeconds) * time.Second
}

func (c *Config) weatherTTL() time.Duration {
	return time.Duration(c.Weather.CacheSeconds) * time.Second
}

func (c *Config) rainLookahead() time.Duration {
	return time.Duration(c.Weather.LookaheadHours * float64(time.Hour))
}
