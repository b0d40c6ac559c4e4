package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/fieldsense/internal/alerting"
	"github.com/good-yellow-bee/fieldsense/internal/api"
	"github.com/good-yellow-bee/fieldsense/internal/api/health"
	"github.com/good-yellow-bee/fieldsense/internal/clock"
	"github.com/good-yellow-bee/fieldsense/internal/logger"
	"github.com/good-yellow-bee/fieldsense/internal/metrics"
	"github.com/good-yellow-bee/fieldsense/internal/mqtt"
	"github.com/good-yellow-bee/fieldsense/internal/notifier"
	"github.com/good-yellow-bee/fieldsense/internal/pipeline"
	"github.com/good-yellow-bee/fieldsense/internal/storage"
	"github.com/good-yellow-bee/fieldsense/internal/weather"
	"github.com/good-yellow-bee/fieldsense/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
	pretty     bool
)

var rootCmd = &cobra.Command{
	Use:   "fieldsense-server",
	Short: "FieldSense Server - farm sensor alerting",
	Long: `FieldSense Server ingests soil and climate readings from field devices,
raises agronomic and rain alerts, and drives on-site warning hardware.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fieldsense-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every request")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human readable console logs")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	cfg.Verbose = verbose

	logger.Init(cfg.Logging.Level, pretty || cfg.Logging.Pretty)
	log := logger.WithComponent("server")
	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Info().Str("path", cfg.Database.Path).Msg("database initialized")

	clk := clock.Real{}

	cooldowns := alerting.NewCooldownStore(cfg.cooldown())
	records, err := store.Cooldowns().List(ctx)
	if err != nil {
		return fmt.Errorf("load cooldowns: %w", err)
	}
	cooldowns.Restore(records)
	cooldowns.SetPersister(store.Cooldowns())

	wc, err := newWeatherCache(cfg, clk)
	if err != nil {
		return err
	}

	var broker *mqtt.Client
	if cfg.MQTT.Broker != "" {
		broker, err = mqtt.Connect(ctx, mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err != nil {
			return err
		}
		defer broker.Close()
	}

	dispatcher, err := newDispatcher(cfg, store, broker)
	if err != nil {
		return err
	}
	defer func() {
		if err := dispatcher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing notifiers")
		}
	}()

	p, err := pipeline.New(alerting.NewEngine(cfg.Alerting.Thresholds), cooldowns, wc, dispatcher, clk)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	apiServer, err := api.New(&api.Config{
		Address:         cfg.Server.HTTPAddress,
		SensorToken:     cfg.Server.SensorToken,
		HTTPTLSEnabled:  cfg.Server.HTTPTLS.Enabled,
		HTTPTLSCertFile: cfg.Server.HTTPTLS.CertFile,
		HTTPTLSKeyFile:  cfg.Server.HTTPTLS.KeyFile,
		RateLimitPerIP:  cfg.Server.RateLimitPerIP,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		Verbose:         cfg.Verbose,
	}, api.Deps{
		Pipeline:  p,
		History:   store.AlertHistory(),
		Tokens:    store.DeviceTokens(),
		Cooldowns: cooldowns,
		Weather:   wc,
		Clock:     clk,
	})
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}
	apiServer.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	if broker != nil {
		apiServer.RegisterHealthChecker(health.NewMQTTChecker(broker.IsConnected))
	}

	log.Info().
		Str("version", config.Version).
		Strs("notifiers", dispatcher.Names()).
		Bool("weather", wc.Enabled()).
		Bool("mqtt", broker != nil).
		Msg("starting fieldsense-server")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Run(gctx)
	})

	if cfg.Server.MetricsAddress != "" {
		metricsServer := metrics.NewServer(cfg.Server.MetricsAddress)
		g.Go(func() error {
			return metricsServer.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if broker != nil {
		sub := mqtt.NewSubscriber(p, broker, broker.TopicPrefix(), clk)
		g.Go(func() error {
			return sub.Run(gctx, broker)
		})
	}

	if cfg.Database.HistoryRetentionDays > 0 {
		retention := time.Duration(cfg.Database.HistoryRetentionDays) * 24 * time.Hour
		g.Go(func() error {
			pruneHistory(gctx, store.AlertHistory(), clk, retention)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func newWeatherCache(cfg *Config, clk clock.Clock) (*weather.Cache, error) {
	wcfg := weather.Config{
		TTL:           cfg.weatherTTL(),
		RainThreshold: cfg.Weather.RainThreshold,
		Lookahead:     cfg.rainLookahead(),
		Timeout:       time.Duration(cfg.Weather.TimeoutSeconds) * time.Second,
		Latitude:      cfg.Weather.Latitude,
		Longitude:     cfg.Weather.Longitude,
	}
	if cfg.Weather.APIKey == "" {
		log := logger.WithComponent("server")
		log.Warn().Msg("OPENWEATHER_API_KEY not set, rain warnings disabled")
		return weather.NewCache(nil, wcfg, clk), nil
	}
	provider, err := weather.NewOpenWeatherProvider(weather.OpenWeatherConfig{
		APIKey:  cfg.Weather.APIKey,
		BaseURL: cfg.Weather.BaseURL,
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("create weather provider: %w", err)
	}
	return weather.NewCache(provider, wcfg, clk), nil
}

func newDispatcher(cfg *Config, store storage.Storage, broker *mqtt.Client) (*notifier.Dispatcher, error) {
	n := cfg.Notifications
	rl := notifier.DefaultRateLimitConfig()
	rl.MaxPerWindow = n.RateLimitPerMinute
	rl.Enabled = n.RateLimitPerMinute > 0

	d := notifier.NewDispatcher(notifier.DispatcherConfig{
		QueueSize:   n.QueueSize,
		Workers:     n.Workers,
		SendTimeout: time.Duration(n.SendTimeoutSeconds) * time.Second,
		RateLimit:   rl,
	})
	d.SetRecorder(store.AlertHistory())

	register := func(nt notifier.Notifier, err error) error {
		if err != nil {
			d.Close()
			return err
		}
		d.Register(nt)
		return nil
	}

	if n.Push.Endpoint != "" {
		push, err := notifier.NewPushNotifier(notifier.PushConfig{
			Endpoint: n.Push.Endpoint,
			APIKey:   n.Push.APIKey,
		}, store.DeviceTokens())
		if err := register(push, err); err != nil {
			return nil, fmt.Errorf("push notifier: %w", err)
		}
	} else {
		log := logger.WithComponent("server")
		log.Warn().Msg("PUSH_ENDPOINT not set, push notifications disabled")
	}
	if n.Slack.WebhookURL != "" {
		slack, err := notifier.NewSlackNotifier(notifier.SlackConfig{WebhookURL: n.Slack.WebhookURL})
		if err := register(slack, err); err != nil {
			return nil, fmt.Errorf("slack notifier: %w", err)
		}
	}
	if len(n.Kafka.Brokers) > 0 {
		kafka, err := notifier.NewKafkaNotifier(notifier.KafkaConfig{
			Brokers: n.Kafka.Brokers,
			Topic:   n.Kafka.Topic,
		})
		if err := register(kafka, err); err != nil {
			return nil, fmt.Errorf("kafka notifier: %w", err)
		}
	}
	if n.MQTTAlerts && broker != nil {
		m, err := notifier.NewMQTTNotifier(broker, broker.TopicPrefix())
		if err := register(m, err); err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
	}
	return d, nil
}

// pruneHistory deletes alert history older than retention once an hour.
func pruneHistory(ctx context.Context, repo storage.AlertHistoryRepository, clk clock.Clock, retention time.Duration) {
	log := logger.WithComponent("retention")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := repo.DeleteBefore(ctx, clk.Now().Add(-retention))
		if err != nil {
			log.Warn().Err(err).Msg("prune alert history")
		} else if deleted > 0 {
			log.Info().Int64("deleted", deleted).Msg("pruned alert history")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
