package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/config"
	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/Aidin1998/pincex_fixmd/internal/marketdata/distribution"
	"github.com/Aidin1998/pincex_fixmd/internal/server"
	"github.com/Aidin1998/pincex_fixmd/pkg/logger"
	"github.com/Aidin1998/pincex_fixmd/pkg/metrics"
	"github.com/Aidin1998/pincex_fixmd/pkg/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const drainTimeout = 5 * time.Second

type options struct {
	configPath  string
	fixSettings string
	symbols     string
	logLevel    string
	logFormat   string
	statusAddr  string
	printConfig bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "", "path to fixmd.yaml")
	pflag.StringVar(&opts.fixSettings, "fix-settings", "", "quickfix session settings file")
	pflag.StringVar(&opts.symbols, "symbols", "", "comma separated symbols, e.g. \"EURUSD, GBPUSD\"")
	pflag.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	pflag.StringVar(&opts.logFormat, "log-format", "", "json or console")
	pflag.StringVar(&opts.statusAddr, "status-addr", "", "enable the status server on this address")
	pflag.BoolVar(&opts.printConfig, "print-config", false, "print the effective configuration and exit")
	pflag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "fixmd:", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.fixSettings != "" {
		cfg.FIX.SettingsFile = opts.fixSettings
	}
	if opts.symbols != "" {
		cfg.FIX.Symbols = config.ParseSymbols(opts.symbols)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.statusAddr != "" {
		cfg.Status.Enabled = true
		cfg.Status.Addr = opts.statusAddr
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(opts options) error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if opts.printConfig {
		return config.Dump(os.Stdout, cfg)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer zapLogger.Sync()

	shutdownTelemetry, err := telemetry.Setup(context.Background(), telemetry.Config{
		Tracing:        cfg.Telemetry.Tracing,
		Metrics:        cfg.Telemetry.Metrics,
		MetricInterval: cfg.Telemetry.MetricInterval,
	})
	if err != nil {
		zapLogger.Error("Failed to set up telemetry", zap.Error(err))
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			zapLogger.Warn("Telemetry shutdown", zap.Error(err))
		}
	}()

	settings, err := marketdata.LoadSettings(cfg.FIX.SettingsFile)
	if err != nil {
		zapLogger.Error("Failed to load FIX settings", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book := distribution.NewTopOfBook()
	broadcaster := distribution.NewBroadcaster(zapLogger)
	sinks := distribution.Fanout{
		distribution.NewLogSink(zapLogger),
		distribution.NewMetricsSink(),
		book,
		broadcaster,
	}

	backends, journal, err := openBackends(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Error("Failed to open event backends", zap.Error(err))
		return err
	}
	defer closeBackends(zapLogger, backends)
	for _, b := range backends {
		sinks = append(sinks, b)
	}

	gateway := marketdata.NewFIXGateway(zapLogger, settings, marketdata.GatewayConfig{
		FileStorePath: cfg.FIX.FileStorePath,
		FileLogPath:   cfg.FIX.FileLogPath,
	})
	if ids := gateway.SessionIDs(); len(ids) > 1 {
		first, _ := gateway.FirstSessionID()
		zapLogger.Warn("Several FIX sessions configured, only the first created is tracked",
			zap.Int("sessions", len(ids)),
			zap.String("expected", first.String()))
	}

	handler := marketdata.NewHandler(zapLogger, marketdata.NewQuickfixEngine(), sinks, marketdata.HandlerConfig{
		Symbols: cfg.FIX.Symbols,
		Credentials: marketdata.Credentials{
			Username: cfg.FIX.Username,
			Password: cfg.FIX.Password,
		},
		Settings: marketdata.SettingsLookup(gateway.Settings()),
	})

	if err := gateway.Start(handler); err != nil {
		zapLogger.Error("Failed to start FIX session", zap.Error(err))
		return err
	}
	defer gateway.Stop()

	var status *server.Server
	if cfg.Status.Enabled {
		var history server.QuoteHistory
		if journal != nil {
			history = journal
		}
		status = server.NewServer(zapLogger, handler, book, broadcaster, history)
		status.Start(cfg.Status.Addr)
	}

	zapLogger.Info("Market data client started",
		zap.String("settings", cfg.FIX.SettingsFile),
		zap.Strings("symbols", handler.SubscriptionOrDefault().Symbols))

	go awaitFirstData(ctx, zapLogger, handler, cfg.FIX.FirstDataTimeout)

	<-ctx.Done()
	zapLogger.Info("Shutting down")

	marketdata.Shutdown(context.Background(), zapLogger, handler, cfg.FIX.LogoutGrace)

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := status.Shutdown(shutdownCtx); err != nil {
			zapLogger.Warn("Status server shutdown", zap.Error(err))
		}
		cancel()
	}
	return nil
}

// awaitFirstData reports whether market data arrived within timeout
func awaitFirstData(ctx context.Context, logger *zap.Logger, handler *marketdata.Handler, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	if handler.FirstData().Wait(ctx, timeout) {
		metrics.FirstDataWait.WithLabelValues("signaled").Inc()
		return
	}
	if ctx.Err() != nil {
		return
	}
	metrics.FirstDataWait.WithLabelValues("timed_out").Inc()
	logger.Warn("No market data received", zap.Duration("timeout", timeout))
}

// openBackends starts the configured async writers. The journal is also
// returned for history queries; it is nil when disabled.
func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]*distribution.AsyncSink, *distribution.Journal, error) {
	var backends []*distribution.AsyncSink

	if cfg.Redis.Enabled {
		pub, err := distribution.NewRedisPublisher(ctx, distribution.RedisOptions{
			Address:       cfg.Redis.Address,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			ChannelPrefix: cfg.Redis.ChannelPrefix,
		}, logger)
		if err != nil {
			closeBackends(logger, backends)
			return nil, nil, err
		}
		backends = append(backends, distribution.NewAsyncSink(logger, pub, cfg.QueueSize))
	}

	if cfg.Kafka.Enabled {
		pub := distribution.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		backends = append(backends, distribution.NewAsyncSink(logger, pub, cfg.QueueSize))
	}

	var journal *distribution.Journal
	if cfg.Journal.Enabled {
		db, err := distribution.OpenJournalDB(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			closeBackends(logger, backends)
			return nil, nil, err
		}
		journal = distribution.NewJournal(db, logger)
		backends = append(backends, distribution.NewAsyncSink(logger, journal, cfg.QueueSize))
	}

	return backends, journal, nil
}

func closeBackends(logger *zap.Logger, backends []*distribution.AsyncSink) {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, b := range backends {
		if err := b.Close(ctx); err != nil {
			logger.Warn("Failed to close event backend", zap.Error(err))
		}
	}
}
