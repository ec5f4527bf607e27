package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"scoutgate/internal/api"
	"scoutgate/internal/auth"
	"scoutgate/internal/config"
	"scoutgate/internal/gemini"
	"scoutgate/internal/kv"
	"scoutgate/internal/ledger"
	"scoutgate/internal/logger"
	"scoutgate/internal/models"
	"scoutgate/internal/notify"
	"scoutgate/internal/observability"
	"scoutgate/internal/quota"
	"scoutgate/internal/ratelimit"
	"scoutgate/internal/schedule"
	"scoutgate/internal/scout"
	"scoutgate/internal/version"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

var (
	configFile   = flag.String("config", "", "Path to configuration file")
	envFile      = flag.String("env-file", ".env", "Path to a dotenv file loaded before the environment is read")
	writeExample = flag.String("write-example", "", "Write an example configuration file to this path and exit")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	info := version.GetInfo()
	if *showVersion {
		fmt.Println(info.String())
		return
	}

	if *writeExample != "" {
		if err := config.SaveExample(*writeExample); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		slog.Info("Example configuration written", "path", *writeExample)
		return
	}

	// Variables already in the environment win over the dotenv file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("Failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, info)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg, info)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	connector, err := initializeConnector(cfg, otelProvider)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer connector.Close()

	service, err := initializeService(context.Background(), cfg, connector, otelProvider)
	if err != nil {
		slog.Error("Failed to initialize scout service", "error", err)
		os.Exit(1)
	}

	handlers := api.NewHandlers(service, api.WithVersion(info))

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}
	if limiter := ratelimit.NewFromConfig(cfg.Auth.VerifyRateLimit); limiter != nil {
		defer limiter.Close()
		routeOpts = append(routeOpts, api.WithVerifyThrottle(ratelimit.Middleware(limiter, "verify")))
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics, otelProvider, info)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr, "store", cfg.Store.Type)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Scans can run for minutes; give in-flight requests the write timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout+5*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// initializeConnector creates the store connector, instrumented by provider
// when metrics or tracing are enabled.
func initializeConnector(cfg *models.Config, provider *observability.Provider) (kv.Connector, error) {
	connector, err := kv.NewConnector(cfg.Store)
	if err != nil {
		return nil, err
	}
	instrumented, err := provider.Connector(connector)
	if err != nil {
		connector.Close()
		return nil, err
	}
	return instrumented, nil
}

// initializeService wires the scout service from configuration. Each
// component gets its own in-process fallback store so keys never collide.
func initializeService(ctx context.Context, cfg *models.Config, connector kv.Connector, provider *observability.Provider) (*scout.Service, error) {
	authority := auth.NewAuthority(kv.NewMemoryStore(),
		auth.WithLifetime(cfg.Auth.TokenTTL),
		auth.WithGrace(cfg.Auth.GracePeriod),
	)

	limiter := quota.NewLimiter(quota.Limits{
		Hourly: cfg.Quota.HourlyLimit,
		Daily:  cfg.Quota.DailyLimit,
	})

	history := ledger.New(
		ledger.WithKey(cfg.Ledger.Key),
		ledger.WithMaxSize(cfg.Ledger.MaxSize),
		ledger.WithFallback(kv.NewMemoryStore()),
	)

	spacer := schedule.NewSpacer(
		schedule.WithKey(cfg.Schedule.Key),
		schedule.WithMinInterval(cfg.Schedule.MinInterval),
	)

	var scanner scout.Scanner
	geminiScanner, err := gemini.New(ctx, cfg.Scan)
	switch {
	case errors.Is(err, gemini.ErrAPIKeyRequired):
		slog.Warn("Gemini API key not configured, scans will fail until one is set")
		scanner = unconfiguredScanner{}
	case err != nil:
		return nil, err
	default:
		scanner = geminiScanner
	}

	var notifier scout.Notifier
	if cfg.Notify.SMTP.Configured() {
		notifier = notify.NewSMTPNotifier(cfg.Notify)
	} else {
		slog.Warn("SMTP not configured, reports will be logged instead of emailed")
		notifier = notify.NewLogNotifier(cfg.Notify.Recipient)
	}

	recorder, err := provider.ScanRecorder()
	if err != nil {
		return nil, fmt.Errorf("scan metrics: %w", err)
	}

	return scout.NewService(scout.Dependencies{
		Connector: connector,
		Authority: authority,
		Limiter:   limiter,
		Ledger:    history,
		Spacer:    spacer,
		Scanner:   scanner,
		Notifier:  notifier,
		Recorder:  recorder,
	}, scout.Settings{
		AdminPassword: cfg.Auth.AdminPassword,
		ProductCount:  cfg.Scan.ProductCount,
	}), nil
}

// unconfiguredScanner stands in for the Gemini scanner when no API key is set.
type unconfiguredScanner struct{}

func (unconfiguredScanner) Scan(context.Context, []string) (*models.Report, error) {
	return nil, gemini.ErrAPIKeyRequired
}
