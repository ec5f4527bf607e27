package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"scoutgate/internal/models"
	"scoutgate/internal/version"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves Prometheus metrics on a separate port, away from the
// public API.
type MetricsServer struct {
	server   *http.Server
	registry *prometheus.Registry
}

// NewMetricsServer creates a metrics HTTP server for cfg. The OpenTelemetry
// exporter's metrics are served only when provider has one; the
// scoutgate_build_info gauge is always present.
func NewMetricsServer(cfg models.MetricsConfig, provider *Provider, info version.Info) *MetricsServer {
	registry := prometheus.NewRegistry()
	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scoutgate_build_info",
		Help: "Build information for the running scoutgate instance.",
	}, []string{"version", "git_commit", "instance_id"})
	buildInfo.WithLabelValues(info.Version, info.GitCommit, info.InstanceID).Set(1)
	registry.MustRegister(buildInfo)

	gatherers := prometheus.Gatherers{registry}
	if provider != nil && provider.promExporter != nil {
		gatherers = append(gatherers, prometheus.DefaultGatherer)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	}))

	return &MetricsServer{
		registry: registry,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins serving metrics in a blocking call.
// Returns http.ErrServerClosed on graceful shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
