package bootstrap

import (
	"log/slog"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rolevoice/signaling-relay/internal/admin"
	"github.com/rolevoice/signaling-relay/internal/gateway"
	"github.com/rolevoice/signaling-relay/internal/relay"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideClock() clock.Clock {
	return clock.New()
}

func ProvideMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *relay.Metrics {
	return relay.NewMetrics(reg)
}

func ProvideRelay(cfg *Config, clk clock.Clock, metrics *relay.Metrics, logger *slog.Logger) (*relay.Relay, error) {
	return relay.New(relay.Options{
		StatsCapacity: cfg.StatsCapacity,
		Clock:         clk,
		Metrics:       metrics,
		Logger:        logger,
	})
}

func ProvideGatewayConfig(cfg *Config) gateway.Config {
	return gateway.Config{
		AllowedOrigins: cfg.AllowedOrigins,
		PingInterval:   cfg.PingInterval,
		PingTimeout:    cfg.PingTimeout,
	}
}

func ProvideAdminHandler(r *relay.Relay, reg *prometheus.Registry, logger *slog.Logger) *admin.Handler {
	return admin.NewHandler(r, reg, logger)
}

var CoreModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideClock,
		ProvideMetricsRegistry,
		ProvideMetrics,
		ProvideRelay,
		ProvideGatewayConfig,
		ProvideAdminHandler,
	),
)
