package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rolevoice/signaling-relay/internal/admin"
	"github.com/rolevoice/signaling-relay/internal/gateway"
	"go.uber.org/fx"
)

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// httpErrorHandler keeps the admin surface's JSON error contract: unmatched
// routes are a 404 body, everything unexpected is a plain 500 with no
// leaked internals.
func httpErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}

		body := errorBody{Success: false, Message: "Internal server error"}
		switch status {
		case http.StatusNotFound:
			body.Message = "API endpoint not found"
		case http.StatusMethodNotAllowed:
			status = http.StatusNotFound
			body.Message = "API endpoint not found"
		default:
			if status >= http.StatusInternalServerError {
				log.Error("request failed", "path", c.Path(), "error", err)
			}
		}

		_ = c.JSON(status, body)
	}
}

func NewEchoServer(cfg *Config, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}))
	e.HTTPErrorHandler = httpErrorHandler(logger)
	return e
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("signaling relay listening",
					"addr", cfg.ServerAddr,
					"health", "/health",
					"active_calls", "/api/active-calls",
					"call_stats", "/api/call-stats",
					"online_users", "/api/online-users")
				if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
					logger.Error("server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down")
			return e.Shutdown(ctx)
		},
	})
}

func RegisterRoutes(e *echo.Echo, ws *gateway.WSServer, adminHandler *admin.Handler) {
	ws.RegisterRoutes(e)
	adminHandler.RegisterRoutes(e)
}

var ServerModule = fx.Options(
	fx.Provide(NewEchoServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(StartServer),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		CoreModule,
		gateway.Module,
		ServerModule,
	).Run()
}
