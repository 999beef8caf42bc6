package gateway

import (
	"log/slog"

	"github.com/rolevoice/signaling-relay/internal/relay"
	"go.uber.org/fx"
)

func ProvideWSServer(r *relay.Relay, cfg Config, logger *slog.Logger) *WSServer {
	return NewWSServer(r, cfg, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideWSServer),
)
