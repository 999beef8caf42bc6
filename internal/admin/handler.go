package admin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rolevoice/signaling-relay/internal/relay"
)

const defaultStatsLimit = 10

// ListResponse is the common envelope for the admin list endpoints.
type ListResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Total   int  `json:"total"`
}

type HealthResponse struct {
	Status       string  `json:"status"`
	Timestamp    string  `json:"timestamp"`
	Connections  int     `json:"connections"`
	ActiveCalls  int     `json:"activeCalls"`
	UserSessions int     `json:"userSessions"`
	Uptime       float64 `json:"uptime"`
}

type ActiveCall struct {
	CallKey          string   `json:"callKey"`
	RoleID           string   `json:"roleId"`
	SessionID        string   `json:"sessionId"`
	CallMode         string   `json:"callMode"`
	State            string   `json:"state"`
	Status           string   `json:"status"`
	Quality          string   `json:"quality,omitempty"`
	StartTime        int64    `json:"startTime"`
	LastUpdate       int64    `json:"lastUpdate"`
	Participants     []string `json:"participants"`
	DurationMS       int64    `json:"duration"`
	ParticipantCount int      `json:"participantCount"`
}

type CallStat struct {
	ID              string   `json:"id"`
	CallKey         string   `json:"callKey"`
	RoleID          string   `json:"roleId"`
	SessionID       string   `json:"sessionId"`
	CallMode        string   `json:"callMode"`
	Status          string   `json:"status"`
	Quality         string   `json:"quality,omitempty"`
	StartTime       int64    `json:"startTime"`
	EndTime         int64    `json:"endTime"`
	DurationMS      int64    `json:"duration"`
	DurationSeconds int64    `json:"durationSeconds"`
	Participants    []string `json:"participants"`
	EndedBy         string   `json:"endedBy"`
	EndReason       string   `json:"endReason,omitempty"`
}

type OnlineUser struct {
	SocketID       string `json:"socketId"`
	UserID         string `json:"userId"`
	RoleID         string `json:"roleId"`
	SessionID      string `json:"sessionId"`
	RoomName       string `json:"roomName"`
	JoinTime       int64  `json:"joinTime"`
	OnlineDuration int64  `json:"onlineDuration"`
}

// Handler serves the read-only operational surface. Every endpoint is a
// synchronous snapshot of in-memory relay state.
type Handler struct {
	relay     *relay.Relay
	registry  *prometheus.Registry
	log       *slog.Logger
	startedAt time.Time
}

func NewHandler(r *relay.Relay, registry *prometheus.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		relay:     r,
		registry:  registry,
		log:       logger.With("handler", "admin"),
		startedAt: r.Clock().Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/api/active-calls", h.ActiveCalls)
	e.GET("/api/call-stats", h.CallStats)
	e.GET("/api/online-users", h.OnlineUsers)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})))
}

func (h *Handler) Health(c echo.Context) error {
	now := h.relay.Clock().Now()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		Connections:  h.relay.ConnectionCount(),
		ActiveCalls:  h.relay.ActiveCallCount(),
		UserSessions: h.relay.SessionCount(),
		Uptime:       now.Sub(h.startedAt).Seconds(),
	})
}

func (h *Handler) ActiveCalls(c echo.Context) error {
	now := h.relay.Clock().Now()
	records := h.relay.ActiveCalls()

	calls := make([]ActiveCall, len(records))
	for i, call := range records {
		calls[i] = ActiveCall{
			CallKey:          call.Key(),
			RoleID:           call.RoleID,
			SessionID:        call.SessionID,
			CallMode:         call.CallMode,
			State:            string(call.State),
			Status:           call.Status,
			Quality:          call.Quality,
			StartTime:        call.StartedAt.UnixMilli(),
			LastUpdate:       call.LastUpdate.UnixMilli(),
			Participants:     call.Participants,
			DurationMS:       now.Sub(call.StartedAt).Milliseconds(),
			ParticipantCount: len(call.Participants),
		}
	}

	return c.JSON(http.StatusOK, ListResponse{Success: true, Data: calls, Total: len(calls)})
}

func (h *Handler) CallStats(c echo.Context) error {
	limit := defaultStatsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	recent := h.relay.RecentStats(limit)
	stats := make([]CallStat, len(recent))
	for i, stat := range recent {
		stats[i] = CallStat{
			ID:              stat.ID,
			CallKey:         relay.CallKey(stat.RoleID, stat.SessionID),
			RoleID:          stat.RoleID,
			SessionID:       stat.SessionID,
			CallMode:        stat.CallMode,
			Status:          stat.Status,
			Quality:         stat.Quality,
			StartTime:       stat.StartedAt.UnixMilli(),
			EndTime:         stat.EndedAt.UnixMilli(),
			DurationMS:      stat.DurationMS,
			DurationSeconds: (stat.DurationMS + 500) / 1000,
			Participants:    stat.Participants,
			EndedBy:         stat.EndedBy,
			EndReason:       stat.EndReason,
		}
	}

	return c.JSON(http.StatusOK, ListResponse{Success: true, Data: stats, Total: h.relay.StatsCount()})
}

func (h *Handler) OnlineUsers(c echo.Context) error {
	now := h.relay.Clock().Now()
	sessions := h.relay.Sessions()

	users := make([]OnlineUser, len(sessions))
	for i, sess := range sessions {
		users[i] = OnlineUser{
			SocketID:       sess.SocketID,
			UserID:         sess.UserID,
			RoleID:         sess.RoleID,
			SessionID:      sess.SessionID,
			RoomName:       sess.RoomName,
			JoinTime:       sess.JoinedAt.UnixMilli(),
			OnlineDuration: now.Sub(sess.JoinedAt).Milliseconds(),
		}
	}

	return c.JSON(http.StatusOK, ListResponse{Success: true, Data: users, Total: len(users)})
}
