package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Connections     prometheus.Gauge
	ActiveCalls     prometheus.Gauge
	Events          *prometheus.CounterVec
	SignalsRelayed  prometheus.Counter
	CallsStarted    prometheus.Counter
	CallsEnded      *prometheus.CounterVec
	InvalidMessages prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "signaling",
			Name:      "connections",
			Help:      "Currently connected clients.",
		}),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "signaling",
			Name:      "active_calls",
			Help:      "Calls currently tracked as active.",
		}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signaling",
			Name:      "events_total",
			Help:      "Inbound events processed, by event name.",
		}, []string{"event"}),
		SignalsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "signaling",
			Name:      "signals_relayed_total",
			Help:      "Peer signaling payloads forwarded.",
		}),
		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "signaling",
			Name:      "calls_started_total",
			Help:      "Calls started.",
		}),
		CallsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signaling",
			Name:      "calls_ended_total",
			Help:      "Calls ended, by reason.",
		}, []string{"reason"}),
		InvalidMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "signaling",
			Name:      "invalid_messages_total",
			Help:      "Inbound messages rejected at the boundary.",
		}),
	}
}
