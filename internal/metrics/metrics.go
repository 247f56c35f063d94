package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gather"

// Counter reports live occupancy.
type Counter interface {
	Counts() (sessions, players int)
}

// Metrics records presence outcomes and occupancy as Prometheus series.
type Metrics struct {
	sessions  prometheus.Gauge
	players   prometheus.Gauge
	joins     prometheus.Counter
	rejects   *prometheus.CounterVec
	evictions prometheus.Counter
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live realm sessions.",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Players registered in a realm session.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Admitted realm joins.",
		}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_rejections_total",
			Help:      "Rejected realm joins by reason code.",
		}, []string{"code"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Players forcibly removed from a session.",
		}),
	}

	for _, c := range []prometheus.Collector{m.sessions, m.players, m.joins, m.rejects, m.evictions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) JoinAccepted() {
	m.joins.Inc()
}

func (m *Metrics) JoinRejected(code string) {
	m.rejects.WithLabelValues(code).Inc()
}

func (m *Metrics) Evicted(count int) {
	m.evictions.Add(float64(count))
}

// Sample copies the current occupancy into the gauges.
func (m *Metrics) Sample(c Counter) {
	sessions, players := c.Counts()
	m.sessions.Set(float64(sessions))
	m.players.Set(float64(players))
}
