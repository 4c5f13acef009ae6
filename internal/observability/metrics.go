package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "danmu",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "Inbound binary frames by message type.",
		},
		[]string{"room", "type"},
	)
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "danmu",
			Subsystem: "relay",
			Name:      "events_total",
			Help:      "Decoded events by kind.",
		},
		[]string{"room", "kind"},
	)
	diagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "danmu",
			Subsystem: "relay",
			Name:      "diagnostics_total",
			Help:      "Frames or sub-messages skipped during decode.",
		},
		[]string{"room", "reason"},
	)
	popularity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "danmu",
			Subsystem: "relay",
			Name:      "popularity",
			Help:      "Last popularity value reported by heartbeat responses.",
		},
		[]string{"room"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "danmu",
			Subsystem: "relay",
			Name:      "active_sessions",
			Help:      "Upstream sessions currently streaming.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, eventsTotal, diagnosticsTotal, popularity, activeSessions)
	})
}

func roomLabel(roomID uint64) string {
	return strconv.FormatUint(roomID, 10)
}

func RecordFrame(roomID uint64, typ string) {
	RegisterMetrics()
	framesTotal.WithLabelValues(roomLabel(roomID), typ).Inc()
}

func RecordEvent(roomID uint64, kind string) {
	RegisterMetrics()
	eventsTotal.WithLabelValues(roomLabel(roomID), kind).Inc()
}

func RecordDiagnostic(roomID uint64, reason string) {
	RegisterMetrics()
	diagnosticsTotal.WithLabelValues(roomLabel(roomID), reason).Inc()
}

func SetPopularity(roomID uint64, value uint32) {
	RegisterMetrics()
	popularity.WithLabelValues(roomLabel(roomID)).Set(float64(value))
}

func SessionStarted() {
	RegisterMetrics()
	activeSessions.Inc()
}

func SessionEnded() {
	RegisterMetrics()
	activeSessions.Dec()
}
