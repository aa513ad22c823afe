package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors registered
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// NodeMetrics are the Art-Net node's own metrics
type NodeMetrics struct {
	PacketsReceived  *prometheus.CounterVec // labels: opcode
	DecodeErrors     *prometheus.CounterVec // labels: kind=parse|version|opcode
	PollReplies      *prometheus.CounterVec // labels: result=sent|limited|skipped|error
	DmxFrames        prometheus.Counter
	DmxFramesDropped prometheus.Counter
	SyncTotal        prometheus.Counter
	CommandsTotal    prometheus.Counter
	ActiveUniverses  prometheus.Gauge
}

// NewNodeMetrics registers and returns the node metrics.
// A nil registry yields unregistered collectors, which is convenient in tests.
func NewNodeMetrics(reg prometheus.Registerer) *NodeMetrics {
	m := &NodeMetrics{
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artnet_packets_received_total",
			Help: "Art-Net packets decoded, by opcode.",
		}, []string{"opcode"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artnet_decode_errors_total",
			Help: "Datagrams that failed to decode, by kind.",
		}, []string{"kind"}),
		PollReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "artnet_poll_replies_total",
			Help: "ArtPollReply attempts, by result.",
		}, []string{"result"}),
		DmxFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "artnet_dmx_frames_total",
			Help: "ArtDmx frames accepted for a local port.",
		}),
		DmxFramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "artnet_dmx_frames_dropped_total",
			Help: "ArtDmx frames dropped because the frame queue was full.",
		}),
		SyncTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "artnet_sync_total",
			Help: "ArtSync packets received.",
		}),
		CommandsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "artnet_commands_total",
			Help: "ArtCommand packets received.",
		}),
		ActiveUniverses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "artnet_active_universes",
			Help: "Universes that received data recently.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PacketsReceived, m.DecodeErrors, m.PollReplies, m.DmxFrames,
			m.DmxFramesDropped, m.SyncTotal, m.CommandsTotal, m.ActiveUniverses)
	}
	return m
}
