// Package metrics wires the core's observable counters and gauges to
// Prometheus, grounded on the teacher's prometheus.go collector-struct
// idiom. Unlike the teacher — a single long-lived process that can
// safely use promauto's global registration — this is a library
// package that may be instantiated more than once per process (once
// per session, in tests), so collectors are built with
// prometheus.NewGaugeVec/NewCounterVec and registered explicitly via
// Register rather than promauto's package-level auto-registration,
// which panics on the second call in the same registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds one session's Prometheus collectors. A data-type label
// ("audio", "midi", "sync") distinguishes the three packet kinds of
// §4.1; a direction label ("send", "return") distinguishes the two
// independent loss-detector instances of §4.6.
type Metrics struct {
	PacketsSent     *prometheus.CounterVec // labels: data_type
	PacketsReceived *prometheus.CounterVec // labels: data_type
	BytesSent       *prometheus.CounterVec // labels: data_type
	BytesReceived   *prometheus.CounterVec // labels: data_type

	SequenceGaps     *prometheus.CounterVec // labels: direction
	MalformedPackets *prometheus.CounterVec // labels: reason (§7)

	ActivePorts    *prometheus.GaugeVec // labels: direction — A, the optimized active-port count
	SubPeriod      *prometheus.GaugeVec // labels: direction — S, current sub-period sample count
	MIDIEventsLost prometheus.Counter   // §4.3, events dropped for not fitting the MIDI cycle buffer

	CycleDuration prometheus.Histogram // observed cycle wall-clock duration, seconds

	// SessionInfo carries the session's off-wire correlation id
	// (config.Config.SessionID) as a constant-value info gauge, the
	// common Prometheus idiom for attaching an identifying label to a
	// metric stream rather than to every sample (cf. "..._build_info").
	SessionInfo *prometheus.GaugeVec // labels: session_id
}

// SetSessionID records id as this process's session correlation id,
// the metrics-label half of the same id config.Config.NewLogger uses
// to prefix log lines.
func (m *Metrics) SetSessionID(id string) {
	m.SessionInfo.WithLabelValues(id).Set(1)
}

// New constructs a Metrics set. Call Register to attach it to a
// *prometheus.Registry; an unregistered Metrics is still safe to use,
// it simply won't be scraped.
func New() *Metrics {
	return &Metrics{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netjack_packets_sent_total",
			Help: "Total packets sent, by data type.",
		}, []string{"data_type"}),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netjack_packets_received_total",
			Help: "Total packets received, by data type.",
		}, []string{"data_type"}),
		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netjack_bytes_sent_total",
			Help: "Total payload bytes sent, by data type.",
		}, []string{"data_type"}),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netjack_bytes_received_total",
			Help: "Total payload bytes received, by data type.",
		}, []string{"data_type"}),
		SequenceGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netjack_sequence_gaps_total",
			Help: "Detected sub-cycle sequence gaps, by direction.",
		}, []string{"direction"}),
		MalformedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netjack_malformed_packets_total",
			Help: "Packets rejected as malformed, by reason.",
		}, []string{"reason"}),
		ActivePorts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netjack_active_ports",
			Help: "Current optimized-mode active port count, by direction.",
		}, []string{"direction"}),
		SubPeriod: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netjack_sub_period_samples",
			Help: "Current sub-period sample count S, by direction.",
		}, []string{"direction"}),
		MIDIEventsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netjack_midi_events_lost_total",
			Help: "MIDI events dropped for not fitting the MIDI cycle buffer.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netjack_cycle_duration_seconds",
			Help:    "Observed audio cycle duration.",
			Buckets: prometheus.DefBuckets,
		}),
		SessionInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netjack_session_info",
			Help: "Constant 1, labeled by the session's off-wire correlation id.",
		}, []string{"session_id"}),
	}
}

// Register attaches every collector in m to reg. Callers that want the
// default global registry can pass prometheus.DefaultRegisterer's
// underlying *prometheus.Registry, but library code should prefer a
// registry scoped to the caller's own lifetime.
func (m *Metrics) Register(reg *prometheus.Registry) error {
	collectors := []prometheus.Collector{
		m.PacketsSent, m.PacketsReceived, m.BytesSent, m.BytesReceived,
		m.SequenceGaps, m.MalformedPackets, m.ActivePorts, m.SubPeriod,
		m.MIDIEventsLost, m.CycleDuration, m.SessionInfo,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
