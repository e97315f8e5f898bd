// Package metrics exposes the engine's counters and gauges via
// Prometheus, grounded on the client_golang registration pattern: build
// collectors, MustRegister them once, serve promhttp.Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sipvpn/application"
)

// Prometheus implements application.MetricsSink against a dedicated
// registry, so a process can run several instances without collector
// name collisions.
type Prometheus struct {
	registry *prometheus.Registry

	packetsIn      prometheus.Counter
	packetsOut     prometheus.Counter
	dedupDropped   prometheus.Counter
	authFailed     prometheus.Counter
	retransmits    prometheus.Counter
	acksSent       prometheus.Counter
	retransmitUsed prometheus.Gauge
	ackQueueLen    prometheus.Gauge
}

// New builds a Prometheus sink with runID attached as a constant label,
// so counters from concurrent runs (e.g. in tests) don't collide on a
// shared default registry.
func New(runID string) *Prometheus {
	labels := prometheus.Labels{"run_id": runID}
	registry := prometheus.NewRegistry()

	p := &Prometheus{
		registry: registry,
		packetsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sipvpn_packets_in_total",
			Help:        "UDP packets received from the peer.",
			ConstLabels: labels,
		}),
		packetsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sipvpn_packets_out_total",
			Help:        "UDP packets sent to the peer, including retransmits and duplicates.",
			ConstLabels: labels,
		}),
		dedupDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sipvpn_dedup_dropped_total",
			Help:        "Inbound packets dropped as duplicates.",
			ConstLabels: labels,
		}),
		authFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sipvpn_auth_failed_total",
			Help:        "Inbound packets dropped for failing decrypt/authentication.",
			ConstLabels: labels,
		}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sipvpn_retransmits_total",
			Help:        "Packet copies sent as retransmissions.",
			ConstLabels: labels,
		}),
		acksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sipvpn_acks_sent_total",
			Help:        "Ack bundle packets sent.",
			ConstLabels: labels,
		}),
		retransmitUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sipvpn_retransmit_table_in_use",
			Help:        "Occupied slots in the retransmit table.",
			ConstLabels: labels,
		}),
		ackQueueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sipvpn_ack_queue_len",
			Help:        "Checksums currently queued for acking.",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		p.packetsIn, p.packetsOut, p.dedupDropped, p.authFailed,
		p.retransmits, p.acksSent, p.retransmitUsed, p.ackQueueLen,
	)
	return p
}

// Handler returns the HTTP handler to mount at the configured
// metrics_addr's /metrics path.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) IncPacketsIn()  { p.packetsIn.Inc() }
func (p *Prometheus) IncPacketsOut() { p.packetsOut.Inc() }
func (p *Prometheus) IncDedupDropped() { p.dedupDropped.Inc() }
func (p *Prometheus) IncAuthFailed()   { p.authFailed.Inc() }
func (p *Prometheus) IncRetransmits(copies int) {
	p.retransmits.Add(float64(copies))
}
func (p *Prometheus) IncAcksSent()              { p.acksSent.Inc() }
func (p *Prometheus) SetRetransmitInUse(n int)  { p.retransmitUsed.Set(float64(n)) }
func (p *Prometheus) SetAckQueueLen(n int)      { p.ackQueueLen.Set(float64(n)) }

var _ application.MetricsSink = (*Prometheus)(nil)

// Noop discards every call; used when metrics_addr is unset.
type Noop struct{}

func (Noop) IncPacketsIn()             {}
func (Noop) IncPacketsOut()            {}
func (Noop) IncDedupDropped()          {}
func (Noop) IncAuthFailed()            {}
func (Noop) IncRetransmits(int)        {}
func (Noop) IncAcksSent()              {}
func (Noop) SetRetransmitInUse(int)    {}
func (Noop) SetAckQueueLen(int)        {}

var _ application.MetricsSink = Noop{}
