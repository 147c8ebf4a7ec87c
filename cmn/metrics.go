package cmn

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects this node's self-reported counters and gauges, exported
// through prometheus/client_golang. There is no cluster-wide stats relay,
// only a single node's exported counters.
type Metrics struct {
	OpsEnqueued  *prometheus.CounterVec
	OpsApplied   *prometheus.CounterVec
	OpsFailed    *prometheus.CounterVec
	QueueDepth   prometheus.Gauge
	AAEPushSent  prometheus.Counter
	AAEPushRecv  prometheus.Counter
	AAESkipped   prometheus.Counter
	AAETimeouts  prometheus.Counter
	AAEFrozenSet prometheus.Counter
}

// NewMetrics registers every AutumnDB metric against reg and returns the
// handle packages use to increment them. Call once per node.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		OpsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autumndb_ops_enqueued_total",
			Help: "Operations enqueued into the operation engine, by op code.",
		}, []string{"op"}),
		OpsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autumndb_ops_applied_total",
			Help: "Operations successfully applied, by op code.",
		}, []string{"op"}),
		OpsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autumndb_ops_failed_total",
			Help: "Operations dropped on failure, by op code.",
		}, []string{"op"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autumndb_op_queue_depth",
			Help: "Current depth of the operation engine's FIFO queue.",
		}),
		AAEPushSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autumndb_aae_push_sent_total",
			Help: "DocumentPush frames sent to neighbors.",
		}),
		AAEPushRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autumndb_aae_push_received_total",
			Help: "DocumentPush frames received from neighbors.",
		}),
		AAESkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autumndb_aae_skipped_total",
			Help: "AAE exchanges that ended in TERMINATE_SESSION or a remote timestamp at least as new as the local one.",
		}),
		AAETimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autumndb_aae_timeouts_total",
			Help: "AAE neighbor exchanges abandoned on UDP/TCP timeout.",
		}),
		AAEFrozenSet: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autumndb_aae_frozen_total",
			Help: "Documents transiently frozen while applying a remote push.",
		}),
	}
	reg.MustRegister(m.OpsEnqueued, m.OpsApplied, m.OpsFailed, m.QueueDepth,
		m.AAEPushSent, m.AAEPushRecv, m.AAESkipped, m.AAETimeouts, m.AAEFrozenSet)
	return m
}
