package master

import "github.com/VictoriaMetrics/metrics"

// Metrics holds the counters exposed for one master process, registered
// under their own set so a process running multiple sessions in sequence
// doesn't panic on re-registration.
type Metrics struct {
	set *metrics.Set

	probes_sent_total       *metrics.Counter
	slaves_admitted_total   *metrics.Counter
	slaves_rejected_total   struct {
		duplicate_ip  *metrics.Counter
		bad_handshake *metrics.Counter
	}
	slaves_lost_total    *metrics.Counter
	config_sent_total    *metrics.Counter
	config_rejected_total *metrics.Counter
	session_duration_seconds *metrics.Histogram
}

// NewMetrics creates a Metrics and registers it with set, or with a fresh
// set if set is nil (the global default set is never used).
func NewMetrics(set *metrics.Set) *Metrics {
	if set == nil {
		set = metrics.NewSet()
	}
	m := &Metrics{set: set}
	m.probes_sent_total = set.NewCounter(`synexec_master_probes_sent_total`)
	m.slaves_admitted_total = set.NewCounter(`synexec_master_slaves_admitted_total`)
	m.slaves_rejected_total.duplicate_ip = set.NewCounter(`synexec_master_slaves_rejected_total{reason="duplicate_ip"}`)
	m.slaves_rejected_total.bad_handshake = set.NewCounter(`synexec_master_slaves_rejected_total{reason="bad_handshake"}`)
	m.slaves_lost_total = set.NewCounter(`synexec_master_slaves_lost_total`)
	m.config_sent_total = set.NewCounter(`synexec_master_config_sent_total`)
	m.config_rejected_total = set.NewCounter(`synexec_master_config_rejected_total`)
	m.session_duration_seconds = set.NewHistogram(`synexec_master_session_duration_seconds`)
	return m
}

// Set returns the underlying metrics.Set, for registering with a debug HTTP
// handler.
func (m *Metrics) Set() *metrics.Set { return m.set }
