package slave

import "github.com/VictoriaMetrics/metrics"

// Metrics holds the counters exposed by a slave process.
type Metrics struct {
	set *metrics.Set

	probes_received_total *metrics.Counter
	reconnects_total      *metrics.Counter
	conf_results_total    struct {
		ok *metrics.Counter
		no *metrics.Counter
	}
	exec_results_total struct {
		ok          *metrics.Counter
		no_no_conf  *metrics.Counter
		no_running  *metrics.Counter
		no_spawn    *metrics.Counter
	}
	finished_reports_total *metrics.Counter
}

// NewMetrics creates a Metrics and registers it with set, or with a fresh
// set if set is nil.
func NewMetrics(set *metrics.Set) *Metrics {
	if set == nil {
		set = metrics.NewSet()
	}
	m := &Metrics{set: set}
	m.probes_received_total = set.NewCounter(`synexec_slave_probes_received_total`)
	m.reconnects_total = set.NewCounter(`synexec_slave_reconnects_total`)
	m.conf_results_total.ok = set.NewCounter(`synexec_slave_conf_results_total{result="ok"}`)
	m.conf_results_total.no = set.NewCounter(`synexec_slave_conf_results_total{result="no"}`)
	m.exec_results_total.ok = set.NewCounter(`synexec_slave_exec_results_total{result="ok"}`)
	m.exec_results_total.no_no_conf = set.NewCounter(`synexec_slave_exec_results_total{result="no_no_conf"}`)
	m.exec_results_total.no_running = set.NewCounter(`synexec_slave_exec_results_total{result="no_running"}`)
	m.exec_results_total.no_spawn = set.NewCounter(`synexec_slave_exec_results_total{result="no_spawn"}`)
	m.finished_reports_total = set.NewCounter(`synexec_slave_finished_reports_total`)
	return m
}

// Set returns the underlying metrics.Set, for registering with a debug HTTP
// handler.
func (m *Metrics) Set() *metrics.Set { return m.set }
