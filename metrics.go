package hive

import "github.com/prometheus/client_golang/prometheus"

// Metrics wires the runtime's own operational health into Prometheus
// (SPEC_FULL.md AMBIENT STACK "Metrics"): lock wait time, stage duration,
// storage cardinality, tick rate. All methods are nil-safe so a World
// built without WithMetrics pays no cost and never panics.
type Metrics struct {
	borrowWait   *prometheus.HistogramVec
	stageSeconds *prometheus.HistogramVec
	storageLen   *prometheus.GaugeVec
	tickTotal    prometheus.Counter
}

// NewMetrics registers the runtime's collectors against reg and returns a
// Metrics ready to attach via WithMetrics. Pass a fresh
// prometheus.NewRegistry() in tests to avoid clashing with the default
// global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		borrowWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hive_borrow_wait_seconds",
			Help: "Time spent waiting to acquire a storage lock.",
		}, []string{"storage"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "hive_workload_stage_seconds",
			Help: "Wall-clock duration of one system run, labelled by workload and stage kind.",
		}, []string{"workload", "stage"}),
		storageLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hive_storage_len",
			Help: "Number of components currently stored, per storage type.",
		}, []string{"storage"}),
		tickTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hive_tick_total",
			Help: "Monotonically increasing count of World tick advances.",
		}),
	}
	reg.MustRegister(m.borrowWait, m.stageSeconds, m.storageLen, m.tickTotal)
	return m
}

// noopMetrics returns a Metrics whose collectors are allocated but never
// registered, so every call is cheap and side-effect-free.
func noopMetrics() *Metrics {
	return &Metrics{
		borrowWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "hive_borrow_wait_seconds_noop"}, []string{"storage"}),
		stageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "hive_workload_stage_seconds_noop"}, []string{"workload", "stage"}),
		storageLen: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "hive_storage_len_noop"}, []string{"storage"}),
		tickTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "hive_tick_total_noop"}),
	}
}

func (m *Metrics) observeBorrowWait(storage string, seconds float64) {
	if m == nil || m.borrowWait == nil {
		return
	}
	m.borrowWait.WithLabelValues(storage).Observe(seconds)
}

func (m *Metrics) observeStage(workload, stage string, seconds float64) {
	if m == nil || m.stageSeconds == nil {
		return
	}
	m.stageSeconds.WithLabelValues(workload, stage).Observe(seconds)
}

func (m *Metrics) setStorageLen(storage string, n int) {
	if m == nil || m.storageLen == nil {
		return
	}
	m.storageLen.WithLabelValues(storage).Set(float64(n))
}
