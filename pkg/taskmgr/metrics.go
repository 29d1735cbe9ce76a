package taskmgr

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the prometheus counter/gauge set spec.md §4.2's "bound
// sent/received bytes" and throughput reporting requirement maps onto.
// Grounded on kubernaut's direct client_golang dependency.
type Metrics struct {
	tasksSubmitted *prometheus.CounterVec
	tasksCompleted *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
	bytesSent      *prometheus.CounterVec
	bytesReceived  *prometheus.CounterVec
}

// NewMetrics registers (best-effort; duplicate registration is ignored) a
// metrics set under namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		tasksSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "taskmgr", Name: "tasks_submitted_total",
			Help: "Number of tasks submitted to the task manager, by task name.",
		}, []string{"task"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "taskmgr", Name: "tasks_completed_total",
			Help: "Number of tasks completed successfully, by task name.",
		}, []string{"task"}),
		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "taskmgr", Name: "tasks_failed_total",
			Help: "Number of tasks that returned an error, by task name.",
		}, []string{"task"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "taskmgr", Name: "bytes_sent_total",
			Help: "Estimated bytes sent to workers, by task name.",
		}, []string{"task"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "taskmgr", Name: "bytes_received_total",
			Help: "Estimated bytes received from workers, by task name.",
		}, []string{"task"}),
	}
	for _, c := range []prometheus.Collector{m.tasksSubmitted, m.tasksCompleted, m.tasksFailed, m.bytesSent, m.bytesReceived} {
		_ = prometheus.Register(c)
	}
	return m
}

func (m *Metrics) TaskSubmitted(task string) { m.tasksSubmitted.WithLabelValues(task).Inc() }
func (m *Metrics) TaskCompleted(task string)  { m.tasksCompleted.WithLabelValues(task).Inc() }
func (m *Metrics) TaskFailed(task string)     { m.tasksFailed.WithLabelValues(task).Inc() }
func (m *Metrics) BytesSent(task string, n int64) {
	m.bytesSent.WithLabelValues(task).Add(float64(n))
}
func (m *Metrics) BytesReceived(task string, n int64) {
	m.bytesReceived.WithLabelValues(task).Add(float64(n))
}
