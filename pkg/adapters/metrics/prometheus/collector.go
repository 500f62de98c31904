package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge
	queueDepth    prometheus.Gauge
	queueWaitTime prometheus.Histogram

	nodesCompleted *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	nodeAttempts   *prometheus.CounterVec
	nodeRetries    *prometheus.CounterVec
	nodeTimeouts   *prometheus.CounterVec

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec

	llmCalls   *prometheus.CounterVec
	llmTokens  *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a collector registered with the default Prometheus registry
func NewCollector() *Collector {
	return NewCollectorWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegisterer creates a collector registered with reg
func NewCollectorWithRegisterer(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_runs_submitted_total",
				Help: "Total number of asynchronous run submissions",
			},
			[]string{"status"},
		),
		runsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_runs_completed_total",
				Help: "Total number of completed runs",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_active_runs",
				Help: "Number of runs currently executing",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_queue_depth",
				Help: "Number of submitted runs waiting for a worker",
			},
		),
		queueWaitTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dagrun_queue_wait_time_seconds",
				Help:    "Time a submitted run spent waiting in the queue",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		nodesCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_nodes_completed_total",
				Help: "Total number of node outcomes by agent and status",
			},
			[]string{"agent", "status"},
		),
		nodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_node_duration_seconds",
				Help:    "Node duration in seconds, including retries",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"agent"},
		),
		nodeAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_node_attempts_total",
				Help: "Total number of agent invocation attempts",
			},
			[]string{"agent"},
		),
		nodeRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_node_retries_total",
				Help: "Total number of retries after a failed attempt",
			},
			[]string{"agent"},
		),
		nodeTimeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_node_timeouts_total",
				Help: "Total number of attempts abandoned on timeout",
			},
			[]string{"agent"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"tool", "failed"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_tool_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"tool"},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"model"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dagrun_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"model", "type"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dagrun_llm_latency_seconds",
				Help:    "LLM API call latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"model"},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dagrun_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordRunSubmitted records an asynchronous submission as accepted or rejected
func (c *Collector) RecordRunSubmitted(status string) {
	c.runsSubmitted.WithLabelValues(status).Inc()
}

// ObserveQueueWait records how long a run waited for a worker
func (c *Collector) ObserveQueueWait(wait time.Duration) {
	c.queueWaitTime.Observe(wait.Seconds())
}

// RecordRunCompleted records a finished run
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeCompleted records a node outcome; status is "succeeded" or an error kind
func (c *Collector) RecordNodeCompleted(agent, status string, duration time.Duration) {
	c.nodesCompleted.WithLabelValues(agent, status).Inc()
	c.nodeDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordAttempt records one agent invocation
func (c *Collector) RecordAttempt(agent string) {
	c.nodeAttempts.WithLabelValues(agent).Inc()
}

// RecordRetry records a retry after a failed attempt
func (c *Collector) RecordRetry(agent string) {
	c.nodeRetries.WithLabelValues(agent).Inc()
}

// RecordTimeout records an abandoned attempt
func (c *Collector) RecordTimeout(agent string) {
	c.nodeTimeouts.WithLabelValues(agent).Inc()
}

// RecordToolCall records a tool call
func (c *Collector) RecordToolCall(tool string, failed bool, duration time.Duration) {
	c.toolCalls.WithLabelValues(tool, strconv.FormatBool(failed)).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordLLMCall records an LLM API call and its token usage
func (c *Collector) RecordLLMCall(model string, inputTokens, outputTokens int64, latency time.Duration) {
	c.llmCalls.WithLabelValues(model).Inc()
	c.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	c.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	c.llmLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the number of runs waiting for a worker
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// SetActiveRuns sets the number of runs currently executing
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}
