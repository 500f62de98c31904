package ports

import "time"

// MetricsCollector records orchestration metrics
type MetricsCollector interface {
	RecordRunSubmitted(status string)
	ObserveQueueWait(wait time.Duration)
	RecordRunCompleted(status string, duration time.Duration)
	RecordNodeCompleted(agent, status string, duration time.Duration)
	RecordAttempt(agent string)
	RecordRetry(agent string)
	RecordTimeout(agent string)
	RecordToolCall(tool string, failed bool, duration time.Duration)
	RecordLLMCall(model string, inputTokens, outputTokens int64, latency time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
	SetActiveRuns(count int)
}

// NopMetrics discards all metrics
type NopMetrics struct{}

func (NopMetrics) RecordRunSubmitted(string)                          {}
func (NopMetrics) ObserveQueueWait(time.Duration)                    {}
func (NopMetrics) RecordRunCompleted(string, time.Duration)          {}
func (NopMetrics) RecordNodeCompleted(string, string, time.Duration) {}
func (NopMetrics) RecordAttempt(string)                              {}
func (NopMetrics) RecordRetry(string)                                {}
func (NopMetrics) RecordTimeout(string)                              {}
func (NopMetrics) RecordToolCall(string, bool, time.Duration)        {}
func (NopMetrics) RecordLLMCall(string, int64, int64, time.Duration) {}
func (NopMetrics) RecordWorkerPoolStatus(int, int, int)              {}
func (NopMetrics) SetQueueDepth(int)                                 {}
func (NopMetrics) SetActiveRuns(int)                                 {}
