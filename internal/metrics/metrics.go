package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperscout_workflows_started_total",
			Help: "Total number of workflows started",
		},
		[]string{"workflow_type"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperscout_workflows_completed_total",
			Help: "Total number of workflows completed",
		},
		[]string{"workflow_type", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperscout_workflow_duration_seconds",
			Help:    "Workflow execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow_type"},
	)

	// Dispatch metrics
	HandlersCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperscout_handlers_completed_total",
			Help: "Total number of handler invocations that completed successfully",
		},
		[]string{"topic"},
	)

	HandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperscout_handler_failures_total",
			Help: "Total number of handler invocations that failed",
		},
		[]string{"topic"},
	)

	GateWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paperscout_gate_wait_seconds",
			Help:    "Time spent blocked on the completion gate",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow_type", "outcome"},
	)

	// Collaborator metrics
	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperscout_lookup_requests_total",
			Help: "Total number of lookup requests to the paper-search API",
		},
		[]string{"status"},
	)

	LookupRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paperscout_lookup_retries_total",
			Help: "Total number of retried lookup requests",
		},
	)

	LookupCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paperscout_lookup_cache_hits_total",
			Help: "Total number of lookup results served from cache",
		},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paperscout_llm_requests_total",
			Help: "Total number of completion requests to the language model",
		},
		[]string{"purpose", "status"},
	)

	LLMTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paperscout_llm_tokens_used",
			Help:    "Number of tokens used per completion request",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
	)
)

// RecordWorkflowStart records a workflow start
func RecordWorkflowStart(workflowType string) {
	WorkflowsStarted.WithLabelValues(workflowType).Inc()
}

// RecordWorkflowCompletion records workflow completion with duration
func RecordWorkflowCompletion(workflowType, status string, durationSeconds float64) {
	WorkflowsCompleted.WithLabelValues(workflowType, status).Inc()
	WorkflowDuration.WithLabelValues(workflowType).Observe(durationSeconds)
}

// RecordGateWait records time spent blocked on the completion gate
func RecordGateWait(workflowType, outcome string, durationSeconds float64) {
	GateWaitDuration.WithLabelValues(workflowType, outcome).Observe(durationSeconds)
}

// RecordLLMRequest records a completion request outcome and token usage
func RecordLLMRequest(purpose, status string, tokens int) {
	LLMRequests.WithLabelValues(purpose, status).Inc()
	if tokens > 0 {
		LLMTokensUsed.Observe(float64(tokens))
	}
}
