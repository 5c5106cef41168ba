package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "playbook"

// Metrics holds the Prometheus collectors for workflow runs.
type Metrics struct {
	nodesEntered       *prometheus.CounterVec
	answersCommitted   *prometheus.CounterVec
	submissionFailures *prometheus.CounterVec
	danglingBranches   *prometheus.CounterVec
	snapshotFailures   *prometheus.CounterVec
	runsCompleted      *prometheus.CounterVec
	submitDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors. A nil registry means
// prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		nodesEntered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_entered_total",
			Help:      "Questions that became the current question of a run",
		}, []string{"workflow", "type"}),
		answersCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_committed_total",
			Help:      "Answers acknowledged by the remote authority",
		}, []string{"workflow", "skipped"}),
		submissionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submission_failures_total",
			Help:      "Answer submissions rejected or lost",
		}, []string{"workflow"}),
		danglingBranches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_branches_total",
			Help:      "Branch targets missing from the graph, recovered by sequential order",
		}, []string{"workflow"}),
		snapshotFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Acknowledged answers whose progress snapshot could not be saved",
		}, []string{"workflow"}),
		runsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Runs that reached the end of their workflow",
		}, []string{"workflow"}),
		submitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Round trip of answer submissions to the remote authority",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"workflow", "outcome"}),
	}
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodesEntered.WithLabelValues(e.WorkflowName, string(e.QuestionType)).Inc()
		},
		OnAnswerCommitted: func(_ context.Context, e *domain.AnswerEvent) {
			m.answersCommitted.WithLabelValues(e.WorkflowName, strconv.FormatBool(e.IsSkipped)).Inc()
			m.submitDuration.WithLabelValues(e.WorkflowName, "ok").Observe(e.Duration.Seconds())
		},
		OnSubmissionFailed: func(_ context.Context, e *domain.AnswerEvent) {
			m.submissionFailures.WithLabelValues(e.WorkflowName).Inc()
			m.submitDuration.WithLabelValues(e.WorkflowName, "error").Observe(e.Duration.Seconds())
		},
		OnDanglingBranch: func(_ context.Context, e *domain.BranchEvent) {
			m.danglingBranches.WithLabelValues(e.WorkflowName).Inc()
		},
		OnSnapshotFailed: func(_ context.Context, e *domain.SnapshotEvent) {
			m.snapshotFailures.WithLabelValues(e.WorkflowName).Inc()
		},
		OnRunComplete: func(_ context.Context, e *domain.EventBase) {
			m.runsCompleted.WithLabelValues(e.WorkflowName).Inc()
		},
	}
}
