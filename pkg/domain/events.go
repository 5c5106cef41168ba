package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter        EventType = "node_enter"
	EventAnswerCommitted  EventType = "answer_committed"
	EventSubmissionFailed EventType = "submission_failed"
	EventDanglingBranch   EventType = "dangling_branch"
	EventSnapshotFailed   EventType = "snapshot_failed"
	EventRunComplete      EventType = "run_complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	WorkflowName   string    `json:"workflow_name"`
	IncidentNumber string    `json:"incident_number"`
}

// NodeEvent is emitted when a node becomes the current node.
type NodeEvent struct {
	EventBase
	QuestionID   int          `json:"question_id"`
	QuestionType QuestionType `json:"question_type"`
}

// AnswerEvent is emitted after a submission attempt.
type AnswerEvent struct {
	EventBase
	QuestionID int           `json:"question_id"`
	IsSkipped  bool          `json:"is_skipped,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// BranchEvent is emitted when a branch target is dangling and the sequential
// fallback was used instead.
type BranchEvent struct {
	EventBase
	FromID     int  `json:"from_id"`
	DanglingID int  `json:"dangling_id"`
	FallbackID *int `json:"fallback_id,omitempty"`
}

// SnapshotEvent is emitted when an acknowledged answer could not be written to
// the progress store. The run goes on; the next Start rebuilds it from remote history.
type SnapshotEvent struct {
	EventBase
	QuestionID int   `json:"question_id"`
	Err        error `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability. Every field is optional.
type LifecycleHooks struct {
	OnNodeEnter        func(context.Context, *NodeEvent)
	OnAnswerCommitted  func(context.Context, *AnswerEvent)
	OnSubmissionFailed func(context.Context, *AnswerEvent)
	OnDanglingBranch   func(context.Context, *BranchEvent)
	OnSnapshotFailed   func(context.Context, *SnapshotEvent)
	OnRunComplete      func(context.Context, *EventBase)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:        chain(h.OnNodeEnter, other.OnNodeEnter),
		OnAnswerCommitted:  chain(h.OnAnswerCommitted, other.OnAnswerCommitted),
		OnSubmissionFailed: chain(h.OnSubmissionFailed, other.OnSubmissionFailed),
		OnDanglingBranch:   chain(h.OnDanglingBranch, other.OnDanglingBranch),
		OnSnapshotFailed:   chain(h.OnSnapshotFailed, other.OnSnapshotFailed),
		OnRunComplete:      chain(h.OnRunComplete, other.OnRunComplete),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
