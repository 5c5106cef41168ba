package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a question id or position does not exist in a graph.
	ErrNotFound = errors.New("not found")

	// ErrWorkflowNotFound is returned when a workflow name cannot be resolved.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrPriorAnswersNotFound signals that the remote authority has no answers for an
	// incident. It drives the fresh-run path and is never surfaced as a failure.
	ErrPriorAnswersNotFound = errors.New("no prior answers")

	// ErrSnapshotNotFound is returned by stores when no snapshot exists for a key.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotCorrupt is returned by stores when a stored record cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrUnknownQuestionType is returned when a question type tag cannot be normalized.
	ErrUnknownQuestionType = errors.New("unknown question type")

	// ErrSkipRequired is returned when an operator tries to skip a required node.
	ErrSkipRequired = errors.New("question is required and cannot be skipped")

	// ErrSubmissionInFlight is returned when a session already has an outstanding submission.
	ErrSubmissionInFlight = errors.New("a submission is already in flight for this session")

	// ErrRunComplete is returned when input is given to a completed session.
	ErrRunComplete = errors.New("workflow run is already complete")

	// ErrNotAwaitingInput is returned when a session is not in the AwaitingInput phase.
	ErrNotAwaitingInput = errors.New("session is not awaiting input")
)

// PreconditionError is fatal to a session: a required identifier was missing
// before traversal started. No network call is attempted.
type PreconditionError struct {
	Field string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("missing %s: both workflow and incident number are required", e.Field)
}

// LoadError wraps a transport or format failure while loading a graph or the
// prior answers. Traversal does not start until the load succeeds.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmissionError is a recoverable failure to commit an answer. Message carries the
// remote authority's human-readable reason when one was provided.
type SubmissionError struct {
	QuestionID int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("submit answer for question %d: %v", e.QuestionID, e.Err)
	}
	return fmt.Sprintf("submit answer for question %d failed", e.QuestionID)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// GraphIntegrityError describes a dangling branch target. It is recovered by the
// sequential fallback and only ever logged.
type GraphIntegrityError struct {
	FromID int
	ToID   int
}

func (e *GraphIntegrityError) Error() string {
	return fmt.Sprintf("question %d links to unknown question %d", e.FromID, e.ToID)
}

// DisplayMessage translates an error into the message shown to the operator.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Error()
	}
	var preErr *PreconditionError
	if errors.As(err, &preErr) {
		return "Both workflow ID and incident number are required"
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return fmt.Sprintf("Could not load workflow (%s). Retry to continue.", loadErr.Op)
	}
	return err.Error()
}
