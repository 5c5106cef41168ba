package domain

import (
	"sort"
	"time"
)

// Phase is the traversal state machine position.
type Phase string

const (
	PhaseInitializing  Phase = "initializing"
	PhaseAwaitingInput Phase = "awaiting_input"
	PhaseSubmitting    Phase = "submitting"
	PhaseAdvancing     Phase = "advancing"
	PhaseComplete      Phase = "complete" // only terminal phase
	PhaseError         Phase = "error"
)

// Session is the live traversal state for one (workflow, incident) pair.
// The runtime never mutates a Session in place: every transition returns a new value.
type Session struct {
	WorkflowName   string `json:"workflow_name"`
	WorkflowID     int    `json:"workflow_id"`
	IncidentNumber string `json:"incident_number"`

	Phase Phase `json:"phase"`

	// CurrentQuestionID is the node awaiting input. Nil when complete.
	CurrentQuestionID *int `json:"current_question_id,omitempty"`

	// Completed maps every completed node to its answer metadata.
	Completed map[int]CompletedAnswer `json:"completed"`

	LastFilledQuestionID *int `json:"last_filled_question_id,omitempty"`

	// History lists node ids in the order they were committed during this session.
	History []int `json:"history,omitempty"`

	// LastError is the display message of the last recoverable failure.
	LastError string `json:"last_error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns a session in the Initializing phase.
func NewSession(workflowName, incident string) *Session {
	return &Session{
		WorkflowName:   workflowName,
		IncidentNumber: incident,
		Phase:          PhaseInitializing,
		Completed:      make(map[int]CompletedAnswer),
	}
}

// Key returns the snapshot key of the session.
func (s *Session) Key() string {
	return SnapshotKey(s.WorkflowName, s.IncidentNumber)
}

// IsCompleted reports whether the node id has been completed.
func (s *Session) IsCompleted(id int) bool {
	_, ok := s.Completed[id]
	return ok
}

// CompletedIDs returns the completed node ids in ascending order.
func (s *Session) CompletedIDs() []int {
	ids := make([]int, 0, len(s.Completed))
	for id := range s.Completed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Clone returns a deep copy safe to mutate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	if s.CurrentQuestionID != nil {
		next.CurrentQuestionID = IntPtr(*s.CurrentQuestionID)
	}
	if s.LastFilledQuestionID != nil {
		next.LastFilledQuestionID = IntPtr(*s.LastFilledQuestionID)
	}
	next.Completed = make(map[int]CompletedAnswer, len(s.Completed))
	for k, v := range s.Completed {
		next.Completed[k] = v
	}
	next.History = append([]int(nil), s.History...)
	return &next
}

// Snapshot converts the session into its durable form.
func (s *Session) Snapshot(terminalID int, now time.Time) *ProgressSnapshot {
	snap := &ProgressSnapshot{
		WorkflowID:           s.WorkflowID,
		WorkflowName:         s.WorkflowName,
		IncidentNumber:       s.IncidentNumber,
		CompletedQuestionIDs: s.CompletedIDs(),
		CompletedAnswers:     make(map[int]CompletedAnswer, len(s.Completed)),
		TerminalQuestionID:   terminalID,
		Timestamp:            now,
	}
	if s.LastFilledQuestionID != nil {
		snap.LastFilledQuestionID = IntPtr(*s.LastFilledQuestionID)
	}
	for k, v := range s.Completed {
		snap.CompletedAnswers[k] = v
	}
	return snap
}

// Progress summarizes how far a session has gone.
type Progress struct {
	Answered int `json:"answered"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// ProgressOf counts completed and skipped nodes against the graph size.
func (s *Session) ProgressOf(total int) Progress {
	p := Progress{Total: total}
	for _, a := range s.Completed {
		p.Answered++
		if a.IsSkipped {
			p.Skipped++
		}
	}
	return p
}
