package domain

import (
	"sort"
	"strings"
	"time"
)

// ProgressSnapshot is the durable, resumable state for one (workflow, incident) pair.
// It is always written whole; stores never merge two snapshots.
type ProgressSnapshot struct {
	WorkflowID     int    `json:"workflow_id"`
	WorkflowName   string `json:"workflow_name"`
	IncidentNumber string `json:"incident_number"`

	// LastFilledQuestionID is the node answered most recently. Nil before the first answer.
	LastFilledQuestionID *int `json:"last_filled_question_id,omitempty"`

	// CompletedQuestionIDs is kept sorted so identical progress serializes identically.
	CompletedQuestionIDs []int                   `json:"completed_question_ids"`
	CompletedAnswers     map[int]CompletedAnswer `json:"completed_answers"`

	// TerminalQuestionID records the terminal node of the graph the snapshot was
	// written against. A mismatch with the current graph invalidates the snapshot.
	TerminalQuestionID int `json:"terminal_question_id"`

	Timestamp time.Time `json:"timestamp"`

	// Sealed carries the encrypted snapshot when written through an encrypting store.
	// Every other progress field is blank in that case.
	Sealed string `json:"sealed,omitempty"`
}

// Key returns the store key of the snapshot.
func (p *ProgressSnapshot) Key() string {
	return SnapshotKey(p.WorkflowName, p.IncidentNumber)
}

// IsCompleted reports whether id is in the completed set.
func (p *ProgressSnapshot) IsCompleted(id int) bool {
	i := sort.SearchInts(p.CompletedQuestionIDs, id)
	return i < len(p.CompletedQuestionIDs) && p.CompletedQuestionIDs[i] == id
}

// Clone returns a deep copy. Stores use it to isolate callers from stored values.
func (p *ProgressSnapshot) Clone() *ProgressSnapshot {
	if p == nil {
		return nil
	}
	out := *p
	if p.LastFilledQuestionID != nil {
		out.LastFilledQuestionID = IntPtr(*p.LastFilledQuestionID)
	}
	out.CompletedQuestionIDs = append([]int(nil), p.CompletedQuestionIDs...)
	out.CompletedAnswers = make(map[int]CompletedAnswer, len(p.CompletedAnswers))
	for k, v := range p.CompletedAnswers {
		if v.NextQuestionID != nil {
			v.NextQuestionID = IntPtr(*v.NextQuestionID)
		}
		v.SelectedOptions = append([]string(nil), v.SelectedOptions...)
		v.SelectedUsers = append([]string(nil), v.SelectedUsers...)
		out.CompletedAnswers[k] = v
	}
	return &out
}

var (
	keyEscaper   = strings.NewReplacer("%", "%25", ":", "%3A")
	keyUnescaper = strings.NewReplacer("%25", "%", "%3A", ":", "%3a", ":")
)

// SnapshotKey composes the store key for a workflow name and incident number.
// Both parts are opaque caller-supplied strings. Colons and percent signs in the
// workflow name are escaped, so the first colon always ends the workflow part and
// distinct pairs never share a key.
func SnapshotKey(workflow, incident string) string {
	return keyEscaper.Replace(workflow) + ":" + incident
}

// ParseSnapshotKey splits a key built by SnapshotKey. It reports false when the key
// has no separator or either part is empty.
func ParseSnapshotKey(key string) (workflow, incident string, ok bool) {
	workflow, incident, ok = strings.Cut(key, ":")
	if !ok || workflow == "" || incident == "" {
		return "", "", false
	}
	return keyUnescaper.Replace(workflow), incident, true
}
