package domain

import "reflect"

// SessionDiff represents the changes between two sessions.
// It is serialized to JSON and streamed to clients watching a run.
type SessionDiff struct {
	// Key is always present to identify the target run.
	Key string `json:"key"`

	CurrentQuestionID *int   `json:"current_question_id,omitempty"`
	Phase             *Phase `json:"phase,omitempty"`

	// Completed contains only newly completed or changed answers.
	Completed map[int]CompletedAnswer `json:"completed,omitempty"`

	LastError *string `json:"last_error,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{Key: newSession.Key()}

	if oldSession == nil || !equalIntPtr(oldSession.CurrentQuestionID, newSession.CurrentQuestionID) {
		diff.CurrentQuestionID = newSession.CurrentQuestionID
		if diff.CurrentQuestionID == nil && oldSession != nil {
			// moved to "no current node"; encode as -1 so omitempty keeps it
			diff.CurrentQuestionID = IntPtr(-1)
		}
	}
	if oldSession == nil || oldSession.Phase != newSession.Phase {
		phase := newSession.Phase
		diff.Phase = &phase
	}
	if oldSession == nil || oldSession.LastError != newSession.LastError {
		if oldSession != nil || newSession.LastError != "" {
			msg := newSession.LastError
			diff.LastError = &msg
		}
	}

	diff.Completed = diffCompleted(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffCompleted(old, new *Session) map[int]CompletedAnswer {
	delta := make(map[int]CompletedAnswer)
	for id, ans := range new.Completed {
		if old == nil {
			delta[id] = ans
			continue
		}
		prev, ok := old.Completed[id]
		if !ok || !reflect.DeepEqual(prev, ans) {
			delta[id] = ans
		}
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentQuestionID == nil &&
		d.Phase == nil &&
		d.LastError == nil &&
		len(d.Completed) == 0
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
