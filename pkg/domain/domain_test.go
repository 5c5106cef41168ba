package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionType(t *testing.T) {
	tests := []struct {
		raw  string
		want QuestionType
	}{
		{"MultipleChoice", TypeMultipleChoice},
		{"multiple_choice", TypeMultipleChoice},
		{"Multiple Choice", TypeMultipleChoice},
		{"multiplechoice", TypeMultipleChoice},
		{"SUBJECTIVE", TypeSubjective},
		{"CheckBox", TypeCheckbox},
		{"check-box", TypeCheckbox},
		{"Instruction", TypeInstruction},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseQuestionType(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuestionType("rating")
	assert.ErrorIs(t, err, ErrUnknownQuestionType)
}

func TestSessionSnapshot(t *testing.T) {
	s := NewSession("phishing", "INC-1")
	s.WorkflowID = 7
	s.Completed[3] = CompletedAnswer{Answer: "b", Source: SourceLocal}
	s.Completed[1] = CompletedAnswer{Answer: "a", Source: SourceRemote}
	s.LastFilledQuestionID = IntPtr(3)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	snap := s.Snapshot(9, now)

	assert.Equal(t, "phishing:INC-1", snap.Key())
	assert.Equal(t, []int{1, 3}, snap.CompletedQuestionIDs)
	assert.True(t, snap.IsCompleted(3))
	assert.False(t, snap.IsCompleted(2))
	assert.Equal(t, 9, snap.TerminalQuestionID)
	require.NotNil(t, snap.LastFilledQuestionID)
	assert.Equal(t, 3, *snap.LastFilledQuestionID)

	// Snapshot must not alias the session.
	s.Completed[5] = CompletedAnswer{Answer: "c"}
	assert.Len(t, snap.CompletedAnswers, 2)
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "triage:INC-1", SnapshotKey("triage", "INC-1"))
	assert.NotEqual(t, SnapshotKey("triage:phish", "INC-1"), SnapshotKey("triage", "phish:INC-1"))
	assert.NotEqual(t, SnapshotKey("a%3Ab", "c"), SnapshotKey("a:b", "c"))

	for _, tc := range []struct{ workflow, incident string }{
		{"triage", "INC-1"},
		{"triage:phish", "INC-1"},
		{"triage", "phish:INC-1"},
		{"50%:off", "2024:17"},
	} {
		workflow, incident, ok := ParseSnapshotKey(SnapshotKey(tc.workflow, tc.incident))
		require.True(t, ok)
		assert.Equal(t, tc.workflow, workflow)
		assert.Equal(t, tc.incident, incident)
	}

	_, _, ok := ParseSnapshotKey("no-separator")
	assert.False(t, ok)
}

func TestSnapshotClone_Isolated(t *testing.T) {
	snap := &ProgressSnapshot{
		LastFilledQuestionID: IntPtr(1),
		CompletedQuestionIDs: []int{1},
		CompletedAnswers:     map[int]CompletedAnswer{1: {Answer: "x", NextQuestionID: IntPtr(2)}},
	}
	c := snap.Clone()
	*c.LastFilledQuestionID = 5
	c.CompletedQuestionIDs[0] = 5
	*c.CompletedAnswers[1].NextQuestionID = 9

	assert.Equal(t, 1, *snap.LastFilledQuestionID)
	assert.Equal(t, 1, snap.CompletedQuestionIDs[0])
	assert.Equal(t, 2, *snap.CompletedAnswers[1].NextQuestionID)
}

func TestDiff(t *testing.T) {
	t.Run("Initial", func(t *testing.T) {
		s := NewSession("wf", "INC")
		s.Phase = PhaseAwaitingInput
		s.CurrentQuestionID = IntPtr(1)
		d := Diff(nil, s)
		require.NotNil(t, d)
		assert.Equal(t, "wf:INC", d.Key)
		assert.Equal(t, 1, *d.CurrentQuestionID)
		assert.Equal(t, PhaseAwaitingInput, *d.Phase)
		assert.Nil(t, d.LastError)
	})

	t.Run("No Changes", func(t *testing.T) {
		s := NewSession("wf", "INC")
		assert.Nil(t, Diff(s, s.Clone()))
	})

	t.Run("Answer Committed", func(t *testing.T) {
		old := NewSession("wf", "INC")
		old.Phase = PhaseAwaitingInput
		old.CurrentQuestionID = IntPtr(1)

		next := old.Clone()
		next.Completed[1] = CompletedAnswer{Answer: "ok"}
		next.CurrentQuestionID = IntPtr(2)

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Nil(t, d.Phase)
		assert.Equal(t, 2, *d.CurrentQuestionID)
		assert.Equal(t, map[int]CompletedAnswer{1: {Answer: "ok"}}, d.Completed)
	})

	t.Run("Completion Clears Cursor", func(t *testing.T) {
		old := NewSession("wf", "INC")
		old.CurrentQuestionID = IntPtr(4)
		next := old.Clone()
		next.CurrentQuestionID = nil
		next.Phase = PhaseComplete

		d := Diff(old, next)
		require.NotNil(t, d)
		assert.Equal(t, -1, *d.CurrentQuestionID)
		assert.Equal(t, PhaseComplete, *d.Phase)
	})
}

func TestDiffJSON_OmitsEmpty(t *testing.T) {
	old := NewSession("wf", "INC")
	next := old.Clone()
	next.LastError = "timeout"

	d := Diff(old, next)
	require.NotNil(t, d)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"last_error":"timeout"`)
	assert.False(t, strings.Contains(string(b), `"completed"`))
}

func TestDisplayMessage(t *testing.T) {
	assert.Equal(t, "timeout", DisplayMessage(&SubmissionError{QuestionID: 1, Message: "timeout"}))
	assert.Equal(t, "Both workflow ID and incident number are required",
		DisplayMessage(&PreconditionError{Field: "incident number"}))
	assert.Contains(t, DisplayMessage(&LoadError{Op: "questions", Err: errors.New("boom")}), "questions")
	assert.Equal(t, "", DisplayMessage(nil))
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var calls []string
	a := LifecycleHooks{OnRunComplete: func(_ context.Context, _ *EventBase) { calls = append(calls, "a") }}
	b := LifecycleHooks{OnRunComplete: func(_ context.Context, _ *EventBase) { calls = append(calls, "b") }}

	merged := a.Merge(b)
	merged.OnRunComplete(context.Background(), &EventBase{})
	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Nil(t, a.Merge(LifecycleHooks{}).OnNodeEnter)
}
