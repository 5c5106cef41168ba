package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunProgressStoreContract runs a suite of tests to verify that a ProgressStore
// implementation adheres to the defined interface contract.
func RunProgressStoreContract(t *testing.T, store ProgressStore) {
	t.Helper()
	ctx := context.Background()
	workflow := "contract-wf-" + time.Now().Format("20060102150405")

	newSnapshot := func(incident string, completed ...int) *domain.ProgressSnapshot {
		snap := &domain.ProgressSnapshot{
			WorkflowID:           42,
			WorkflowName:         workflow,
			IncidentNumber:       incident,
			CompletedQuestionIDs: completed,
			CompletedAnswers:     make(map[int]domain.CompletedAnswer),
			TerminalQuestionID:   9,
			Timestamp:            time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}
		for _, id := range completed {
			snap.CompletedAnswers[id] = domain.CompletedAnswer{
				Answer:         "answer",
				Source:         domain.SourceLocal,
				NextQuestionID: domain.IntPtr(id + 1),
				IncidentNumber: incident,
				WorkflowID:     42,
			}
			snap.LastFilledQuestionID = domain.IntPtr(id)
		}
		return snap
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot("INC-1", 1, 2)
		require.NoError(t, store.Save(ctx, snap), "Save should not return error")

		loaded, err := store.Load(ctx, workflow, "INC-1")
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, 42, loaded.WorkflowID)
		assert.Equal(t, []int{1, 2}, loaded.CompletedQuestionIDs)
		require.NotNil(t, loaded.LastFilledQuestionID)
		assert.Equal(t, 2, *loaded.LastFilledQuestionID)
		assert.Equal(t, 9, loaded.TerminalQuestionID)
		require.Contains(t, loaded.CompletedAnswers, 2)
		assert.Equal(t, "answer", loaded.CompletedAnswers[2].Answer)
		require.NotNil(t, loaded.CompletedAnswers[2].NextQuestionID)
		assert.Equal(t, 3, *loaded.CompletedAnswers[2].NextQuestionID)
		assert.True(t, snap.Timestamp.Equal(loaded.Timestamp))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnapshot("INC-2", 1, 2, 3)))
		require.NoError(t, store.Save(ctx, newSnapshot("INC-2", 1)))

		loaded, err := store.Load(ctx, workflow, "INC-2")
		require.NoError(t, err)
		assert.Equal(t, []int{1}, loaded.CompletedQuestionIDs, "Save must replace, not merge")
		assert.Len(t, loaded.CompletedAnswers, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, workflow, "missing")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnapshot("INC-3", 1)))
		require.NoError(t, store.Delete(ctx, workflow, "INC-3"), "Delete should not return error")

		_, err := store.Load(ctx, workflow, "INC-3")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, workflow, "never-saved"))
	})

	t.Run("Distinct Keys", func(t *testing.T) {
		snap := newSnapshot("INC-6", 1)
		snap.WorkflowName = workflow + ":phish"
		require.NoError(t, store.Save(ctx, snap))
		defer func() { _ = store.Delete(ctx, snap.WorkflowName, "INC-6") }()

		_, err := store.Load(ctx, workflow, "phish:INC-6")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "a colon in the workflow name must not alias another run")

		loaded, err := store.Load(ctx, workflow+":phish", "INC-6")
		require.NoError(t, err)
		assert.Equal(t, "INC-6", loaded.IncidentNumber)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnapshot("INC-4")))
		require.NoError(t, store.Save(ctx, newSnapshot("INC-5")))
		defer func() {
			_ = store.Delete(ctx, workflow, "INC-4")
			_ = store.Delete(ctx, workflow, "INC-5")
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, domain.SnapshotKey(workflow, "INC-4"))
		assert.Contains(t, keys, domain.SnapshotKey(workflow, "INC-5"))
	})
}
