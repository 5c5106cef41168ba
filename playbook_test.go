package playbook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containment(t *testing.T) *memory.Authority {
	t.Helper()
	wf := dsl.New(3, "containment")
	wf.MultipleChoice(1, "Is the host still online?").
		Option("Yes", 2).
		Option("No", 3)
	wf.Instruction(2, "Pull the network cable.")
	wf.Subjective(3, "Where is the host now?").Optional()
	wf.Checkbox(4, "Who signed off?")
	wf.Answered("INC-R", 1, "No")

	auth, err := wf.Authority()
	require.NoError(t, err)
	return auth
}

func TestEngine_FullRun(t *testing.T) {
	ctx := context.Background()
	auth := containment(t)
	store := memory.NewStore()

	var mu sync.Mutex
	var entered []int
	completed := false
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	engine := playbook.New(auth, store,
		playbook.WithClock(func() time.Time { return fixed }),
		playbook.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
				mu.Lock()
				defer mu.Unlock()
				entered = append(entered, e.QuestionID)
			},
			OnRunComplete: func(context.Context, *domain.EventBase) { completed = true },
		}),
	)

	s, node, err := engine.Current(ctx, "containment", "INC-1")
	require.NoError(t, err)
	assert.Equal(t, 1, node.ID)
	assert.Equal(t, domain.PhaseAwaitingInput, s.Phase)

	_, err = engine.Answer(ctx, "containment", "INC-1", domain.AnswerInput{Text: "Yes"})
	require.NoError(t, err)
	_, err = engine.Answer(ctx, "containment", "INC-1", domain.AnswerInput{Text: "Confirmed"})
	require.NoError(t, err)

	s, err = engine.Skip(ctx, "containment", "INC-1")
	require.NoError(t, err)
	assert.Equal(t, 4, *s.CurrentQuestionID)

	q, err := engine.Question(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeCheckbox, q.Type)

	s, err = engine.Answer(ctx, "containment", "INC-1", domain.AnswerInput{SelectedUsers: []string{"alice", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, s.Phase)
	assert.Nil(t, s.CurrentQuestionID)
	assert.True(t, completed)

	p, err := engine.Progress(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, domain.Progress{Answered: 4, Skipped: 1, Total: 4}, p)

	mu.Lock()
	assert.Equal(t, []int{1, 2, 3, 4}, entered)
	mu.Unlock()

	subs := auth.Submissions()
	require.Len(t, subs, 4)
	assert.Equal(t, "SKIPPED", subs[2].AnswerText)
	assert.Equal(t, "alice|bob", subs[3].AnswerText)

	snap, err := store.Load(ctx, "containment", "INC-1")
	require.NoError(t, err)
	assert.Equal(t, 4, *snap.LastFilledQuestionID)
	assert.Equal(t, fixed, snap.Timestamp)

	done, g, err := engine.Status(ctx, "containment", "INC-1")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 4, g.Terminal().ID)

	_, err = engine.Answer(ctx, "containment", "INC-1", domain.AnswerInput{Text: "late"})
	assert.ErrorIs(t, err, domain.ErrRunComplete)
}

func TestEngine_ResumeFromRemoteHistory(t *testing.T) {
	ctx := context.Background()
	engine := playbook.New(containment(t), memory.NewStore())

	// "No" on question 1 branches to 3; question 2 is never asked.
	s, err := engine.Start(ctx, "containment", "INC-R")
	require.NoError(t, err)
	assert.Equal(t, 3, *s.CurrentQuestionID)
	assert.Equal(t, domain.SourceRemote, s.Completed[1].Source)

	done, _, err := engine.Status(ctx, "containment", "INC-R")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestEngine_ResumeFromSnapshot(t *testing.T) {
	ctx := context.Background()
	auth := containment(t)
	store := memory.NewStore()

	first := playbook.New(auth, store)
	_, err := first.Answer(ctx, "containment", "INC-2", domain.AnswerInput{Text: "Yes"})
	require.NoError(t, err)

	// A second engine shares nothing but the store and the authority.
	second := playbook.New(auth, store)
	s, err := second.Start(ctx, "containment", "INC-2")
	require.NoError(t, err)
	assert.Equal(t, 2, *s.CurrentQuestionID)
}

func TestEngine_Observer(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var diffs []*domain.SessionDiff
	engine := playbook.New(containment(t), memory.NewStore(),
		playbook.WithObserver(func(_ context.Context, old, new *domain.Session) {
			mu.Lock()
			defer mu.Unlock()
			diffs = append(diffs, domain.Diff(old, new))
		}),
	)

	_, err := engine.Answer(ctx, "containment", "INC-3", domain.AnswerInput{Text: "No"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, diffs)
	last := diffs[len(diffs)-1]
	require.NotNil(t, last.CurrentQuestionID)
	assert.Equal(t, 3, *last.CurrentQuestionID)
	assert.Contains(t, last.Completed, 1)
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()
	auth := containment(t)
	engine := playbook.New(auth, memory.NewStore())

	t.Run("missing identifiers", func(t *testing.T) {
		_, err := engine.Start(ctx, "containment", "")
		var pre *domain.PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Equal(t, "Both workflow ID and incident number are required", domain.DisplayMessage(err))
		assert.Zero(t, auth.Calls().Resolve)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := engine.Start(ctx, "nope", "INC-1")
		var loadErr *domain.LoadError
		require.ErrorAs(t, err, &loadErr)
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)

		_, err = engine.Inspect(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	})

	t.Run("required skip", func(t *testing.T) {
		_, err := engine.Skip(ctx, "containment", "INC-4")
		assert.ErrorIs(t, err, domain.ErrSkipRequired)
	})

	t.Run("submission failure keeps the cursor", func(t *testing.T) {
		auth.FailSubmissions(errors.New("authority unavailable"))
		defer auth.FailSubmissions(nil)

		_, err := engine.Answer(ctx, "containment", "INC-5", domain.AnswerInput{Text: "Yes"})
		var subErr *domain.SubmissionError
		require.ErrorAs(t, err, &subErr)

		s, node, err := engine.Current(ctx, "containment", "INC-5")
		require.NoError(t, err)
		assert.Equal(t, 1, node.ID)
		assert.NotEmpty(t, s.LastError)

		_, err = engine.Store().Load(ctx, "containment", "INC-5")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})
}

func TestEngine_Inspect(t *testing.T) {
	engine := playbook.New(containment(t), memory.NewStore())

	g, err := engine.Inspect(context.Background(), "containment")
	require.NoError(t, err)
	assert.Equal(t, 3, g.WorkflowID())
	assert.Equal(t, 4, g.Len())
	assert.NotNil(t, engine.Authority())
	assert.NotNil(t, engine.Sessions())
}
