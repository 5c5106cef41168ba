package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunProgressStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap := &domain.ProgressSnapshot{
		WorkflowName:         "wf",
		IncidentNumber:       "INC",
		CompletedQuestionIDs: []int{1},
		CompletedAnswers:     map[int]domain.CompletedAnswer{1: {Answer: "a"}},
	}
	require.NoError(t, store.Save(ctx, snap))

	snap.CompletedAnswers[2] = domain.CompletedAnswer{Answer: "b"}

	loaded, err := store.Load(ctx, "wf", "INC")
	require.NoError(t, err)
	assert.Len(t, loaded.CompletedAnswers, 1, "store must not alias the caller's snapshot")
	assert.Equal(t, 1, store.Len())
}

const fixture = `
workflows:
  - id: 7
    name: phishing
    questions:
      - question_id: 1
        question_text: Was a link clicked?
        question_type: multiple_choice
        options:
          - option_id: 1
            option_text: "Yes"
            next_question_id: 3
          - option_id: 2
            option_text: "No"
      - question_id: 2
        question_text: Close the ticket
        question_type: Instruction
      - question_id: 3
        question_text: Reset credentials
        question_type: Instruction
        is_required: false
    responses:
      INC-9:
        - question_id: 1
          answer_text: "No"
`

func TestAuthority_Fixture(t *testing.T) {
	a, err := memory.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	ctx := context.Background()

	id, err := a.ResolveWorkflow(ctx, "phishing")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = a.ResolveWorkflow(ctx, "ransomware")
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)

	qs, err := a.FetchQuestions(ctx, 7)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	require.NotNil(t, qs[0].Options[0].NextID)
	assert.Equal(t, 3, *qs[0].Options[0].NextID)
	require.NotNil(t, qs[2].Required)
	assert.False(t, *qs[2].Required)

	prior, err := a.FetchPriorAnswers(ctx, 7, "INC-9")
	require.NoError(t, err)
	assert.Equal(t, []domain.PriorAnswer{{QuestionID: 1, AnswerText: "No"}}, prior)

	_, err = a.FetchPriorAnswers(ctx, 7, "INC-NEW")
	assert.ErrorIs(t, err, domain.ErrPriorAnswersNotFound)

	assert.Equal(t, memory.Calls{Resolve: 2, Questions: 1, Prior: 2}, a.Calls())
}

func TestAuthority_SubmitAnswer(t *testing.T) {
	a, err := memory.ParseFixture([]byte(fixture))
	require.NoError(t, err)
	ctx := context.Background()

	rec := domain.AnswerRecord{QuestionID: 1, AnswerText: "Yes", WorkflowID: 7, IncidentNumber: "INC-9"}
	_, err = a.SubmitAnswer(ctx, rec)
	require.NoError(t, err)

	prior, err := a.FetchPriorAnswers(ctx, 7, "INC-9")
	require.NoError(t, err)
	assert.Equal(t, []domain.PriorAnswer{{QuestionID: 1, AnswerText: "Yes"}}, prior, "resubmission replaces history")

	a.FailSubmissions(errors.New("backend down"))
	_, err = a.SubmitAnswer(ctx, rec)
	assert.EqualError(t, err, "backend down")
	assert.Len(t, a.Submissions(), 1)

	a.FailSubmissions(nil)
	_, err = a.SubmitAnswer(ctx, domain.AnswerRecord{WorkflowID: 99})
	var subErr *domain.SubmissionError
	assert.ErrorAs(t, err, &subErr)
}

func TestAuthority_HoldSubmissions(t *testing.T) {
	a, err := memory.ParseFixture([]byte(fixture))
	require.NoError(t, err)

	release := a.HoldSubmissions()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = a.SubmitAnswer(ctx, domain.AnswerRecord{QuestionID: 2, WorkflowID: 7, IncidentNumber: "X"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()
	_, err = a.SubmitAnswer(context.Background(), domain.AnswerRecord{QuestionID: 2, WorkflowID: 7, IncidentNumber: "X"})
	assert.NoError(t, err)
}

func TestParseFixture_Invalid(t *testing.T) {
	_, err := memory.ParseFixture([]byte("workflows: [{id: 1}]"))
	assert.Error(t, err)

	_, err = memory.ParseFixture([]byte("workflows: {"))
	assert.Error(t, err)
}
