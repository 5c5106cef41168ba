package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/dsl"
	"github.com/aretw0/playbook/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func phishing() *dsl.Builder {
	wf := dsl.New(7, "phishing")
	wf.MultipleChoice(1, "Did anyone click the link?").
		Option("Yes", 2).
		Option("No", 3)
	wf.Instruction(2, "Reset the credentials.").Go(4)
	wf.Subjective(3, "Notes").Optional()
	wf.Checkbox(4, "Who was notified?").Option("SOC").Option("Legal")
	return wf
}

func TestBuilder_Build(t *testing.T) {
	wf, err := phishing().Answered("INC-1", 1, "No").Build()
	require.NoError(t, err)

	assert.Equal(t, 7, wf.ID)
	assert.Equal(t, "phishing", wf.Name)
	require.Len(t, wf.Questions, 4)

	q1 := wf.Questions[0]
	assert.Equal(t, "MultipleChoice", q1.Type)
	require.Len(t, q1.Options, 2)
	assert.Equal(t, 2, q1.Options[1].ID)
	assert.Equal(t, 3, *q1.Options[1].NextID)

	assert.Equal(t, 4, *wf.Questions[1].NextID)
	require.NotNil(t, wf.Questions[2].Required)
	assert.False(t, *wf.Questions[2].Required)
	assert.Nil(t, wf.Questions[3].Options[0].NextID)

	assert.Equal(t, []domain.PriorAnswer{{QuestionID: 1, AnswerText: "No"}}, wf.Responses["INC-1"])
}

func TestBuilder_AddIsIdempotent(t *testing.T) {
	wf := dsl.New(1, "dup")
	first := wf.Subjective(1, "First")
	assert.Same(t, first, wf.Subjective(1, "Second"))

	built, err := wf.Build()
	require.NoError(t, err)
	require.Len(t, built.Questions, 1)
	assert.Equal(t, "First", built.Questions[0].Text)
}

func TestBuilder_Invalid(t *testing.T) {
	_, err := dsl.New(1, "empty").Build()
	assert.ErrorContains(t, err, `workflow "empty"`)

	wf := dsl.New(2, "bad-type")
	wf.Add(1, "essay", "Describe it")
	_, err = wf.Authority()
	assert.ErrorIs(t, err, domain.ErrUnknownQuestionType)
}

func TestBuilder_Authority(t *testing.T) {
	auth, err := phishing().Authority()
	require.NoError(t, err)

	ctx := context.Background()
	id, err := auth.ResolveWorkflow(ctx, "phishing")
	require.NoError(t, err)

	g, err := graph.Load(ctx, auth, id)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Terminal().ID)

	res := g.Resolve(1, "Yes", nil)
	require.NotNil(t, res.Next)
	assert.Equal(t, 2, *res.Next)

	// The link recorded by Go on an Instruction is not followed.
	res = g.Resolve(2, "", nil)
	require.NotNil(t, res.Next)
	assert.Equal(t, 3, *res.Next)
	assert.Equal(t, graph.RuleSequential, res.Rule)
}
