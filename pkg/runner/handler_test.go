package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var choice = domain.QuestionNode{
	ID:       1,
	Text:     "Was the link clicked?",
	Type:     domain.TypeMultipleChoice,
	Required: true,
	Options:  []domain.Option{{ID: 1, Text: "Yes"}, {ID: 2, Text: "No"}},
}

func TestParseReply(t *testing.T) {
	boxes := domain.QuestionNode{Type: domain.TypeCheckbox, Options: []domain.Option{{Text: "Email"}, {Text: "VPN"}, {Text: "SSO"}}}
	users := domain.QuestionNode{Type: domain.TypeCheckbox}

	tests := []struct {
		name string
		node domain.QuestionNode
		line string
		want Reply
		err  error
	}{
		{"choice by number", choice, "2", Reply{Text: "No"}, nil},
		{"choice by text", choice, " yes ", Reply{Text: "Yes"}, nil},
		{"choice out of range", choice, "3", Reply{}, ErrInvalidChoice},
		{"choice unknown", choice, "maybe", Reply{}, ErrInvalidChoice},
		{"choice empty", choice, "", Reply{}, ErrEmptyAnswer},
		{"checkbox mixed", boxes, "1, sso", Reply{SelectedOptions: []string{"Email", "SSO"}}, nil},
		{"checkbox empty", boxes, " , ", Reply{}, ErrEmptyAnswer},
		{"users", users, "alice,bob", Reply{SelectedUsers: []string{"alice", "bob"}}, nil},
		{"instruction", domain.QuestionNode{Type: domain.TypeInstruction}, "", Reply{Text: domain.ConfirmedAnswer}, nil},
		{"subjective", domain.QuestionNode{Type: domain.TypeSubjective}, "disk full", Reply{Text: "disk full"}, nil},
		{"subjective empty", domain.QuestionNode{Type: domain.TypeSubjective}, "  ", Reply{}, ErrEmptyAnswer},
		{"skip command", choice, "SKIP", Reply{Skip: true}, nil},
		{"quit command", choice, "exit", Reply{Quit: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.node, tt.line)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextHandler_Output(t *testing.T) {
	var out bytes.Buffer
	handler := NewTextHandler(strings.NewReader(""), &out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "**" + s + "**", nil
	}))

	err := handler.Output(context.Background(), Prompt{
		Question:  choice,
		Progress:  domain.Progress{Answered: 2, Total: 5},
		LastError: "timeout",
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "[3/5] **Was the link clicked?**")
	assert.Contains(t, text, "  1) Yes\n  2) No\n")
	assert.Contains(t, text, "! timeout")
	assert.NotContains(t, text, "skip")
}

func TestTextHandler_Input(t *testing.T) {
	var out bytes.Buffer
	handler := NewTextHandler(strings.NewReader("  my answer \x07\nlast"), &out)
	ctx := context.Background()

	reply, err := handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "my answer"}, reply)

	reply, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last", reply.Text)

	_, err = handler.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "> > > ", out.String())
}

func TestJSONHandler(t *testing.T) {
	input := strings.Join([]string{
		`{"answer": "Yes", "next_question_id": 4}`,
		`{"skip": true}`,
		`"quoted"`,
		`plain text`,
		`{"users": ["alice", "\u001bbob"]}`,
	}, "\n")
	var out bytes.Buffer
	handler := NewJSONHandler(strings.NewReader(input), &out)
	ctx := context.Background()

	reply, err := handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Yes", reply.Text)
	assert.Equal(t, 4, *reply.NextQuestionID)
	assert.True(t, reply.Structured)

	reply, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.True(t, reply.Skip)

	reply, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "quoted"}, reply)

	reply, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "plain text"}, reply)

	reply, err = handler.Input(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, reply.SelectedUsers)

	_, err = handler.Input(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, handler.Output(ctx, Prompt{WorkflowName: "phishing", Question: choice}))
	require.NoError(t, handler.SystemOutput(ctx, "done"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, MessageQuestion, first["type"])
	assert.Equal(t, "phishing", first["prompt"].(map[string]any)["workflow"])
	assert.JSONEq(t, `{"type":"system","message":"done"}`, lines[1])
}
