package runner

import (
	"context"

	"github.com/aretw0/playbook/pkg/domain"
)

// Prompt is everything a handler needs to present the current question.
type Prompt struct {
	WorkflowName   string              `json:"workflow"`
	IncidentNumber string              `json:"incident_number"`
	Question       domain.QuestionNode `json:"question"`
	Progress       domain.Progress     `json:"progress"`
	LastError      string              `json:"last_error,omitempty"`
}

// Reply is the operator's response to a prompt.
type Reply struct {
	// Text is free text. For handlers reading lines it is the raw line, which the
	// Runner interprets against the question (option numbers, commands).
	Text            string   `json:"answer,omitempty"`
	SelectedOptions []string `json:"options,omitempty"`
	SelectedUsers   []string `json:"users,omitempty"`
	NextQuestionID  *int     `json:"next_question_id,omitempty"`
	Skip            bool     `json:"skip,omitempty"`
	Quit            bool     `json:"quit,omitempty"`
	// Structured replies are taken as-is; unstructured ones are parsed.
	Structured bool `json:"-"`
}

// IOHandler defines the strategy for interacting with the operator.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the current question.
	Output(ctx context.Context, prompt Prompt) error

	// Input reads the operator's reply. io.EOF ends the run without error.
	Input(ctx context.Context) (Reply, error)

	// SystemOutput presents a meta-message (errors, completion, status).
	SystemOutput(ctx context.Context, msg string) error
}
