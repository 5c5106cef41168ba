package ports

import (
	"context"

	"github.com/aretw0/playbook/pkg/domain"
)

// Authority is the remote system of record. Every call blocks until the remote
// responds or ctx expires.
type Authority interface {
	// ResolveWorkflow maps a workflow name to its id.
	// Returns domain.ErrWorkflowNotFound when the name is unknown.
	ResolveWorkflow(ctx context.Context, name string) (int, error)

	// FetchQuestions returns the workflow's nodes in authored positional order.
	FetchQuestions(ctx context.Context, workflowID int) ([]domain.QuestionRecord, error)

	// FetchPriorAnswers returns the answers already recorded for an incident.
	// Returns domain.ErrPriorAnswersNotFound when the incident has none.
	FetchPriorAnswers(ctx context.Context, workflowID int, incident string) ([]domain.PriorAnswer, error)

	// SubmitAnswer commits one answer. A nil error means the remote acknowledged it.
	SubmitAnswer(ctx context.Context, record domain.AnswerRecord) (domain.Ack, error)
}
