package runner

import (
	"context"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/domain"
)

// View combines a run and the question it waits on, for rich clients (HTTP, MCP).
type View struct {
	Session  *domain.Session      `json:"session"`
	Question *domain.QuestionNode `json:"question,omitempty"`
	Progress domain.Progress      `json:"progress"`
	Complete bool                 `json:"complete"`
	Message  string               `json:"message,omitempty"`
}

// Describe builds the view of s. The session is returned even when the graph
// cannot be loaded, so clients can still show the last error.
func Describe(ctx context.Context, engine *playbook.Engine, s *domain.Session) (*View, error) {
	v := &View{
		Session:  s,
		Complete: s.Phase == domain.PhaseComplete,
		Message:  s.LastError,
	}
	if s.Phase == domain.PhaseInitializing || s.Phase == domain.PhaseError {
		return v, nil
	}

	progress, err := engine.Progress(ctx, s)
	if err != nil {
		return v, err
	}
	v.Progress = progress

	if !v.Complete {
		node, err := engine.Question(ctx, s)
		if err != nil {
			return v, err
		}
		v.Question = &node
	}
	return v, nil
}
