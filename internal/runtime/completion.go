package runtime

import (
	"context"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
)

// SnapshotComplete reports whether a snapshot reached the terminal node of g.
// The terminal node is the positionally last node, so a branch that never visits
// it can not complete by this rule.
func SnapshotComplete(snap *domain.ProgressSnapshot, g *graph.Graph) bool {
	if snap == nil || snap.LastFilledQuestionID == nil {
		return false
	}
	return *snap.LastFilledQuestionID == g.Terminal().ID
}

// IsComplete decides whether the run of incident on workflow is already finished.
// The local snapshot is consulted first; the remote authority is asked only when
// the snapshot has not reached the terminal node.
func (e *Engine) IsComplete(ctx context.Context, workflowName, incident string, g *graph.Graph) (bool, error) {
	if err := checkIdentifiers(workflowName, incident); err != nil {
		return false, err
	}

	log := e.logger.With("workflow", workflowName, "incident", incident)
	if snap := e.loadSnapshot(ctx, log, g, workflowName, incident); SnapshotComplete(snap, g) {
		return true, nil
	}

	prior, err := e.fetchPriorAnswers(ctx, g.WorkflowID(), incident)
	if err != nil {
		return false, err
	}
	return hasPrior(prior, g.Terminal().ID), nil
}

// Status loads the graph of a workflow by name and checks whether the run is complete.
func (e *Engine) Status(ctx context.Context, workflowName, incident string) (bool, *graph.Graph, error) {
	if err := checkIdentifiers(workflowName, incident); err != nil {
		return false, nil, err
	}
	id, err := e.resolveWorkflow(ctx, workflowName)
	if err != nil {
		return false, nil, err
	}
	g, err := e.loadGraph(ctx, id)
	if err != nil {
		return false, nil, err
	}
	done, err := e.IsComplete(ctx, workflowName, incident, g)
	return done, g, err
}
