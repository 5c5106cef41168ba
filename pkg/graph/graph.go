// Package graph turns the flat question list of a workflow into an addressable graph.
//
// Nodes keep the positional order received from the remote authority. That order is
// the fallback traversal order whenever no explicit branch applies.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/ports"
)

// Graph is an immutable, id-indexed view of a workflow's nodes.
type Graph struct {
	workflowID int
	nodes      []domain.QuestionNode
	index      map[int]int // question id -> position
}

// Load fetches and normalizes the nodes of a workflow.
// Transport and format failures are returned as *domain.LoadError.
func Load(ctx context.Context, authority ports.Authority, workflowID int) (*Graph, error) {
	records, err := authority.FetchQuestions(ctx, workflowID)
	if err != nil {
		return nil, &domain.LoadError{Op: "questions", Err: err}
	}
	g, err := New(workflowID, records)
	if err != nil {
		return nil, &domain.LoadError{Op: "questions", Err: err}
	}
	return g, nil
}

// New builds a graph from raw records. It rejects unknown question types,
// duplicate ids and empty workflows.
func New(workflowID int, records []domain.QuestionRecord) (*Graph, error) {
	if len(records) == 0 {
		return nil, errors.New("workflow has no questions")
	}

	g := &Graph{
		workflowID: workflowID,
		nodes:      make([]domain.QuestionNode, 0, len(records)),
		index:      make(map[int]int, len(records)),
	}

	for pos, rec := range records {
		qt, err := domain.ParseQuestionType(rec.Type)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", rec.ID, err)
		}
		if _, dup := g.index[rec.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", rec.ID)
		}

		required := true
		if rec.Required != nil {
			required = *rec.Required
		}

		node := domain.QuestionNode{
			ID:       rec.ID,
			Text:     rec.Text,
			Type:     qt,
			Required: required,
			Position: pos,
			NextID:   copyID(rec.NextID),
		}
		for _, o := range rec.Options {
			node.Options = append(node.Options, domain.Option{
				ID:     o.ID,
				Text:   o.Text,
				NextID: copyID(o.NextID),
			})
		}

		g.index[rec.ID] = pos
		g.nodes = append(g.nodes, node)
	}

	return g, nil
}

// WorkflowID returns the id of the workflow the graph was built for.
func (g *Graph) WorkflowID() int { return g.workflowID }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns the nodes in positional order. The slice is a copy.
func (g *Graph) Nodes() []domain.QuestionNode {
	return append([]domain.QuestionNode(nil), g.nodes...)
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id int) bool {
	_, ok := g.index[id]
	return ok
}

// IndexOf returns the position of a node.
func (g *Graph) IndexOf(id int) (int, error) {
	pos, ok := g.index[id]
	if !ok {
		return -1, fmt.Errorf("question %d: %w", id, domain.ErrNotFound)
	}
	return pos, nil
}

// NodeAt returns the node at a position.
func (g *Graph) NodeAt(index int) (domain.QuestionNode, error) {
	if index < 0 || index >= len(g.nodes) {
		return domain.QuestionNode{}, fmt.Errorf("position %d: %w", index, domain.ErrNotFound)
	}
	return g.nodes[index], nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id int) (domain.QuestionNode, error) {
	pos, err := g.IndexOf(id)
	if err != nil {
		return domain.QuestionNode{}, err
	}
	return g.nodes[pos], nil
}

// First returns the node at position 0.
func (g *Graph) First() domain.QuestionNode {
	return g.nodes[0]
}

// Terminal returns the positionally last node, used as the completion marker.
func (g *Graph) Terminal() domain.QuestionNode {
	return g.nodes[len(g.nodes)-1]
}

// Successor returns the id of the node after id in positional order, or nil
// when id is the last node (or unknown).
func (g *Graph) Successor(id int) *int {
	pos, ok := g.index[id]
	if !ok || pos+1 >= len(g.nodes) {
		return nil
	}
	return domain.IntPtr(g.nodes[pos+1].ID)
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	return domain.IntPtr(*id)
}
