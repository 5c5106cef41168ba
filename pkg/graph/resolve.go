package graph

import (
	"github.com/aretw0/playbook/pkg/domain"
)

// Rule identifies which branch rule produced a successor.
type Rule string

const (
	RuleExplicit   Rule = "explicit"   // supplied by the caller
	RuleOption     Rule = "option"     // link on the chosen MultipleChoice option
	RuleSequential Rule = "sequential" // positional successor
)

// Resolution is the outcome of resolving the successor of an answered node.
type Resolution struct {
	// Next is the successor id, nil when the walk ends.
	Next *int
	Rule Rule
	// Dangling holds the unresolvable target that forced the sequential fallback.
	Dangling *int
}

// Resolve computes the successor of node id given its answer.
//
// Priority: explicit id, then the chosen option's link (MultipleChoice only), then
// the positional successor. A question-level NextID never branches. A target that
// is not in the graph falls back to the positional successor and is reported in
// Resolution.Dangling.
func (g *Graph) Resolve(id int, answer string, explicit *int) Resolution {
	node, err := g.Node(id)
	if err != nil {
		return Resolution{Rule: RuleSequential}
	}

	target, rule := explicit, RuleExplicit
	if target == nil {
		target, rule = optionLink(node, answer)
	}

	if target != nil {
		if g.Has(*target) {
			return Resolution{Next: domain.IntPtr(*target), Rule: rule}
		}
		return Resolution{
			Next:     g.Successor(id),
			Rule:     RuleSequential,
			Dangling: domain.IntPtr(*target),
		}
	}

	return Resolution{Next: g.Successor(id), Rule: RuleSequential}
}

func optionLink(node domain.QuestionNode, answer string) (*int, Rule) {
	if node.Type != domain.TypeMultipleChoice {
		return nil, RuleSequential
	}
	if opt, ok := node.OptionByText(answer); ok && opt.NextID != nil {
		return opt.NextID, RuleOption
	}
	return nil, RuleSequential
}

// Edge is one possible transition out of a node, for inspection tools.
type Edge struct {
	From  int
	To    *int
	Rule  Rule
	Label string
	// Dangling is true when To references a node outside the graph.
	Dangling bool
}

// Edges lists every transition the walk can take out of node id.
func (g *Graph) Edges(id int) []Edge {
	node, err := g.Node(id)
	if err != nil {
		return nil
	}

	var edges []Edge
	hasFallthrough := true

	if node.Type == domain.TypeMultipleChoice {
		linked := 0
		for _, opt := range node.Options {
			if opt.NextID == nil {
				continue
			}
			linked++
			edges = append(edges, Edge{
				From:     id,
				To:       domain.IntPtr(*opt.NextID),
				Rule:     RuleOption,
				Label:    opt.Text,
				Dangling: !g.Has(*opt.NextID),
			})
		}
		hasFallthrough = linked < len(node.Options) || len(node.Options) == 0
	}

	for _, e := range edges {
		if e.Dangling {
			hasFallthrough = true
		}
	}

	if hasFallthrough {
		edges = append(edges, Edge{From: id, To: g.Successor(id), Rule: RuleSequential})
	}
	return edges
}
