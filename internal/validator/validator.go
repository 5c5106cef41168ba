// Package validator lints question graphs before operators walk them.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
)

// Severity ranks a finding.
type Severity string

const (
	// SeverityError marks graphs whose walk can misbehave.
	SeverityError Severity = "error"
	// SeverityWarning marks authoring mistakes the walk tolerates.
	SeverityWarning Severity = "warning"
)

// Finding is one problem found in a graph.
type Finding struct {
	Severity   Severity
	QuestionID int
	Message    string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: question %d: %s", f.Severity, f.QuestionID, f.Message)
}

// ValidateGraph checks for broken links, ignored question-level links and unreachable
// questions starting from the first question.
// Findings are ordered by question position.
func ValidateGraph(g *graph.Graph) []Finding {
	var findings []Finding

	visited := make(map[int]bool, g.Len())
	queue := []int{g.First().ID}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		for _, e := range g.Edges(currentID) {
			if e.To == nil || e.Dangling {
				continue
			}
			if !visited[*e.To] {
				queue = append(queue, *e.To)
			}
		}
	}

	for _, node := range g.Nodes() {
		for _, e := range g.Edges(node.ID) {
			if e.Dangling {
				findings = append(findings, Finding{
					Severity:   SeverityWarning,
					QuestionID: node.ID,
					Message:    fmt.Sprintf("%s edge to missing question %d falls back to the next question", e.Rule, *e.To),
				})
				continue
			}
			if e.To != nil && e.Rule != graph.RuleSequential && isBackward(g, node.ID, *e.To) {
				findings = append(findings, Finding{
					Severity:   SeverityError,
					QuestionID: node.ID,
					Message:    fmt.Sprintf("%s edge points back to question %d", e.Rule, *e.To),
				})
			}
		}

		if node.Type != domain.TypeMultipleChoice && node.NextID != nil && !isSuccessor(g, node.ID, *node.NextID) {
			findings = append(findings, Finding{
				Severity:   SeverityWarning,
				QuestionID: node.ID,
				Message:    fmt.Sprintf("question-level link to %d is ignored; the walk continues with the next question", *node.NextID),
			})
		}

		if node.Type == domain.TypeMultipleChoice && len(node.Options) == 0 {
			findings = append(findings, Finding{
				Severity:   SeverityError,
				QuestionID: node.ID,
				Message:    "multiple choice question has no options",
			})
		}

		if !visited[node.ID] {
			sev := SeverityWarning
			msg := "unreachable from the first question"
			if node.ID == g.Terminal().ID {
				sev = SeverityError
				msg = "terminal question is unreachable; runs can never complete"
			}
			findings = append(findings, Finding{Severity: sev, QuestionID: node.ID, Message: msg})
		}
	}

	return findings
}

// Err folds error findings into one error, or returns nil.
func Err(findings []Finding) error {
	var errs []string
	for _, f := range findings {
		if f.Severity == SeverityError {
			errs = append(errs, f.String())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	return nil
}

func isSuccessor(g *graph.Graph, from, to int) bool {
	next := g.Successor(from)
	return next != nil && *next == to
}

func isBackward(g *graph.Graph, from, to int) bool {
	fromPos, err := g.IndexOf(from)
	if err != nil {
		return false
	}
	toPos, err := g.IndexOf(to)
	if err != nil {
		return false
	}
	return toPos <= fromPos
}
