package runtime

import (
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
)

// reconcile merges the local snapshot and the remote answer history into s.
// Remote answers win over local ones for the same node, except that a local entry
// with the same answer text keeps its richer metadata. Answers for nodes no longer
// in the graph are dropped.
func reconcile(s *domain.Session, g *graph.Graph, snap *domain.ProgressSnapshot, prior []domain.PriorAnswer) *domain.Session {
	next := s.Clone()

	if snap != nil {
		for id, ans := range snap.CompletedAnswers {
			if g.Has(id) {
				next.Completed[id] = ans
			}
		}
		if snap.LastFilledQuestionID != nil && g.Has(*snap.LastFilledQuestionID) {
			next.LastFilledQuestionID = domain.IntPtr(*snap.LastFilledQuestionID)
		}
	}

	for _, p := range prior {
		if !g.Has(p.QuestionID) {
			continue
		}
		if local, ok := next.Completed[p.QuestionID]; ok && local.Answer == p.AnswerText {
			continue
		}
		next.Completed[p.QuestionID] = domain.CompletedAnswer{
			Answer:         p.AnswerText,
			IsSkipped:      p.AnswerText == domain.SkippedAnswer,
			Source:         domain.SourceRemote,
			IncidentNumber: s.IncidentNumber,
			WorkflowID:     s.WorkflowID,
		}
	}

	terminal := g.Terminal().ID
	switch {
	case next.IsCompleted(terminal) && hasPrior(prior, terminal):
		next.LastFilledQuestionID = domain.IntPtr(terminal)
	case next.LastFilledQuestionID == nil && len(prior) > 0:
		for i := len(prior) - 1; i >= 0; i-- {
			if g.Has(prior[i].QuestionID) {
				next.LastFilledQuestionID = domain.IntPtr(prior[i].QuestionID)
				break
			}
		}
	}

	return next
}

// commit records an acknowledged answer. The cursor is left for locate to recompute.
func commit(s *domain.Session, id int, ans domain.CompletedAnswer) *domain.Session {
	next := s.Clone()
	next.Completed[id] = ans
	next.LastFilledQuestionID = domain.IntPtr(id)
	next.History = append(next.History, id)
	next.LastError = ""
	next.Phase = domain.PhaseAdvancing
	return next
}

// locate positions the cursor on the current node, or marks the run complete.
func locate(g *graph.Graph, s *domain.Session) *domain.Session {
	next := s.Clone()
	current := currentQuestion(g, next.Completed)
	next.CurrentQuestionID = current
	if current == nil {
		next.Phase = domain.PhaseComplete
	} else {
		next.Phase = domain.PhaseAwaitingInput
	}
	return next
}

// currentQuestion walks the graph from the first node, following each completed
// node to its successor, and returns the first node that is not completed. Nil
// means the walk ran off the end of the graph.
//
// Completed answers carry the successor resolved at commit time. Remote answers
// do not, so their successor is resolved again from the stored answer text. A
// cycle through completed nodes falls back to the first incomplete node in
// positional order.
func currentQuestion(g *graph.Graph, completed map[int]domain.CompletedAnswer) *int {
	visited := make(map[int]bool, len(completed))
	id := g.First().ID

	for {
		ans, done := completed[id]
		if !done {
			return domain.IntPtr(id)
		}
		visited[id] = true

		next := ans.NextQuestionID
		if next == nil || !g.Has(*next) {
			next = g.Resolve(id, ans.Answer, nil).Next
		}
		if next == nil {
			return nil
		}
		if visited[*next] {
			return firstIncomplete(g, completed)
		}
		id = *next
	}
}

func firstIncomplete(g *graph.Graph, completed map[int]domain.CompletedAnswer) *int {
	for _, n := range g.Nodes() {
		if _, done := completed[n.ID]; !done {
			return domain.IntPtr(n.ID)
		}
	}
	return nil
}

func hasPrior(prior []domain.PriorAnswer, id int) bool {
	for _, p := range prior {
		if p.QuestionID == id {
			return true
		}
	}
	return false
}
