package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aretw0/playbook/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Workflow is one workflow served by the in-memory authority.
type Workflow struct {
	ID        int                     `yaml:"id"`
	Name      string                  `yaml:"name"`
	Questions []domain.QuestionRecord `yaml:"questions"`
	// Responses holds the answer history per incident number.
	Responses map[string][]domain.PriorAnswer `yaml:"responses,omitempty"`
}

// Fixture is the YAML document accepted by LoadFixture.
type Fixture struct {
	Workflows []Workflow `yaml:"workflows"`
}

// Calls counts requests made to the authority, per operation.
type Calls struct {
	Resolve   int
	Questions int
	Prior     int
	Submit    int
}

// Authority implements ports.Authority in memory. It backs offline runs and tests.
// Safe for concurrent use.
type Authority struct {
	mu        sync.Mutex
	workflows map[int]*Workflow
	byName    map[string]int

	submissions []domain.AnswerRecord
	calls       Calls

	submitErr error
	priorErr  error
	gate      chan struct{}
}

// NewAuthority creates an authority serving the given workflows.
func NewAuthority(workflows ...Workflow) *Authority {
	a := &Authority{
		workflows: make(map[int]*Workflow),
		byName:    make(map[string]int),
	}
	for _, wf := range workflows {
		a.AddWorkflow(wf)
	}
	return a
}

// LoadFixture reads a YAML fixture file into a new authority.
func LoadFixture(path string) (*Authority, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture into a new authority.
func ParseFixture(data []byte) (*Authority, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	for _, wf := range f.Workflows {
		if wf.Name == "" {
			return nil, fmt.Errorf("fixture workflow %d has no name", wf.ID)
		}
	}
	return NewAuthority(f.Workflows...), nil
}

// AddWorkflow registers or replaces a workflow.
func (a *Authority) AddWorkflow(wf Workflow) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := wf
	w.Questions = append([]domain.QuestionRecord(nil), wf.Questions...)
	w.Responses = make(map[string][]domain.PriorAnswer, len(wf.Responses))
	for k, v := range wf.Responses {
		w.Responses[k] = append([]domain.PriorAnswer(nil), v...)
	}
	a.workflows[w.ID] = &w
	a.byName[w.Name] = w.ID
}

// FailSubmissions makes every SubmitAnswer return err until called with nil.
func (a *Authority) FailSubmissions(err error) {
	a.mu.Lock()
	a.submitErr = err
	a.mu.Unlock()
}

// FailPriorAnswers makes every FetchPriorAnswers return err until called with nil.
func (a *Authority) FailPriorAnswers(err error) {
	a.mu.Lock()
	a.priorErr = err
	a.mu.Unlock()
}

// HoldSubmissions blocks SubmitAnswer until the returned release func is called
// or the caller's context ends.
func (a *Authority) HoldSubmissions() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gate = gate
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.gate = nil
			a.mu.Unlock()
			close(gate)
		})
	}
}

// Submissions returns every acknowledged answer in arrival order.
func (a *Authority) Submissions() []domain.AnswerRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AnswerRecord(nil), a.submissions...)
}

// Calls returns the request counters.
func (a *Authority) Calls() Calls {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// ResolveWorkflow maps a workflow name to its id.
func (a *Authority) ResolveWorkflow(ctx context.Context, name string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Resolve++

	id, ok := a.byName[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, domain.ErrWorkflowNotFound)
	}
	return id, nil
}

// FetchQuestions returns the question records of a workflow in authored order.
func (a *Authority) FetchQuestions(ctx context.Context, workflowID int) ([]domain.QuestionRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Questions++

	wf, ok := a.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", workflowID, domain.ErrWorkflowNotFound)
	}
	return append([]domain.QuestionRecord(nil), wf.Questions...), nil
}

// FetchPriorAnswers returns the answer history for an incident, or
// domain.ErrPriorAnswersNotFound when there is none.
func (a *Authority) FetchPriorAnswers(ctx context.Context, workflowID int, incident string) ([]domain.PriorAnswer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Prior++

	if a.priorErr != nil {
		return nil, a.priorErr
	}
	wf, ok := a.workflows[workflowID]
	if !ok {
		return nil, fmt.Errorf("workflow %d: %w", workflowID, domain.ErrWorkflowNotFound)
	}
	answers := wf.Responses[incident]
	if len(answers) == 0 {
		return nil, domain.ErrPriorAnswersNotFound
	}
	return append([]domain.PriorAnswer(nil), answers...), nil
}

// SubmitAnswer records an answer. A later answer for the same question replaces
// the earlier one in the history.
func (a *Authority) SubmitAnswer(ctx context.Context, rec domain.AnswerRecord) (domain.Ack, error) {
	a.mu.Lock()
	a.calls.Submit++
	gate := a.gate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Ack{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.submitErr != nil {
		return domain.Ack{}, a.submitErr
	}
	wf, ok := a.workflows[rec.WorkflowID]
	if !ok {
		return domain.Ack{}, &domain.SubmissionError{
			QuestionID: rec.QuestionID,
			Message:    fmt.Sprintf("workflow %d not found", rec.WorkflowID),
		}
	}

	a.submissions = append(a.submissions, rec)

	history := wf.Responses[rec.IncidentNumber]
	entry := domain.PriorAnswer{QuestionID: rec.QuestionID, AnswerText: rec.AnswerText}
	replaced := false
	for i := range history {
		if history[i].QuestionID == rec.QuestionID {
			history[i] = entry
			replaced = true
		}
	}
	if !replaced {
		history = append(history, entry)
	}
	if wf.Responses == nil {
		wf.Responses = make(map[string][]domain.PriorAnswer)
	}
	wf.Responses[rec.IncidentNumber] = history

	return domain.Ack{Message: "Answer saved"}, nil
}
