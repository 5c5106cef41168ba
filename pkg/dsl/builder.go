package dsl

import (
	"fmt"

	"github.com/aretw0/playbook/pkg/adapters/memory"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
)

// Builder manages the workflow construction.
type Builder struct {
	id        int
	name      string
	order     []int
	questions map[int]*QuestionBuilder
	responses map[string][]domain.PriorAnswer
}

// New creates a builder for the workflow id, resolvable by name.
func New(id int, name string) *Builder {
	return &Builder{
		id:        id,
		name:      name,
		questions: make(map[int]*QuestionBuilder),
		responses: make(map[string][]domain.PriorAnswer),
	}
}

// Add creates a question with a free-form type tag.
// If the question already exists, it returns the existing builder unchanged.
func (b *Builder) Add(id int, questionType, text string) *QuestionBuilder {
	if qb, ok := b.questions[id]; ok {
		return qb
	}
	qb := &QuestionBuilder{
		record: domain.QuestionRecord{ID: id, Type: questionType, Text: text},
	}
	b.questions[id] = qb
	b.order = append(b.order, id)
	return qb
}

// MultipleChoice adds a single-choice question. Its options may branch.
func (b *Builder) MultipleChoice(id int, text string) *QuestionBuilder {
	return b.Add(id, string(domain.TypeMultipleChoice), text)
}

// Subjective adds a free-text question.
func (b *Builder) Subjective(id int, text string) *QuestionBuilder {
	return b.Add(id, string(domain.TypeSubjective), text)
}

// Checkbox adds a multi-select question.
func (b *Builder) Checkbox(id int, text string) *QuestionBuilder {
	return b.Add(id, string(domain.TypeCheckbox), text)
}

// Instruction adds a step the operator acknowledges.
func (b *Builder) Instruction(id int, text string) *QuestionBuilder {
	return b.Add(id, string(domain.TypeInstruction), text)
}

// Answered records an answer the incident service already holds for incident.
func (b *Builder) Answered(incident string, questionID int, answer string) *Builder {
	b.responses[incident] = append(b.responses[incident], domain.PriorAnswer{
		QuestionID: questionID,
		AnswerText: answer,
	})
	return b
}

// Build checks the questions form a loadable graph and returns the workflow.
func (b *Builder) Build() (memory.Workflow, error) {
	records := make([]domain.QuestionRecord, 0, len(b.order))
	for _, id := range b.order {
		records = append(records, b.questions[id].Build())
	}

	if _, err := graph.New(b.id, records); err != nil {
		return memory.Workflow{}, fmt.Errorf("workflow %q: %w", b.name, err)
	}

	wf := memory.Workflow{
		ID:        b.id,
		Name:      b.name,
		Questions: records,
	}
	if len(b.responses) > 0 {
		wf.Responses = make(map[string][]domain.PriorAnswer, len(b.responses))
		for inc, answers := range b.responses {
			wf.Responses[inc] = append([]domain.PriorAnswer(nil), answers...)
		}
	}
	return wf, nil
}

// Authority builds the workflow and serves it from a new in-memory authority.
func (b *Builder) Authority() (*memory.Authority, error) {
	wf, err := b.Build()
	if err != nil {
		return nil, err
	}
	return memory.NewAuthority(wf), nil
}
