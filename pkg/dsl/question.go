package dsl

import "github.com/aretw0/playbook/pkg/domain"

// QuestionBuilder provides a fluent API for configuring a question.
type QuestionBuilder struct {
	record domain.QuestionRecord
}

// Option appends a selectable answer. Option ids are numbered from 1 in call order.
// A target makes the option branch; only the first target is used.
func (q *QuestionBuilder) Option(text string, target ...int) *QuestionBuilder {
	opt := domain.OptionRecord{
		ID:   len(q.record.Options) + 1,
		Text: text,
	}
	if len(target) > 0 {
		opt.NextID = domain.IntPtr(target[0])
	}
	q.record.Options = append(q.record.Options, opt)
	return q
}

// Go records a question-level link the way the incident service carries it.
// The walk never follows it; branch with Option on a MultipleChoice question.
func (q *QuestionBuilder) Go(target int) *QuestionBuilder {
	q.record.NextID = domain.IntPtr(target)
	return q
}

// Optional lets the operator skip the question.
func (q *QuestionBuilder) Optional() *QuestionBuilder {
	q.record.Required = new(bool)
	return q
}

// Build returns the underlying record.
// This is primarily used by the Builder, but exposed for advanced usage.
func (q *QuestionBuilder) Build() domain.QuestionRecord {
	rec := q.record
	rec.Options = append([]domain.OptionRecord(nil), q.record.Options...)
	return rec
}
