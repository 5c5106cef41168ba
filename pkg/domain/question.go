package domain

import (
	"fmt"
	"strings"
)

// QuestionType is the closed set of node kinds a workflow can contain.
type QuestionType string

const (
	// TypeMultipleChoice accepts exactly one option; options may branch.
	TypeMultipleChoice QuestionType = "MultipleChoice"
	// TypeSubjective accepts free text.
	TypeSubjective QuestionType = "Subjective"
	// TypeCheckbox accepts several options (or assignable users). Never branches per option.
	TypeCheckbox QuestionType = "Checkbox"
	// TypeInstruction is acknowledged rather than answered.
	TypeInstruction QuestionType = "Instruction"
)

// QuestionTypes lists every valid type in declaration order.
var QuestionTypes = []QuestionType{TypeMultipleChoice, TypeSubjective, TypeCheckbox, TypeInstruction}

// ParseQuestionType normalizes a free-form tag coming from the remote authority.
// Matching ignores case, spaces, underscores and hyphens, so "multiple_choice",
// "Multiple Choice" and "MULTIPLECHOICE" are all TypeMultipleChoice.
func ParseQuestionType(raw string) (QuestionType, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(raw))

	switch key {
	case "multiplechoice":
		return TypeMultipleChoice, nil
	case "subjective":
		return TypeSubjective, nil
	case "checkbox":
		return TypeCheckbox, nil
	case "instruction":
		return TypeInstruction, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownQuestionType, raw)
}

// Option is one selectable answer of a MultipleChoice or Checkbox node.
type Option struct {
	ID   int    `json:"option_id" yaml:"option_id"`
	Text string `json:"option_text" yaml:"option_text"`
	// NextID is the branch target for MultipleChoice options. Nil means "no link".
	NextID *int `json:"next_question_id,omitempty" yaml:"next_question_id,omitempty"`
}

// QuestionNode is one step in a workflow. Nodes are immutable once loaded.
type QuestionNode struct {
	ID       int          `json:"question_id" yaml:"question_id"`
	Text     string       `json:"question_text" yaml:"question_text"`
	Type     QuestionType `json:"question_type" yaml:"question_type"`
	Options  []Option     `json:"options,omitempty" yaml:"options,omitempty"`
	Required bool         `json:"is_required" yaml:"is_required"`
	Position int          `json:"position" yaml:"position"`

	// NextID is the question-level link sent by the incident service. The walk does not
	// follow it; only MultipleChoice options branch.
	NextID *int `json:"next_question_id,omitempty" yaml:"next_question_id,omitempty"`
}

// OptionByText returns the option whose text equals text exactly.
func (n QuestionNode) OptionByText(text string) (Option, bool) {
	for _, opt := range n.Options {
		if opt.Text == text {
			return opt, true
		}
	}
	return Option{}, false
}

// IntPtr is a small helper for optional ids.
func IntPtr(v int) *int {
	return &v
}

// QuestionRecord is a node as delivered by the remote authority, before normalization.
// Type is free-form; the graph loader maps it onto a QuestionType.
type QuestionRecord struct {
	ID       int            `json:"question_id" yaml:"question_id" mapstructure:"question_id"`
	Text     string         `json:"question_text" yaml:"question_text" mapstructure:"question_text"`
	Type     string         `json:"question_type" yaml:"question_type" mapstructure:"question_type"`
	Options  []OptionRecord `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
	Required *bool          `json:"is_required,omitempty" yaml:"is_required,omitempty" mapstructure:"is_required"`
	NextID   *int           `json:"next_question_id,omitempty" yaml:"next_question_id,omitempty" mapstructure:"next_question_id"`
}

// OptionRecord is an option as delivered by the remote authority.
type OptionRecord struct {
	ID     int    `json:"option_id" yaml:"option_id" mapstructure:"option_id"`
	Text   string `json:"option_text" yaml:"option_text" mapstructure:"option_text"`
	NextID *int   `json:"next_question_id,omitempty" yaml:"next_question_id,omitempty" mapstructure:"next_question_id"`
}
