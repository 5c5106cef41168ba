package runner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/playbook/pkg/domain"
)

var (
	// ErrEmptyAnswer is returned when a question other than an instruction gets no answer.
	ErrEmptyAnswer = errors.New("an answer is required (type 'skip' to skip optional questions)")
	// ErrInvalidChoice is returned when a reply names no option of the question.
	ErrInvalidChoice = errors.New("not one of the listed options")
)

// Reserved replies typed at the prompt.
const (
	CommandSkip = "skip"
	CommandQuit = "quit"
	CommandExit = "exit"
)

// ParseReply interprets a line typed for node. Options can be picked by number
// (1-based) or by text; Checkbox replies are comma separated. A Checkbox without
// options collects assignee names.
func ParseReply(node domain.QuestionNode, line string) (Reply, error) {
	text := strings.TrimSpace(line)
	switch strings.ToLower(text) {
	case CommandSkip:
		return Reply{Skip: true}, nil
	case CommandQuit, CommandExit:
		return Reply{Quit: true}, nil
	}

	switch node.Type {
	case domain.TypeInstruction:
		return Reply{Text: domain.ConfirmedAnswer}, nil

	case domain.TypeMultipleChoice:
		if text == "" {
			return Reply{}, ErrEmptyAnswer
		}
		opt, err := pickOption(node, text)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: opt.Text}, nil

	case domain.TypeCheckbox:
		parts := splitList(text)
		if len(parts) == 0 {
			return Reply{}, ErrEmptyAnswer
		}
		if len(node.Options) == 0 {
			return Reply{SelectedUsers: parts}, nil
		}
		picked := make([]string, 0, len(parts))
		for _, p := range parts {
			opt, err := pickOption(node, p)
			if err != nil {
				return Reply{}, err
			}
			picked = append(picked, opt.Text)
		}
		return Reply{SelectedOptions: picked}, nil
	}

	if text == "" {
		return Reply{}, ErrEmptyAnswer
	}
	return Reply{Text: text}, nil
}

// Answer converts a reply into engine input.
func (r Reply) Answer() domain.AnswerInput {
	return domain.AnswerInput{
		Text:            r.Text,
		NextQuestionID:  r.NextQuestionID,
		SelectedOptions: r.SelectedOptions,
		SelectedUsers:   r.SelectedUsers,
	}
}

func pickOption(node domain.QuestionNode, choice string) (domain.Option, error) {
	if n, err := strconv.Atoi(choice); err == nil {
		if n >= 1 && n <= len(node.Options) {
			return node.Options[n-1], nil
		}
		return domain.Option{}, fmt.Errorf("%w: %d", ErrInvalidChoice, n)
	}
	for _, opt := range node.Options {
		if strings.EqualFold(opt.Text, choice) {
			return opt, nil
		}
	}
	return domain.Option{}, fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Normalize fills in the acknowledgement of an Instruction node when a
// structured client sent no text.
func (r Reply) Normalize(node domain.QuestionNode) Reply {
	if node.Type == domain.TypeInstruction && r.Text == "" {
		r.Text = domain.ConfirmedAnswer
	}
	return r
}
