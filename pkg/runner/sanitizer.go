package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/playbook/pkg/domain"
)

var (
	// DefaultMaxInputSize is 4KB per answer field.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "PLAYBOOK_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput enforces the size limit, validates UTF-8 and strips control
// characters other than newline, tab and carriage return. Oversized input is
// rejected rather than truncated so the recorded answer is exactly what was typed.
func SanitizeInput(input string) (string, error) {
	limit := maxInputSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if strings.IndexFunc(input, isUnsafeControl) < 0 {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !isUnsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// SanitizeAnswer applies SanitizeInput to every operator-supplied field.
func SanitizeAnswer(in domain.AnswerInput) (domain.AnswerInput, error) {
	out := in
	var err error
	if out.Text, err = SanitizeInput(in.Text); err != nil {
		return in, err
	}
	if out.SelectedOptions, err = sanitizeAll(in.SelectedOptions); err != nil {
		return in, err
	}
	if out.SelectedUsers, err = sanitizeAll(in.SelectedUsers); err != nil {
		return in, err
	}
	return out, nil
}

func sanitizeAll(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		clean, err := SanitizeInput(v)
		if err != nil {
			return nil, err
		}
		out[i] = clean
	}
	return out, nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
