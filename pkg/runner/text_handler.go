package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ContentRenderer transforms question text before it is printed.
// This allows for markdown rendering without coupling the core package.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	out       *termenv.Output
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO. Colours are used only
// when w is a terminal.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		out:    termenv.NewOutput(w),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f any) bool {
	file, ok := f.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can honour context cancellation.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) Output(ctx context.Context, p Prompt) error {
	q := p.Question

	header := fmt.Sprintf("[%d/%d]", p.Progress.Answered+1, p.Progress.Total)
	fmt.Fprintln(h.Writer)
	fmt.Fprintf(h.Writer, "%s %s\n", h.out.String(header).Faint(), h.render(q.Text))

	for i, opt := range q.Options {
		fmt.Fprintf(h.Writer, "  %d) %s\n", i+1, opt.Text)
	}

	switch q.Type {
	case domain.TypeInstruction:
		fmt.Fprintln(h.Writer, h.out.String("Press Enter to confirm.").Faint())
	case domain.TypeCheckbox:
		if len(q.Options) == 0 {
			fmt.Fprintln(h.Writer, h.out.String("Assign users, separated by commas.").Faint())
		} else {
			fmt.Fprintln(h.Writer, h.out.String("Pick one or more, separated by commas.").Faint())
		}
	}
	if !q.Required {
		fmt.Fprintln(h.Writer, h.out.String("Optional: type 'skip' to skip.").Faint())
	}
	if p.LastError != "" {
		fmt.Fprintln(h.Writer, h.out.String("! "+p.LastError).Foreground(h.out.Color("1")))
	}
	return nil
}

func (h *TextHandler) Input(ctx context.Context) (Reply, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		default:
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return Reply{}, io.EOF
			}
			if res.err != nil {
				return Reply{}, res.err
			}
			clean, err := SanitizeInput(res.text)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return Reply{Text: strings.TrimSpace(clean)}, nil
		}
	}
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "\n%s\n", h.out.String(msg).Bold())
	return nil
}

func (h *TextHandler) render(text string) string {
	if h.Renderer == nil {
		return text
	}
	rendered, err := h.Renderer(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(rendered)
}
