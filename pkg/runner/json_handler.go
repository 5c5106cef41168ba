package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
)

// Message types written by the JSONHandler.
const (
	MessageQuestion = "question"
	MessageSystem   = "system"
)

// JSONHandler implements IOHandler with JSON Lines: one object per prompt on the
// writer, one reply per line on the reader. A reply is either a JSON object
// ({"answer": "...", "skip": true, ...}), a JSON string, or a plain line.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	mu sync.Mutex
}

type envelope struct {
	Type    string  `json:"type"`
	Prompt  *Prompt `json:"prompt,omitempty"`
	Message string  `json:"message,omitempty"`
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, p Prompt) error {
	return h.emit(envelope{Type: MessageQuestion, Prompt: &p})
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.emit(envelope{Type: MessageSystem, Message: msg})
}

func (h *JSONHandler) Input(ctx context.Context) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	text, err := h.Reader.ReadString('\n')
	text = strings.TrimSpace(text)
	if err != nil && (err != io.EOF || text == "") {
		return Reply{}, err
	}

	var reply Reply
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal([]byte(text), &reply); err == nil {
			reply.Structured = true
			return sanitizeReply(reply)
		}
	}

	var s string
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		text = s
	}
	clean, err := SanitizeInput(text)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: clean}, nil
}

func (h *JSONHandler) emit(v envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(v)
}

func sanitizeReply(r Reply) (Reply, error) {
	in, err := SanitizeAnswer(r.Answer())
	if err != nil {
		return Reply{}, err
	}
	r.Text = in.Text
	r.SelectedOptions = in.SelectedOptions
	r.SelectedUsers = in.SelectedUsers
	return r, nil
}
