// Package remote implements ports.Authority against the incident workflow HTTP API.
//
// Endpoints:
//
//	POST /api/workflows/get_id                         {workflow_name} -> {workflow_id}
//	GET  /api/workflows/{id}/questions-and-options     -> [question]
//	GET  /api/workflows/{id}/responses/{incident}      -> [{question_id, answer_text}] | 404
//	POST /api/questions/answer                         answer record -> ack | {error}
//
// Payloads are decoded loosely: ids may arrive as numbers or numeric strings.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/playbook/internal/logging"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// Client talks to the remote authority. Per-call deadlines come from the context.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveWorkflow maps a workflow name to its id.
func (c *Client) ResolveWorkflow(ctx context.Context, name string) (int, error) {
	var raw map[string]any
	code, err := c.do(ctx, http.MethodPost, "/api/workflows/get_id", map[string]string{"workflow_name": name}, &raw)
	if code == http.StatusNotFound {
		return 0, fmt.Errorf("%q: %w", name, domain.ErrWorkflowNotFound)
	}
	if err != nil {
		return 0, err
	}

	var out struct {
		WorkflowID int `mapstructure:"workflow_id"`
	}
	if err := decode(raw, &out); err != nil {
		return 0, fmt.Errorf("decode workflow id: %w", err)
	}
	if out.WorkflowID == 0 {
		return 0, fmt.Errorf("%q: %w", name, domain.ErrWorkflowNotFound)
	}
	return out.WorkflowID, nil
}

// FetchQuestions returns the ordered question records of a workflow.
func (c *Client) FetchQuestions(ctx context.Context, workflowID int) ([]domain.QuestionRecord, error) {
	var raw any
	path := fmt.Sprintf("/api/workflows/%d/questions-and-options", workflowID)
	code, err := c.do(ctx, http.MethodGet, path, nil, &raw)
	if code == http.StatusNotFound {
		return nil, fmt.Errorf("workflow %d: %w", workflowID, domain.ErrWorkflowNotFound)
	}
	if err != nil {
		return nil, err
	}

	// Accept both a bare array and a {"questions": [...]} envelope.
	if m, ok := raw.(map[string]any); ok {
		raw = m["questions"]
	}

	var records []domain.QuestionRecord
	if err := decode(raw, &records); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return records, nil
}

// FetchPriorAnswers returns the answer history of an incident, or
// domain.ErrPriorAnswersNotFound when the authority has none.
func (c *Client) FetchPriorAnswers(ctx context.Context, workflowID int, incident string) ([]domain.PriorAnswer, error) {
	var raw any
	path := fmt.Sprintf("/api/workflows/%d/responses/%s", workflowID, url.PathEscape(incident))
	code, err := c.do(ctx, http.MethodGet, path, nil, &raw)
	if code == http.StatusNotFound {
		return nil, domain.ErrPriorAnswersNotFound
	}
	if err != nil {
		return nil, err
	}

	var answers []domain.PriorAnswer
	if err := decode(raw, &answers); err != nil {
		return nil, fmt.Errorf("decode prior answers: %w", err)
	}
	if len(answers) == 0 {
		return nil, domain.ErrPriorAnswersNotFound
	}
	return answers, nil
}

// SubmitAnswer commits one answer. Every failure is a *domain.SubmissionError;
// the authority's {"error": "..."} payload becomes its Message.
func (c *Client) SubmitAnswer(ctx context.Context, rec domain.AnswerRecord) (domain.Ack, error) {
	var raw map[string]any
	_, err := c.do(ctx, http.MethodPost, "/api/questions/answer", rec, &raw)
	if err != nil {
		subErr := &domain.SubmissionError{QuestionID: rec.QuestionID, Err: err}
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			subErr.Message = "Failed to submit answer"
			if msg, ok := errorMessage(statusErr.Body); ok {
				subErr.Message = msg
			}
		}
		return domain.Ack{}, subErr
	}

	var ack domain.Ack
	if msg, ok := raw["message"].(string); ok {
		ack.Message = msg
	}
	return ack, nil
}

// do sends a JSON request and decodes a JSON response into out. It returns the
// status code whenever a response was received.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("remote call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func errorMessage(body string) (string, bool) {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil || payload.Error == "" {
		return "", false
	}
	return payload.Error, true
}
