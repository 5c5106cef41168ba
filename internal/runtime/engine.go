package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/playbook/internal/logging"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
	"github.com/aretw0/playbook/pkg/ports"
)

// DefaultTimeout bounds every call to the remote authority.
const DefaultTimeout = 10 * time.Second

// Engine is the traversal state machine. It never mutates a session it was given:
// every operation returns a new *domain.Session.
type Engine struct {
	authority ports.Authority
	store     ports.ProgressStore
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	graphs   map[int]*graph.Graph
	inflight map[string]struct{}
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout bounds each remote call. Zero or negative disables the bound.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithClock overrides the time source used for answer and snapshot timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine bound to a remote authority and a progress store.
func NewEngine(authority ports.Authority, store ports.ProgressStore, opts ...EngineOption) *Engine {
	e := &Engine{
		authority: authority,
		store:     store,
		logger:    logging.NewNop(),
		timeout:   DefaultTimeout,
		now:       time.Now,
		graphs:    make(map[int]*graph.Graph),
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a run for (workflowName, incident): it resolves the workflow, loads
// its graph, reconciles remote history and the local snapshot, and positions the
// cursor on the current node.
//
// On a missing identifier the returned session is in PhaseError and no remote call
// is made. On a load failure the session stays in PhaseInitializing; Start may be
// retried.
func (e *Engine) Start(ctx context.Context, workflowName, incident string) (*domain.Session, error) {
	s := domain.NewSession(workflowName, incident)
	s.UpdatedAt = e.now()

	if err := checkIdentifiers(workflowName, incident); err != nil {
		s.Phase = domain.PhaseError
		s.LastError = domain.DisplayMessage(err)
		return s, err
	}

	log := e.logger.With("workflow", workflowName, "incident", incident)

	workflowID, err := e.resolveWorkflow(ctx, workflowName)
	if err != nil {
		s.LastError = domain.DisplayMessage(err)
		return s, err
	}
	s.WorkflowID = workflowID

	g, err := e.loadGraph(ctx, workflowID)
	if err != nil {
		s.LastError = domain.DisplayMessage(err)
		return s, err
	}

	prior, err := e.fetchPriorAnswers(ctx, workflowID, incident)
	if err != nil {
		s.LastError = domain.DisplayMessage(err)
		return s, err
	}

	snap := e.loadSnapshot(ctx, log, g, workflowName, incident)

	next := reconcile(s, g, snap, prior)
	log.Debug("run reconciled",
		"remote_answers", len(prior),
		"snapshot", snap != nil,
		"completed", len(next.Completed),
	)

	return e.advance(ctx, g, next), nil
}

// Answer commits input for the current node. The node is marked completed only after
// the remote authority acknowledges it, and the snapshot is saved before the cursor
// moves.
//
// On a submission failure the returned session is still awaiting input on the same
// node with LastError set, and the error is a *domain.SubmissionError.
func (e *Engine) Answer(ctx context.Context, s *domain.Session, in domain.AnswerInput) (*domain.Session, error) {
	return e.submit(ctx, s, in, false)
}

// Skip submits the SKIPPED sentinel for the current node. Required nodes are
// rejected with domain.ErrSkipRequired before any remote call.
func (e *Engine) Skip(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	return e.submit(ctx, s, domain.AnswerInput{Text: domain.SkippedAnswer}, true)
}

// CurrentNode returns the node awaiting input.
func (e *Engine) CurrentNode(ctx context.Context, s *domain.Session) (domain.QuestionNode, error) {
	if err := checkAwaiting(s); err != nil {
		return domain.QuestionNode{}, err
	}
	g, err := e.Graph(ctx, s.WorkflowID)
	if err != nil {
		return domain.QuestionNode{}, err
	}
	return g.Node(*s.CurrentQuestionID)
}

// Progress reports answered, skipped and total node counts for a session.
func (e *Engine) Progress(ctx context.Context, s *domain.Session) (domain.Progress, error) {
	g, err := e.Graph(ctx, s.WorkflowID)
	if err != nil {
		return domain.Progress{}, err
	}
	return s.ProgressOf(g.Len()), nil
}

// Graph returns the graph of a workflow, loading it on first use.
func (e *Engine) Graph(ctx context.Context, workflowID int) (*graph.Graph, error) {
	e.mu.Lock()
	g, ok := e.graphs[workflowID]
	e.mu.Unlock()
	if ok {
		return g, nil
	}
	return e.loadGraph(ctx, workflowID)
}

// ResolveWorkflow maps a workflow name to its id on the remote authority.
func (e *Engine) ResolveWorkflow(ctx context.Context, workflowName string) (int, error) {
	if workflowName == "" {
		return 0, &domain.PreconditionError{Field: "workflow"}
	}
	return e.resolveWorkflow(ctx, workflowName)
}

func (e *Engine) submit(ctx context.Context, s *domain.Session, in domain.AnswerInput, skipped bool) (*domain.Session, error) {
	if err := checkAwaiting(s); err != nil {
		return s, err
	}

	g, err := e.Graph(ctx, s.WorkflowID)
	if err != nil {
		return s, err
	}
	node, err := g.Node(*s.CurrentQuestionID)
	if err != nil {
		return s, fmt.Errorf("current question: %w", err)
	}
	if skipped && node.Required {
		return s, fmt.Errorf("question %d: %w", node.ID, domain.ErrSkipRequired)
	}

	key := s.Key()
	if !e.beginSubmission(key) {
		return s, domain.ErrSubmissionInFlight
	}
	defer e.endSubmission(key)

	text := answerText(in)
	record := domain.AnswerRecord{
		QuestionID:     node.ID,
		AnswerText:     text,
		IsSkipped:      skipped,
		IncidentNumber: s.IncidentNumber,
		WorkflowID:     s.WorkflowID,
		Timestamp:      e.now(),
	}

	log := e.logger.With("workflow", s.WorkflowName, "incident", s.IncidentNumber, "question", node.ID)
	event := &domain.AnswerEvent{
		EventBase:  e.eventBase(s, domain.EventAnswerCommitted),
		QuestionID: node.ID,
		IsSkipped:  skipped,
	}

	started := time.Now()
	callCtx, cancel := e.withTimeout(ctx)
	_, err = e.authority.SubmitAnswer(callCtx, record)
	cancel()
	event.Duration = time.Since(started)

	if err != nil {
		subErr := asSubmissionError(node.ID, err)
		log.Warn("answer submission failed", "error", err)

		event.Type = domain.EventSubmissionFailed
		event.Err = subErr
		if e.hooks.OnSubmissionFailed != nil {
			e.hooks.OnSubmissionFailed(ctx, event)
		}

		failed := s.Clone()
		failed.Phase = domain.PhaseAwaitingInput
		failed.LastError = domain.DisplayMessage(subErr)
		failed.UpdatedAt = e.now()
		return failed, subErr
	}

	res := g.Resolve(node.ID, text, in.NextQuestionID)
	if res.Dangling != nil {
		e.reportDangling(ctx, log, s, node.ID, *res.Dangling, res.Next)
	}

	next := commit(s, node.ID, domain.CompletedAnswer{
		Answer:          text,
		IsSkipped:       skipped,
		Source:          domain.SourceLocal,
		NextQuestionID:  res.Next,
		SelectedOptions: append([]string(nil), in.SelectedOptions...),
		SelectedUsers:   append([]string(nil), in.SelectedUsers...),
		IncidentNumber:  s.IncidentNumber,
		WorkflowID:      s.WorkflowID,
		Timestamp:       record.Timestamp,
	})
	next.UpdatedAt = e.now()

	if err := e.store.Save(ctx, next.Snapshot(g.Terminal().ID, next.UpdatedAt)); err != nil {
		// The remote already holds the answer; the next Start reconciles it.
		log.Error("failed to save progress snapshot", "error", err)
		if e.hooks.OnSnapshotFailed != nil {
			e.hooks.OnSnapshotFailed(ctx, &domain.SnapshotEvent{
				EventBase:  e.eventBase(s, domain.EventSnapshotFailed),
				QuestionID: node.ID,
				Err:        err,
			})
		}
	}

	log.Info("answer committed", "skipped", skipped, "rule", res.Rule)
	if e.hooks.OnAnswerCommitted != nil {
		e.hooks.OnAnswerCommitted(ctx, event)
	}

	return e.advance(ctx, g, next), nil
}

// advance recomputes the cursor and fires the matching hook.
func (e *Engine) advance(ctx context.Context, g *graph.Graph, s *domain.Session) *domain.Session {
	next := locate(g, s)
	next.UpdatedAt = e.now()

	if next.Phase == domain.PhaseComplete {
		e.logger.Info("workflow run complete", "workflow", next.WorkflowName, "incident", next.IncidentNumber)
		if e.hooks.OnRunComplete != nil {
			base := e.eventBase(next, domain.EventRunComplete)
			e.hooks.OnRunComplete(ctx, &base)
		}
		return next
	}

	if e.hooks.OnNodeEnter != nil {
		node, _ := g.Node(*next.CurrentQuestionID)
		e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
			EventBase:    e.eventBase(next, domain.EventNodeEnter),
			QuestionID:   node.ID,
			QuestionType: node.Type,
		})
	}
	return next
}

func (e *Engine) resolveWorkflow(ctx context.Context, name string) (int, error) {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	id, err := e.authority.ResolveWorkflow(callCtx, name)
	if err != nil {
		return 0, &domain.LoadError{Op: "workflow", Err: err}
	}
	return id, nil
}

func (e *Engine) loadGraph(ctx context.Context, workflowID int) (*graph.Graph, error) {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	g, err := graph.Load(callCtx, e.authority, workflowID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.graphs[workflowID] = g
	e.mu.Unlock()
	return g, nil
}

func (e *Engine) fetchPriorAnswers(ctx context.Context, workflowID int, incident string) ([]domain.PriorAnswer, error) {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	prior, err := e.authority.FetchPriorAnswers(callCtx, workflowID, incident)
	if errors.Is(err, domain.ErrPriorAnswersNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.LoadError{Op: "prior answers", Err: err}
	}
	return prior, nil
}

// loadSnapshot never fails: absent, corrupt, unreadable, stale and foreign
// snapshots all read as nil.
func (e *Engine) loadSnapshot(ctx context.Context, log *slog.Logger, g *graph.Graph, workflow, incident string) *domain.ProgressSnapshot {
	snap, err := e.store.Load(ctx, workflow, incident)
	switch {
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return nil
	case errors.Is(err, domain.ErrSnapshotCorrupt):
		log.Warn("ignoring corrupt progress snapshot", "error", err)
		return nil
	case err != nil:
		log.Warn("could not read progress snapshot", "error", err)
		return nil
	}

	if snap.WorkflowName != workflow || snap.IncidentNumber != incident {
		log.Warn("ignoring progress snapshot of another run",
			"snapshot_workflow", snap.WorkflowName,
			"snapshot_incident", snap.IncidentNumber,
		)
		return nil
	}

	if terminal := g.Terminal().ID; snap.TerminalQuestionID != terminal {
		log.Warn("progress snapshot invalidated: terminal question changed",
			"snapshot_terminal", snap.TerminalQuestionID,
			"graph_terminal", terminal,
		)
		return nil
	}
	return snap
}

func (e *Engine) reportDangling(ctx context.Context, log *slog.Logger, s *domain.Session, from, to int, fallback *int) {
	log.Warn("dangling branch target, falling back to sequential order",
		"error", &domain.GraphIntegrityError{FromID: from, ToID: to},
	)
	if e.hooks.OnDanglingBranch != nil {
		e.hooks.OnDanglingBranch(ctx, &domain.BranchEvent{
			EventBase:  e.eventBase(s, domain.EventDanglingBranch),
			FromID:     from,
			DanglingID: to,
			FallbackID: fallback,
		})
	}
}

func (e *Engine) beginSubmission(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[key]; busy {
		return false
	}
	e.inflight[key] = struct{}{}
	return true
}

func (e *Engine) endSubmission(key string) {
	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) eventBase(s *domain.Session, t domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp:      e.now(),
		Type:           t,
		WorkflowName:   s.WorkflowName,
		IncidentNumber: s.IncidentNumber,
	}
}

func checkIdentifiers(workflowName, incident string) error {
	if strings.TrimSpace(workflowName) == "" {
		return &domain.PreconditionError{Field: "workflow"}
	}
	if strings.TrimSpace(incident) == "" {
		return &domain.PreconditionError{Field: "incident number"}
	}
	return nil
}

func checkAwaiting(s *domain.Session) error {
	if s == nil {
		return domain.ErrNotAwaitingInput
	}
	if s.Phase == domain.PhaseComplete {
		return domain.ErrRunComplete
	}
	if s.Phase != domain.PhaseAwaitingInput || s.CurrentQuestionID == nil {
		return domain.ErrNotAwaitingInput
	}
	return nil
}

// answerText picks the submitted text: explicit text first, then picked
// assignees or ticked options joined by the user separator.
func answerText(in domain.AnswerInput) string {
	switch {
	case in.Text != "":
		return in.Text
	case len(in.SelectedUsers) > 0:
		return strings.Join(in.SelectedUsers, domain.UserSeparator)
	case len(in.SelectedOptions) > 0:
		return strings.Join(in.SelectedOptions, domain.UserSeparator)
	}
	return ""
}

// asSubmissionError normalizes a failed submit. Deadline expiry always reads as
// "timeout", whether or not the authority already wrapped it. Authority errors are
// copied so a shared error value is never mutated.
func asSubmissionError(questionID int, err error) *domain.SubmissionError {
	out := &domain.SubmissionError{QuestionID: questionID, Err: err}
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) {
		out.Message = subErr.Message
		out.Err = subErr.Err
		if subErr.QuestionID != 0 {
			out.QuestionID = subErr.QuestionID
		}
	}
	if out.Message == "" && errors.Is(err, context.DeadlineExceeded) {
		out.Message = "timeout"
	}
	return out
}
