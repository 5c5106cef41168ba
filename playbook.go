package playbook

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/playbook/internal/logging"
	"github.com/aretw0/playbook/internal/runtime"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
	"github.com/aretw0/playbook/pkg/ports"
	"github.com/aretw0/playbook/pkg/session"
)

// Version is the release of the module. Overridden at link time.
var Version = "dev"

// Engine is the high-level entry point for the playbook library.
// It wraps the internal runtime and a session manager behind one API.
type Engine struct {
	runtime   *runtime.Engine
	sessions  *session.Manager
	authority ports.Authority
	store     ports.ProgressStore

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	timeout     time.Duration
	locker      ports.DistributedLocker
	observers   []session.Observer
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTimeout bounds each call to the remote authority (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithLocker coordinates runs across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithObserver is notified after every change to a live run.
func WithObserver(obs session.Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, obs)
	}
}

// WithClock overrides the time source of answer and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// New wires an engine against the remote authority and the progress store.
func New(authority ports.Authority, store ports.ProgressStore, opts ...Option) *Engine {
	eng := &Engine{
		authority: authority,
		store:     store,
		timeout:   runtime.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithTimeout(eng.timeout),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(authority, store, runtimeOpts...)

	sessionOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(eng.locker))
	}
	for _, obs := range eng.observers {
		sessionOpts = append(sessionOpts, session.WithObserver(obs))
	}
	eng.sessions = session.NewManager(eng.runtime, store, sessionOpts...)

	return eng
}

// Start opens or resumes the run of incident on workflowName.
func (e *Engine) Start(ctx context.Context, workflowName, incident string) (*domain.Session, error) {
	return e.sessions.Start(ctx, workflowName, incident)
}

// Current returns the run and the question awaiting input.
func (e *Engine) Current(ctx context.Context, workflowName, incident string) (*domain.Session, domain.QuestionNode, error) {
	return e.sessions.Current(ctx, workflowName, incident)
}

// Answer submits input for the current question of the run.
func (e *Engine) Answer(ctx context.Context, workflowName, incident string, in domain.AnswerInput) (*domain.Session, error) {
	return e.sessions.Answer(ctx, workflowName, incident, in)
}

// Skip skips the current question when it is optional.
func (e *Engine) Skip(ctx context.Context, workflowName, incident string) (*domain.Session, error) {
	return e.sessions.Skip(ctx, workflowName, incident)
}

// Question returns the question awaiting input in s.
func (e *Engine) Question(ctx context.Context, s *domain.Session) (domain.QuestionNode, error) {
	return e.runtime.CurrentNode(ctx, s)
}

// Progress reports answered, skipped and total question counts of a run.
func (e *Engine) Progress(ctx context.Context, s *domain.Session) (domain.Progress, error) {
	return e.runtime.Progress(ctx, s)
}

// Status reports whether the run has already reached the end of its workflow.
func (e *Engine) Status(ctx context.Context, workflowName, incident string) (bool, *graph.Graph, error) {
	return e.runtime.Status(ctx, workflowName, incident)
}

// Inspect loads the question graph of a workflow by name.
func (e *Engine) Inspect(ctx context.Context, workflowName string) (*graph.Graph, error) {
	id, err := e.runtime.ResolveWorkflow(ctx, workflowName)
	if err != nil {
		return nil, err
	}
	return e.runtime.Graph(ctx, id)
}

// Sessions returns the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Store returns the progress store.
func (e *Engine) Store() ports.ProgressStore {
	return e.store
}

// Authority returns the remote authority.
func (e *Engine) Authority() ports.Authority {
	return e.authority
}
