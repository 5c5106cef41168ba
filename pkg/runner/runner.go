package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/internal/logging"
	"github.com/aretw0/playbook/pkg/domain"
)

// Runner handles the question loop of one run using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdio.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	engine   *playbook.Engine
	workflow string
	incident string
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithEngine configures the engine the runner drives. Required.
func WithEngine(engine *playbook.Engine) Option {
	return func(r *Runner) {
		r.engine = engine
	}
}

// WithRun selects the workflow and incident to run. Required.
func WithRun(workflow, incident string) Option {
	return func(r *Runner) {
		r.workflow = workflow
		r.incident = incident
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run starts or resumes the run and loops until it is complete, the operator
// quits (io.EOF, "quit") or ctx ends. It returns the last known session; any
// acknowledged answer is already saved, so the run can be resumed later.
func (r *Runner) Run(ctx context.Context) (*domain.Session, error) {
	if r.engine == nil {
		return nil, errors.New("runner: no engine configured")
	}

	s, err := r.engine.Start(ctx, r.workflow, r.incident)
	if err != nil {
		_ = r.Handler.SystemOutput(ctx, domain.DisplayMessage(err))
		return s, err
	}

	for {
		if s.Phase == domain.PhaseComplete {
			progress, _ := r.engine.Progress(ctx, s)
			_ = r.Handler.SystemOutput(ctx, fmt.Sprintf(
				"Workflow %q complete for incident %s (%d answered, %d skipped).",
				s.WorkflowName, s.IncidentNumber, progress.Answered, progress.Skipped))
			return s, nil
		}

		node, err := r.engine.Question(ctx, s)
		if err != nil {
			return s, fmt.Errorf("current question: %w", err)
		}
		progress, err := r.engine.Progress(ctx, s)
		if err != nil {
			return s, err
		}

		if err := r.Handler.Output(ctx, Prompt{
			WorkflowName:   s.WorkflowName,
			IncidentNumber: s.IncidentNumber,
			Question:       node,
			Progress:       progress,
			LastError:      s.LastError,
		}); err != nil {
			return s, fmt.Errorf("output error: %w", err)
		}

		reply, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.pause(ctx, s)
				return s, nil
			}
			if ctx.Err() != nil {
				r.pause(ctx, s)
				return s, ctx.Err()
			}
			return s, fmt.Errorf("input error: %w", err)
		}

		if !reply.Structured && !reply.Skip && !reply.Quit {
			if reply, err = ParseReply(node, reply.Text); err != nil {
				_ = r.Handler.SystemOutput(ctx, err.Error())
				continue
			}
		} else {
			reply = reply.Normalize(node)
		}
		if reply.Quit {
			r.pause(ctx, s)
			return s, nil
		}

		s, err = r.submit(ctx, s, reply)
		if err != nil && !recoverable(err) {
			return s, err
		}
	}
}

func (r *Runner) submit(ctx context.Context, s *domain.Session, reply Reply) (*domain.Session, error) {
	var (
		next *domain.Session
		err  error
	)
	if reply.Skip {
		next, err = r.engine.Skip(ctx, s.WorkflowName, s.IncidentNumber)
	} else {
		next, err = r.engine.Answer(ctx, s.WorkflowName, s.IncidentNumber, reply.Answer())
	}
	if err != nil {
		r.Logger.Debug("submission not accepted", "err", err)
		if next == nil {
			next = s
		}
		// Submission failures are shown through the prompt's LastError.
		var subErr *domain.SubmissionError
		if !errors.As(err, &subErr) {
			_ = r.Handler.SystemOutput(ctx, domain.DisplayMessage(err))
		}
	}
	return next, err
}

func (r *Runner) pause(ctx context.Context, s *domain.Session) {
	_ = r.Handler.SystemOutput(ctx, fmt.Sprintf(
		"Progress saved. Resume with: playbook run %s %s", s.WorkflowName, s.IncidentNumber))
}

// recoverable reports whether the loop can continue after err.
func recoverable(err error) bool {
	var subErr *domain.SubmissionError
	return errors.As(err, &subErr) ||
		errors.Is(err, domain.ErrSkipRequired) ||
		errors.Is(err, domain.ErrSubmissionInFlight)
}
