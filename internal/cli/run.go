package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/playbook/internal/presentation/tui"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/runner"
)

// Standard streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// RunOptions contains the configuration of the run command.
type RunOptions struct {
	Workflow string
	Incident string
	// JSON switches the prompt to NDJSON on stdin/stdout.
	JSON bool
	// Plain disables the banner and markdown rendering.
	Plain bool
	// Fresh discards the local snapshot before starting. Answers already held by
	// the remote authority are still replayed.
	Fresh bool
}

// RunSession walks one incident through its workflow on the terminal.
func RunSession(ctx context.Context, app *App, opts RunOptions) error {
	if opts.Fresh {
		if err := app.Store.Delete(ctx, opts.Workflow, opts.Incident); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
	}

	interactive := !opts.JSON && !opts.Plain
	if interactive {
		tui.PrintBanner(stdout)
	}

	r := runner.NewRunner(
		runner.WithEngine(app.Engine),
		runner.WithRun(opts.Workflow, opts.Incident),
		runner.WithLogger(app.Logger),
		runner.WithInputHandler(newHandler(opts, interactive)),
	)

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	s, err := r.Run(sigCtx)
	if s != nil {
		app.Logger.Info("run finished", "key", s.Key(), "phase", s.Phase)
	}
	if err != nil && sigCtx.Signal() != nil && errors.Is(err, context.Canceled) {
		// Interrupted by the operator; progress is already saved.
		return nil
	}
	return err
}

func newHandler(opts RunOptions, interactive bool) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(stdin, stdout)
	}
	var handlerOpts []runner.TextHandlerOption
	if interactive && runner.IsTerminal(stdout) {
		handlerOpts = append(handlerOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
	}
	return runner.NewTextHandler(stdin, stdout, handlerOpts...)
}

// PrintStatus reports whether a run has reached the end of its workflow.
// It returns the completion flag so callers can pick an exit code.
func PrintStatus(ctx context.Context, app *App, workflow, incident string) (bool, error) {
	done, g, err := app.Engine.Status(ctx, workflow, incident)
	if err != nil {
		return false, errors.New(domain.DisplayMessage(err))
	}
	if done {
		fmt.Fprintf(stdout, "%s: complete (terminal question %d answered)\n", domain.SnapshotKey(workflow, incident), g.Terminal().ID)
		return true, nil
	}
	fmt.Fprintf(stdout, "%s: in progress (%d questions, terminal %d)\n", domain.SnapshotKey(workflow, incident), g.Len(), g.Terminal().ID)
	return false, nil
}
