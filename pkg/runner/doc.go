/*
Package runner drives one incident run from a terminal or a pipe.

The Runner starts (or resumes) the run, shows the current question through an
IOHandler, turns the operator's reply into an answer and submits it, until the
workflow is complete or the operator leaves. Progress is saved after every
acknowledged answer, so leaving is always safe.

# Key Components

  - Runner: the question loop.
  - IOHandler: decouples how questions are shown and replies are read.
  - TextHandler: interactive terminal usage, with optional markdown rendering.
  - JSONHandler: NDJSON for scripts and headless hosts.

# Usage

	r := runner.NewRunner(
		runner.WithEngine(engine),
		runner.WithRun("phishing", "INC-1042"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)

	if _, err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
