package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/playbook/internal/presentation/diagram"
	"github.com/aretw0/playbook/internal/validator"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
)

// ListSessions prints every stored run key.
func ListSessions(ctx context.Context, app *App) error {
	keys, err := app.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(stdout, "No saved runs found.")
		return nil
	}
	fmt.Fprintln(stdout, "Saved Runs:")
	for _, k := range keys {
		fmt.Fprintln(stdout, "- "+k)
	}
	return nil
}

// InspectSession prints the stored snapshot of a run as indented JSON.
func InspectSession(ctx context.Context, app *App, workflow, incident string) error {
	snap, err := app.Store.Load(ctx, workflow, incident)
	if err != nil {
		return fmt.Errorf("load %s: %w", domain.SnapshotKey(workflow, incident), err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

// RemoveSessions deletes the snapshots named by keys ("workflow:incident").
// Every key is attempted; the joined error lists the failures.
func RemoveSessions(ctx context.Context, app *App, keys []string) error {
	var errs []error
	for _, key := range keys {
		workflow, incident, err := SplitKey(key)
		if err == nil {
			err = app.Store.Delete(ctx, workflow, incident)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("remove %q: %w", key, err))
			continue
		}
		fmt.Fprintf(stdout, "Removed run '%s'\n", key)
	}
	return errors.Join(errs...)
}

// SplitKey parses a "workflow:incident" run key. Incident numbers may contain colons;
// colons in workflow names are written as %3A.
func SplitKey(key string) (string, string, error) {
	workflow, incident, ok := domain.ParseSnapshotKey(key)
	if !ok {
		return "", "", fmt.Errorf("run key %q must look like workflow:incident", key)
	}
	return workflow, incident, nil
}

// GraphOptions selects the graph rendering.
type GraphOptions struct {
	// Incident overlays the reconciled progress of a run.
	Incident string
	// Edges prints the resolved adjacency list instead of Mermaid.
	Edges bool
}

// PrintGraph renders the question graph of a workflow.
func PrintGraph(ctx context.Context, app *App, workflow string, opts GraphOptions) error {
	g, err := app.Engine.Inspect(ctx, workflow)
	if err != nil {
		return errors.New(domain.DisplayMessage(err))
	}

	if opts.Edges {
		printEdges(g)
		return nil
	}

	var overlay *diagram.Overlay
	if opts.Incident != "" {
		s, err := app.Engine.Start(ctx, workflow, opts.Incident)
		if err != nil {
			return errors.New(domain.DisplayMessage(err))
		}
		overlay = &diagram.Overlay{Completed: s.CompletedIDs(), Current: s.CurrentQuestionID}
	}
	fmt.Fprint(stdout, diagram.GenerateMermaid(g, overlay))
	return nil
}

func printEdges(g *graph.Graph) {
	for _, node := range g.Nodes() {
		fmt.Fprintf(stdout, "%d [%s] %s\n", node.ID, node.Type, node.Text)
		for _, e := range g.Edges(node.ID) {
			to := "done"
			if e.To != nil {
				to = fmt.Sprint(*e.To)
			}
			line := fmt.Sprintf("  -> %s (%s)", to, e.Rule)
			if e.Label != "" {
				line += fmt.Sprintf(" %q", e.Label)
			}
			if e.Dangling {
				line += " dangling"
			}
			fmt.Fprintln(stdout, line)
		}
	}
}

// ValidateWorkflow lints the question graph of a workflow and prints every finding.
// It fails when any finding is an error.
func ValidateWorkflow(ctx context.Context, app *App, workflow string) error {
	g, err := app.Engine.Inspect(ctx, workflow)
	if err != nil {
		return errors.New(domain.DisplayMessage(err))
	}
	findings := validator.ValidateGraph(g)
	for _, f := range findings {
		fmt.Fprintln(stdout, f.String())
	}
	if err := validator.Err(findings); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Workflow %q is valid (%d questions).\n", workflow, g.Len())
	return nil
}
