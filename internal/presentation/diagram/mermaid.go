package diagram

import (
	"fmt"
	"strings"

	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/graph"
)

// Overlay contains run state to visualize on the graph.
type Overlay struct {
	Completed []int
	Current   *int
}

// GenerateMermaid produces a Mermaid flowchart of a workflow graph.
// Shapes follow the question type:
// - MultipleChoice: {Rhombus}
// - Checkbox: [/Parallelogram/]
// - Instruction: ([Stadium])
// - Subjective: [Rectangle]
// Sequential fallthrough edges are dotted; dangling links point at a red placeholder.
func GenerateMermaid(g *graph.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	dangling := make(map[int]bool)

	for _, node := range g.Nodes() {
		opener, closer := "[", "]"
		switch node.Type {
		case domain.TypeMultipleChoice:
			opener, closer = "{", "}"
		case domain.TypeCheckbox:
			opener, closer = "[/", "/]"
		case domain.TypeInstruction:
			opener, closer = "([", "])"
		}

		label := fmt.Sprintf("%d. %s", node.ID, escape(node.Text))
		if !node.Required {
			label += " <br/> (optional)"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(node.ID), opener, label, closer)

		for _, e := range g.Edges(node.ID) {
			to := "done"
			if e.To != nil {
				to = nodeID(*e.To)
				if e.Dangling {
					dangling[*e.To] = true
				}
			}

			arrow := "-->"
			switch {
			case e.Rule == graph.RuleSequential:
				arrow = "-.->"
			case e.Label != "":
				arrow = fmt.Sprintf("-- \"%s\" -->", escape(e.Label))
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", nodeID(node.ID), arrow, to)
		}
	}

	sb.WriteString("    done((\"done\"))\n")
	for id := range dangling {
		fmt.Fprintf(&sb, "    %s[\"missing %d\"]\n", nodeID(id), id)
		fmt.Fprintf(&sb, "    style %s stroke:#c62828,stroke-dasharray:4\n", nodeID(id))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef completed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[int]bool)
		for _, id := range overlay.Completed {
			if seen[id] || !g.Has(id) {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s completed;\n", nodeID(id))
		}
		if overlay.Current != nil {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(*overlay.Current))
		}
	}

	return sb.String()
}

func nodeID(id int) string {
	if id < 0 {
		return fmt.Sprintf("qn%d", -id)
	}
	return fmt.Sprintf("q%d", id)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}
