package scheduler

import (
	"fmt"
	"io"

	"github.com/vk/annogrid/internal/plan"
)

// WritePlan renders a pruned plan without executing it. Nodes are grouped
// by dependency depth and sorted within each group, so the same corpus,
// config and store state always produce byte-identical output.
func WritePlan(w io.Writer, graph *plan.Graph) error {
	toRun := 0
	for _, node := range graph.Nodes {
		if node.State() != plan.Pruned {
			toRun++
		}
	}
	if _, err := fmt.Fprintf(w, "plan: %d nodes, %d to run, %d cached\n", len(graph.Nodes), toRun, len(graph.Nodes)-toRun); err != nil {
		return err
	}

	for i, level := range graph.TopoLevels() {
		if _, err := fmt.Fprintf(w, "stage %d:\n", i); err != nil {
			return err
		}
		for _, id := range level {
			action := "run"
			if graph.Nodes[id].State() == plan.Pruned {
				action = "cached"
			}
			if _, err := fmt.Fprintf(w, "  %-6s %s\n", action, id); err != nil {
				return err
			}
		}
	}
	return nil
}
