package scheduler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vk/annogrid/internal/plan"
)

// RuleExecutionError is a failed annotator invocation. It is contained to
// its node and the nodes depending on it; unrelated branches keep running.
type RuleExecutionError struct {
	Rule     string
	Document string
	Err      error
}

// Error implements the error interface.
func (e *RuleExecutionError) Error() string {
	if e.Document == "" {
		return fmt.Sprintf("rule %s failed: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("rule %s failed on document %s: %v", e.Rule, e.Document, e.Err)
}

// Unwrap exposes the annotator's own error.
func (e *RuleExecutionError) Unwrap() error {
	return e.Err
}

// SkippedError marks a node that never ran because something upstream
// failed. It is a symptom, not a root cause; reports separate the two.
type SkippedError struct {
	Upstream string
}

// Error implements the error interface.
func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of '%s'", e.Upstream)
}

// NodeError pairs a failed node with its root-cause error.
type NodeError struct {
	Node string
	Err  error
}

// Report is the outcome of one scheduler run.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Pruned    int
	// RootCauses lists genuinely failed nodes with their errors, sorted by
	// node ID. Skipped nodes are counted but not listed here.
	RootCauses []NodeError
}

// OK reports whether every node either succeeded or was pruned.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Skipped == 0
}

// buildReport classifies every node of a settled graph.
func buildReport(graph *plan.Graph) *Report {
	report := &Report{Total: len(graph.Nodes)}
	for _, id := range graph.SortedIDs() {
		node := graph.Nodes[id]
		switch node.State() {
		case plan.Done:
			report.Succeeded++
		case plan.Pruned:
			report.Pruned++
		case plan.Failed:
			var skipped *SkippedError
			if errors.As(node.Err, &skipped) {
				report.Skipped++
				continue
			}
			report.Failed++
			report.RootCauses = append(report.RootCauses, NodeError{Node: node.ID, Err: node.Err})
		}
	}
	sort.Slice(report.RootCauses, func(i, j int) bool {
		return report.RootCauses[i].Node < report.RootCauses[j].Node
	})
	return report
}
