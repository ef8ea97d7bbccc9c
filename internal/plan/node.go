// Package plan holds the build plan: a DAG of (rule, document) nodes with
// dependency edges, per-node execution state, and deterministic ordering.
package plan

import (
	"sync"
	"sync/atomic"

	"github.com/vk/annogrid/internal/registry"
)

// State is the lifecycle of a plan node. A node is implicitly "ready" when
// it is Pending and all of its dependencies are Done or Pruned; the
// scheduler queues ready nodes for a worker.
type State int32

const (
	// Pending nodes are waiting on dependencies.
	Pending State = iota
	// Running nodes are being executed by a worker.
	Running
	// Done nodes completed and their artifacts are durably persisted.
	Done
	// Failed nodes either errored or were skipped due to an upstream failure.
	Failed
	// Pruned nodes were already fresh; they satisfy dependents without running.
	Pruned
)

// String returns the state name for logs and reports.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Pruned:
		return "pruned"
	}
	return "unknown"
}

// Node is a (rule, document) pairing with its dependency edges. The
// document is empty for corpus-scope nodes.
type Node struct {
	ID       string
	Rule     *registry.Rule
	Document string
	// Inputs and Outputs are the concrete annotation names after class
	// resolution, in declaration order.
	Inputs  []string
	Outputs []string

	Deps       map[string]*Node
	Dependents map[string]*Node

	// Err records why the node failed; written once, before the node's
	// completion is published.
	Err error

	state    atomic.Int32
	depCount atomic.Int32
	// settleOnce gates the node's terminal transition: a node settles as
	// Done or Failed exactly once, no matter how many paths race to it.
	settleOnce sync.Once
}

// NodeID derives a node's identity from its rule and document.
func NodeID(ruleID, doc string) string {
	if doc == "" {
		return ruleID
	}
	return ruleID + "@" + doc
}

// State returns the node's current state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// SetState transitions the node.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// InitCounters sets the pending-dependency counter to the number of
// dependencies that still need to execute. Called once after pruning.
func (n *Node) InitCounters() {
	count := int32(0)
	for _, dep := range n.Deps {
		if dep.State() != Pruned {
			count++
		}
	}
	n.depCount.Store(count)
}

// DecrementDepCount marks one dependency complete and returns the number
// still outstanding.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// DepCount returns the outstanding-dependency count.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// FailOnce settles the node as Failed with err. The callback runs only if
// this call wins the settle, so a skip cascade racing a worker cannot
// double-count a node.
func (n *Node) FailOnce(err error, then func()) {
	n.settleOnce.Do(func() {
		n.SetState(Failed)
		n.Err = err
		if then != nil {
			then()
		}
	})
}

// DoneOnce settles the node as Done. The callback runs only if this call
// wins the settle; if a failure cascade got there first the node stays
// Failed and the callback is dropped.
func (n *Node) DoneOnce(then func()) {
	n.settleOnce.Do(func() {
		n.SetState(Done)
		if then != nil {
			then()
		}
	})
}
