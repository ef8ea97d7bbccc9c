package plan

import (
	"fmt"
	"sort"
)

// Graph is the build plan DAG. It is assembled single-threaded by the
// resolver; during execution only node state mutates, via atomics.
type Graph struct {
	Nodes map[string]*Node
}

// New returns an initialized, empty graph.
func New() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// Add inserts a node, initializing its edge maps.
func (g *Graph) Add(n *Node) {
	if n.Deps == nil {
		n.Deps = make(map[string]*Node)
	}
	if n.Dependents == nil {
		n.Dependents = make(map[string]*Node)
	}
	g.Nodes[n.ID] = n
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// AddEdge records that `to` depends on `from`. An error is returned if
// either node is missing or the edge is self-referential.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s", fromID)
	}
	from, ok := g.Nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.Nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.Deps[fromID] = from
	from.Dependents[toID] = to
	return nil
}

// SortedIDs returns every node ID in lexical order.
func (g *Graph) SortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DetectCycles checks the graph for cycles with a classic three-color
// depth-first search, returning the first node found inside one.
func (g *Graph) DetectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.ID] {
			return nil
		}
		if temporary[n.ID] {
			return fmt.Errorf("cycle detected involving node '%s'", n.ID)
		}
		temporary[n.ID] = true
		for _, id := range sortedKeys(n.Dependents) {
			if err := visit(n.Dependents[id]); err != nil {
				return err
			}
		}
		delete(temporary, n.ID)
		permanent[n.ID] = true
		return nil
	}

	for _, id := range g.SortedIDs() {
		if !permanent[id] {
			if err := visit(g.Nodes[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopoLevels groups node IDs by dependency depth: level 0 holds nodes with
// no dependencies, level n nodes whose deepest dependency sits at n-1.
// IDs within a level are sorted, so the result is deterministic for a
// given graph. Plan output is built from these levels.
func (g *Graph) TopoLevels() [][]string {
	depth := make(map[string]int, len(g.Nodes))
	var levelOf func(n *Node) int
	levelOf = func(n *Node) int {
		if d, ok := depth[n.ID]; ok {
			return d
		}
		// Mark in progress; cycles were rejected earlier, this guards
		// against pathological misuse only.
		depth[n.ID] = 0
		max := -1
		for _, dep := range n.Deps {
			if d := levelOf(dep); d > max {
				max = d
			}
		}
		depth[n.ID] = max + 1
		return max + 1
	}

	maxLevel := 0
	for _, n := range g.Nodes {
		if d := levelOf(n); d > maxLevel {
			maxLevel = d
		}
	}
	levels := make([][]string, maxLevel+1)
	for id, d := range depth {
		levels[d] = append(levels[d], id)
	}
	for _, level := range levels {
		sort.Strings(level)
	}
	return levels
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
