// Package backtrack implements the refinement engine's failure-handling
// subsystem: marking a node failed, pruning its descendants, and walking
// ancestors to find the nearest node with an untried method candidate.
package backtrack

import (
	"github.com/latticeplan/htn/graph"
	"github.com/latticeplan/htn/state"
)

// Result is what a Backtrack call hands back to the refinement engine: the
// node the engine should re-enter next, and the state the engine should
// restore before re-entering it.
type Result struct {
	// FrontierParent is the predecessor of RetryNode (or RetryNode itself,
	// for the root-exhausted case — see below).
	FrontierParent int
	// RetryNode is the ancestor selected for retry, or graph.RootID if the
	// walk reached the root without finding one.
	RetryNode int
	// Exhausted is true when the walk reached the root without finding a
	// retry candidate; the engine's termination check surfaces overall
	// failure in that case.
	Exhausted bool
	State     *state.State
}

// Backtrack runs the failure procedure of spec.md §4.5 against failedID,
// starting the ancestor walk from frontierParent (the node whose open-child
// scan most recently failed).
func Backtrack(g *graph.Graph, frontierParent int, failedID int) Result {
	failed := g.Node(failedID)
	if failed != nil {
		failed.Status = graph.Failed
	}
	g.RemoveDescendants(failedID)

	current := frontierParent
	for {
		node := g.Node(current)
		if node == nil {
			return Result{RetryNode: graph.RootID, Exhausted: true}
		}
		if current != graph.RootID && isRetryable(node) {
			g.RemoveDescendants(current)
			node.Status = graph.Open
			pred, ok := g.FindPredecessor(current)
			if !ok {
				pred = graph.RootID
			}
			return Result{FrontierParent: pred, RetryNode: current, State: node.SavedState}
		}
		if current == graph.RootID {
			return Result{RetryNode: graph.RootID, Exhausted: true}
		}
		node.Status = graph.Failed
		parent, ok := g.FindPredecessor(current)
		if !ok {
			return Result{RetryNode: graph.RootID, Exhausted: true}
		}
		current = parent
	}
}

// isRetryable reports whether node is a Task, Goal, or Multigoal with
// untried method candidates remaining — the sole condition under which the
// backtracker treats an ancestor as a viable retry point.
func isRetryable(n *graph.Node) bool {
	switch n.Kind {
	case graph.Task, graph.Goal, graph.Multigoal:
		return n.HasAvailableMethods()
	default:
		return false
	}
}
