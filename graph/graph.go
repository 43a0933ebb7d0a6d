// Package graph implements the planner's solution graph: an arena of nodes
// addressed by integer id, linked into a rooted tree by parent/child edges,
// each carrying the retry and execution bookkeeping the refinement engine
// needs to drive a single deterministic search.
package graph

import (
	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/registry"
	"github.com/latticeplan/htn/state"
)

// Kind classifies a graph node.
type Kind int

const (
	Root Kind = iota
	Task
	Goal
	Multigoal
	Action
	VerifyGoal
	VerifyMultigoal
)

// Status is a node's lifecycle state.
type Status int

const (
	Open Status = iota
	Closed
	Failed
	NotApplicable
)

// RootID is the fixed id of the tree's root node.
const RootID = 0

// Info is the kind-specific payload a node carries. Exactly the fields
// relevant to the node's Kind are populated; the rest are zero.
type Info struct {
	// TaskName/ActionName/Args: Task and Action nodes.
	TaskName   string
	ActionName string
	Args       []string

	// GoalPredicate/GoalSubject/GoalValue: Goal nodes (and the goal a
	// VerifyGoal node re-checks).
	GoalPredicate string
	GoalSubject   state.SubjectKey
	GoalValue     interface{}

	// MultigoalAtoms/MultigoalTag: Multigoal nodes (and the multigoal a
	// VerifyMultigoal node re-checks).
	MultigoalAtoms []registry.GoalAtom
	MultigoalTag   string

	// VerifyTarget is the id of the Goal/Multigoal node a verifier
	// re-validates. Set only on VerifyGoal/VerifyMultigoal nodes.
	VerifyTarget int

	Metadata isotime.PlannerMetadata
}

// Node is one entry of the solution graph arena.
type Node struct {
	ID         int
	Kind       Kind
	Info       Info
	Status     Status
	Successors []int
	SavedState *state.State

	// SelectedMethod is the index into the method list active when this
	// node was expanded, or -1 if no method has been selected yet.
	SelectedMethod            int
	AvailableTaskMethods      []registry.TaskMethod
	AvailableGoalMethods      []registry.GoalMethod
	AvailableMultigoalMethods []registry.MultigoalMethod
	ActionHandler             registry.ActionHandler

	StartTime isotime.Micros
	EndTime   isotime.Micros
	Duration  isotime.Micros
}

// HasAvailableMethods reports whether node still has untried candidates,
// the test the backtracker uses to decide whether an ancestor is a viable
// retry point (spec.md §4.5).
func (n *Node) HasAvailableMethods() bool {
	switch n.Kind {
	case Task:
		return len(n.AvailableTaskMethods) > 0
	case Goal:
		return len(n.AvailableGoalMethods) > 0
	case Multigoal:
		return len(n.AvailableMultigoalMethods) > 0
	default:
		return false
	}
}

// ChildInfo is what a caller supplies to AddChildren before classification;
// it is the same unclassified shape the registry's method bodies produce.
type ChildInfo = registry.ChildSpec

// Graph is the arena of nodes for a single refinement run. It is never
// safe for concurrent use; the refinement engine owns it exclusively.
type Graph struct {
	nodes   map[int]*Node
	nextID  int
	reg     *registry.Registry
}

// New constructs a Graph with only the Root node (id 0, status Open).
func New(reg *registry.Registry) *Graph {
	g := &Graph{nodes: make(map[int]*Node), nextID: 1, reg: reg}
	g.nodes[RootID] = &Node{ID: RootID, Kind: Root, Status: Open, SelectedMethod: -1}
	return g
}

// Node returns the node with the given id, or nil if absent.
func (g *Graph) Node(id int) *Node {
	return g.nodes[id]
}

// AddChildren classifies each ChildInfo by consulting the registry,
// allocates a contiguous id range, links the new nodes under parentID in
// order, and — when parentID is a Goal or Multigoal node — appends a
// trailing VerifyGoal/VerifyMultigoal sentinel after the supplied children.
// It returns the ids of every node appended to parentID's successor list,
// including the sentinel if one was added.
func (g *Graph) AddChildren(parentID int, children []ChildInfo) ([]int, bool) {
	parent := g.nodes[parentID]
	if parent == nil {
		return nil, false
	}

	ids := make([]int, 0, len(children)+1)
	for _, c := range children {
		kind, ok := g.reg.Classify(c)
		if !ok {
			return nil, false
		}
		child := g.newNodeFromSpec(kind, c)
		g.nodes[child.ID] = child
		parent.Successors = append(parent.Successors, child.ID)
		ids = append(ids, child.ID)
	}

	if parent.Kind == Goal {
		v := g.newVerifier(VerifyGoal, parentID)
		g.nodes[v.ID] = v
		parent.Successors = append(parent.Successors, v.ID)
		ids = append(ids, v.ID)
	} else if parent.Kind == Multigoal {
		v := g.newVerifier(VerifyMultigoal, parentID)
		g.nodes[v.ID] = v
		parent.Successors = append(parent.Successors, v.ID)
		ids = append(ids, v.ID)
	}

	return ids, true
}

func (g *Graph) newNodeFromSpec(kind Kind, c ChildInfo) *Node {
	id := g.nextID
	g.nextID++
	n := &Node{ID: id, Kind: kind, Status: Open, SelectedMethod: -1}
	switch kind {
	case Task:
		n.Info = Info{TaskName: c.TaskName, Args: c.Args, Metadata: c.Metadata}
		methods, _ := g.reg.TaskMethods(c.TaskName)
		n.AvailableTaskMethods = append([]registry.TaskMethod(nil), methods...)
	case Action:
		n.Info = Info{ActionName: c.ActionName, Args: c.Args, Metadata: c.Metadata}
		h, _ := g.reg.Action(c.ActionName)
		n.ActionHandler = h
	case Goal:
		n.Info = Info{GoalPredicate: c.GoalPredicate, GoalSubject: c.GoalSubject, GoalValue: c.GoalValue, Metadata: c.Metadata}
		methods, _ := g.reg.GoalMethods(c.GoalPredicate)
		n.AvailableGoalMethods = append([]registry.GoalMethod(nil), methods...)
	case Multigoal:
		n.Info = Info{MultigoalAtoms: c.Multigoal, MultigoalTag: multigoalTag(c.Multigoal), Metadata: c.Metadata}
		methods, _ := g.reg.MultigoalMethods(multigoalTag(c.Multigoal))
		n.AvailableMultigoalMethods = append([]registry.MultigoalMethod(nil), methods...)
	}
	return n
}

// multigoalTag derives the method-table key for an untagged multigoal: the
// predicate of its first component, matching how simple HTN domains key
// multigoal methods when no explicit tag is supplied.
func multigoalTag(atoms []registry.GoalAtom) string {
	if len(atoms) == 0 {
		return ""
	}
	return atoms[0].Predicate
}

func (g *Graph) newVerifier(kind Kind, target int) *Node {
	id := g.nextID
	g.nextID++
	return &Node{ID: id, Kind: kind, Status: Open, SelectedMethod: -1, Info: Info{VerifyTarget: target}}
}

// FindOpenChild returns the first direct successor of parentID whose
// status is Open, or (0, false) if none.
func (g *Graph) FindOpenChild(parentID int) (int, bool) {
	parent := g.nodes[parentID]
	if parent == nil {
		return 0, false
	}
	for _, id := range parent.Successors {
		if child := g.nodes[id]; child != nil && child.Status == Open {
			return id, true
		}
	}
	return 0, false
}

// FindPredecessor linearly scans the arena for the unique node whose
// successor list contains id. It returns (0, false) for the root and for
// an unknown id.
func (g *Graph) FindPredecessor(id int) (int, bool) {
	if id == RootID {
		return 0, false
	}
	for _, n := range g.nodes {
		for _, s := range n.Successors {
			if s == id {
				return n.ID, true
			}
		}
	}
	return 0, false
}

// RemoveDescendants transitively deletes every node reachable from id,
// excluding id itself, and clears id's successor list.
func (g *Graph) RemoveDescendants(id int) {
	n := g.nodes[id]
	if n == nil {
		return
	}
	for _, childID := range n.Successors {
		g.removeSubtree(childID)
	}
	n.Successors = nil
}

func (g *Graph) removeSubtree(id int) {
	n := g.nodes[id]
	if n == nil {
		return
	}
	for _, childID := range n.Successors {
		g.removeSubtree(childID)
	}
	delete(g.nodes, id)
}

// ActionRecord bundles an Action node's dispatch info with the timing it
// accrued on successful execution, as returned by ExtractActions.
type ActionRecord struct {
	Info      Info
	StartTime isotime.Micros
	EndTime   isotime.Micros
	Duration  isotime.Micros
}

// ExtractActions performs a preorder depth-first traversal from root,
// collecting every Closed Action node's info and timing, in the order a
// corresponding execution would have run them. Backtrack prunes an
// abandoned method's children via RemoveDescendants, so a live traversal
// should never reach a stale sibling; the Status == Closed filter is a
// second line of defense against a Failed or still-Open node leaking into
// the externally visible solution plan.
func (g *Graph) ExtractActions(root int) []ActionRecord {
	var out []ActionRecord
	g.extractActions(root, &out)
	return out
}

func (g *Graph) extractActions(id int, out *[]ActionRecord) {
	n := g.nodes[id]
	if n == nil {
		return
	}
	if n.Kind == Action && n.Status == Closed {
		*out = append(*out, ActionRecord{
			Info:      n.Info,
			StartTime: n.StartTime,
			EndTime:   n.EndTime,
			Duration:  n.Duration,
		})
	}
	for _, childID := range n.Successors {
		g.extractActions(childID, out)
	}
}
