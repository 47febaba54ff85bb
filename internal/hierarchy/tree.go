package hierarchy

import (
	"github.com/miradorstack/mirador-rcm/internal/utils"
)

const opTree = "hierarchy"

// NodeID indexes a node in its Tree.
type NodeID int

// NoParent marks a root.
const NoParent NodeID = -1

// Node is one system, subsystem or component.
type Node struct {
	ID       NodeID `json:"id"`
	Key      string `json:"key"`
	SystemID string `json:"systemId"`
	Name     string `json:"name"`
	Parent   NodeID `json:"parent"`
}

// Tree is an arena of nodes with a child adjacency list. Node IDs are stable for the life of
// the tree. Not safe for concurrent mutation.
type Tree struct {
	nodes    []Node
	children [][]NodeID
	byKey    map[string]NodeID
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{byKey: make(map[string]NodeID)}
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) (Node, bool) {
	if !t.valid(id) {
		return Node{}, false
	}
	return t.nodes[id], true
}

// Lookup resolves a node key.
func (t *Tree) Lookup(key string) (NodeID, bool) {
	id, ok := t.byKey[key]
	return id, ok
}

func (t *Tree) valid(id NodeID) bool { return id >= 0 && int(id) < len(t.nodes) }

// Add inserts a node under parent, or as a root when parent is NoParent. Keys are unique and a
// parent must belong to the same system.
func (t *Tree) Add(key, systemID, name string, parent NodeID) (NodeID, error) {
	if key == "" {
		return NoParent, utils.Validation(opTree, "key", key, "node key is required")
	}
	if _, dup := t.byKey[key]; dup {
		return NoParent, utils.InvariantViolation(opTree, "key", key, "node key already exists")
	}
	if parent != NoParent {
		if !t.valid(parent) {
			return NoParent, utils.Validation(opTree, "parent", parent, "unknown parent node")
		}
		if t.nodes[parent].SystemID != systemID {
			return NoParent, utils.InvariantViolation(opTree, "parent", t.nodes[parent].Key, "parent belongs to another system")
		}
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{ID: id, Key: key, SystemID: systemID, Name: name, Parent: parent})
	t.children = append(t.children, nil)
	t.byKey[key] = id
	if parent != NoParent {
		t.children[parent] = append(t.children[parent], id)
	}
	return id, nil
}

// Reparent moves id under parent. A node cannot become its own ancestor.
func (t *Tree) Reparent(id, parent NodeID) error {
	if !t.valid(id) {
		return utils.Validation(opTree, "id", id, "unknown node")
	}
	if parent != NoParent {
		if !t.valid(parent) {
			return utils.Validation(opTree, "parent", parent, "unknown parent node")
		}
		if parent == id || t.isAncestor(id, parent) {
			return utils.InvariantViolation(opTree, "parent", t.nodes[parent].Key, "node cannot be its own parent or ancestor")
		}
		if t.nodes[parent].SystemID != t.nodes[id].SystemID {
			return utils.InvariantViolation(opTree, "parent", t.nodes[parent].Key, "parent belongs to another system")
		}
	}

	if old := t.nodes[id].Parent; old != NoParent {
		siblings := t.children[old]
		for i, c := range siblings {
			if c == id {
				t.children[old] = append(siblings[:i:i], siblings[i+1:]...)
				break
			}
		}
	}
	t.nodes[id].Parent = parent
	if parent != NoParent {
		t.children[parent] = append(t.children[parent], id)
	}
	return nil
}

// isAncestor reports whether a is an ancestor of b.
func (t *Tree) isAncestor(a, b NodeID) bool {
	for p := t.nodes[b].Parent; p != NoParent; p = t.nodes[p].Parent {
		if p == a {
			return true
		}
	}
	return false
}

// Children returns the direct children of id in insertion order.
func (t *Tree) Children(id NodeID) []NodeID {
	if !t.valid(id) {
		return nil
	}
	return append([]NodeID(nil), t.children[id]...)
}

// Roots returns every node without a parent.
func (t *Tree) Roots() []NodeID {
	var out []NodeID
	for _, n := range t.nodes {
		if n.Parent == NoParent {
			out = append(out, n.ID)
		}
	}
	return out
}

// Walk visits the subtree under root depth first, parents before children. Returning an error
// from fn stops the walk.
func (t *Tree) Walk(root NodeID, fn func(n Node, depth int) error) error {
	if !t.valid(root) {
		return utils.Validation(opTree, "root", root, "unknown node")
	}
	type frame struct {
		id    NodeID
		depth int
	}
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fn(t.nodes[f.id], f.depth); err != nil {
			return err
		}
		kids := t.children[f.id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{kids[i], f.depth + 1})
		}
	}
	return nil
}

// postOrder returns the subtree under root with every child before its parent.
func (t *Tree) postOrder(root NodeID) []NodeID {
	var pre []NodeID
	_ = t.Walk(root, func(n Node, _ int) error {
		pre = append(pre, n.ID)
		return nil
	})
	// a reversed preorder lists every node after all of its descendants
	out := make([]NodeID, len(pre))
	for i, id := range pre {
		out[len(pre)-1-i] = id
	}
	return out
}
