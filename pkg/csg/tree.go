package csg

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Tree is an editable CSG tree stored as an append-only arena. Nodes are
// never removed or reordered; Insert appends nodes and may rewrite the
// attach point in place. The zero value is an empty tree.
//
// A Tree is not safe for concurrent mutation. Evaluation is read-only and may
// run from many goroutines as long as no edit is in flight; use Clone or
// Optimize to hand a frozen snapshot to concurrent readers.
type Tree struct {
	nodes []Node
	root  int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{root: NoNode}
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Empty reports whether the tree has no nodes.
func (t *Tree) Empty() bool {
	return len(t.nodes) == 0
}

// Root returns the root index, or NoNode if the tree is empty.
func (t *Tree) Root() int {
	if len(t.nodes) == 0 {
		return NoNode
	}
	return t.root
}

// Node returns a copy of the node at index i.
func (t *Tree) Node(i int) (Node, error) {
	if err := t.checkIndex(i); err != nil {
		return Node{}, err
	}
	return t.nodes[i].clone(), nil
}

// MustNode returns the node at index i, or panics.
func (t *Tree) MustNode(i int) Node {
	n, err := t.Node(i)
	if err != nil {
		panic(err)
	}
	return n
}

func (t *Tree) checkIndex(i int) error {
	if i < 0 || i >= len(t.nodes) {
		return fmt.Errorf("%w: %d (tree has %d nodes)", ErrIndexOutOfRange, i, len(t.nodes))
	}
	return nil
}

// Insert adds prim to the tree, combined with the node at index at by op,
// and returns the index of the new leaf.
//
//   - On an empty tree, at and op are ignored and prim becomes the root.
//   - If at is the root, a new internal root {old root, prim} is created.
//   - Otherwise at must be a leaf: its primitive moves to a new node and at
//     is rewritten in place into an internal node {moved leaf, prim}.
//
// Every index previously returned stays valid; only at itself changes from
// leaf to internal.
func (t *Tree) Insert(at int, op Operation, prim Primitive) (int, error) {
	if err := prim.Validate(); err != nil {
		return NoNode, err
	}
	index := len(t.nodes)

	if index == 0 {
		t.nodes = append(t.nodes, Node{Parent: NoNode, Children: noChildren, Data: prim.clone()})
		t.root = 0
		return 0, nil
	}

	if err := op.Validate(); err != nil {
		return NoNode, err
	}
	if err := t.checkIndex(at); err != nil {
		return NoNode, err
	}

	if at == t.root {
		t.nodes = append(t.nodes,
			Node{Parent: NoNode, Children: [2]int{at, index + 1}, Data: op},
			Node{Parent: index, Children: noChildren, Data: prim.clone()},
		)
		t.nodes[at].Parent = index
		t.root = index
		return index + 1, nil
	}

	old := t.nodes[at]
	if !old.IsLeaf() {
		return NoNode, fmt.Errorf("%w: node %d is internal and not the root", ErrNotLeaf, at)
	}
	t.nodes = append(t.nodes,
		Node{Parent: at, Children: noChildren, Data: old.Data},
		Node{Parent: at, Children: noChildren, Data: prim.clone()},
	)
	t.nodes[at].Children = [2]int{index, index + 1}
	t.nodes[at].Data = op
	return index + 1, nil
}

// MustInsert is like Insert but panics on error.
func (t *Tree) MustInsert(at int, op Operation, prim Primitive) int {
	i, err := t.Insert(at, op, prim)
	if err != nil {
		panic(err)
	}
	return i
}

// SetPrimitive replaces the primitive of leaf i without changing structure.
func (t *Tree) SetPrimitive(i int, prim Primitive) error {
	if err := t.checkIndex(i); err != nil {
		return err
	}
	if !t.nodes[i].IsLeaf() {
		return fmt.Errorf("%w: node %d", ErrNotLeaf, i)
	}
	if err := prim.Validate(); err != nil {
		return err
	}
	t.nodes[i].Data = prim.clone()
	return nil
}

// SetOperation replaces the operation of internal node i without changing structure.
func (t *Tree) SetOperation(i int, op Operation) error {
	if err := t.checkIndex(i); err != nil {
		return err
	}
	if t.nodes[i].IsLeaf() {
		return fmt.Errorf("csg: node %d is a leaf and has no operation", i)
	}
	if err := op.Validate(); err != nil {
		return err
	}
	t.nodes[i].Data = op
	return nil
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{nodes: make([]Node, len(t.nodes)), root: t.root}
	for i, n := range t.nodes {
		c.nodes[i] = n.clone()
	}
	return c
}

// Eval returns the signed distance of the whole tree at p using a recursive
// walk from the root.
func (t *Tree) Eval(p v3.Vec) (float64, error) {
	if len(t.nodes) == 0 {
		return 0, ErrEmptyTree
	}
	return t.eval(p, t.root), nil
}

// EvalNode evaluates only the subtree rooted at index i.
func (t *Tree) EvalNode(p v3.Vec, i int) (float64, error) {
	if err := t.checkIndex(i); err != nil {
		return 0, err
	}
	return t.eval(p, i), nil
}

func (t *Tree) eval(p v3.Vec, i int) float64 {
	n := &t.nodes[i]
	switch d := n.Data.(type) {
	case Primitive:
		return d.Distance(p)
	case Operation:
		f := t.eval(p, n.Children[0])
		g := t.eval(p, n.Children[1])
		return d.Apply(f, g)
	}
	panic(fmt.Sprintf("csg: node %d has no data", i))
}

// Walk visits every node reachable from the root in post-order
// (left, right, self). Walk stops at the first error fn returns.
func (t *Tree) Walk(fn func(i int, n Node) error) error {
	if len(t.nodes) == 0 {
		return nil
	}
	return t.walk(t.root, fn)
}

func (t *Tree) walk(i int, fn func(i int, n Node) error) error {
	n := t.nodes[i]
	if !n.IsLeaf() {
		if err := t.walk(n.Children[0], fn); err != nil {
			return err
		}
		if err := t.walk(n.Children[1], fn); err != nil {
			return err
		}
	}
	return fn(i, n.clone())
}

// Leaves returns the indices of all reachable leaves in post-order.
func (t *Tree) Leaves() []int {
	var leaves []int
	_ = t.Walk(func(i int, n Node) error {
		if n.IsLeaf() {
			leaves = append(leaves, i)
		}
		return nil
	})
	return leaves
}

// Depth returns the number of nodes on the longest root-to-leaf path.
// An empty tree has depth 0.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	return t.depth(t.root)
}

func (t *Tree) depth(i int) int {
	n := &t.nodes[i]
	if n.IsLeaf() {
		return 1
	}
	return 1 + max(t.depth(n.Children[0]), t.depth(n.Children[1]))
}
