package csg

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Flat is an immutable tree in topological order: every node's children
// have smaller indices than the node itself and the root is the last node.
// It is evaluated by a single forward pass with no recursion and is safe for
// concurrent use.
type Flat struct {
	nodes []Node
	remap []int // source tree index -> flat index, NoNode if unreachable
}

// Optimize rebuilds t by a post-order traversal (left, right, self) from
// the root. The result maps old indices to new ones deterministically and
// shares no storage with t.
func Optimize(t *Tree) (*Flat, error) {
	if t.Empty() {
		return nil, ErrEmptyTree
	}
	f := &Flat{
		nodes: make([]Node, 0, len(t.nodes)),
		remap: make([]int, len(t.nodes)),
	}
	for i := range f.remap {
		f.remap[i] = NoNode
	}
	f.append(t, t.root, NoNode)
	return f, nil
}

// append copies subtree i of t and returns its new index.
func (f *Flat) append(t *Tree, i, parent int) int {
	src := t.nodes[i]
	n := Node{Parent: NoNode, Children: noChildren, Data: src.Data}
	if src.IsLeaf() {
		n = n.clone()
	} else {
		n.Children[0] = f.append(t, src.Children[0], NoNode)
		n.Children[1] = f.append(t, src.Children[1], NoNode)
	}
	index := len(f.nodes)
	f.nodes = append(f.nodes, n)
	if !src.IsLeaf() {
		f.nodes[n.Children[0]].Parent = index
		f.nodes[n.Children[1]].Parent = index
	}
	f.remap[i] = index
	return index
}

// Len returns the number of nodes.
func (f *Flat) Len() int {
	return len(f.nodes)
}

// Root returns the root index, always Len()-1.
func (f *Flat) Root() int {
	return len(f.nodes) - 1
}

// Node returns a copy of the node at index i.
func (f *Flat) Node(i int) (Node, error) {
	if i < 0 || i >= len(f.nodes) {
		return Node{}, fmt.Errorf("%w: %d (flat tree has %d nodes)", ErrIndexOutOfRange, i, len(f.nodes))
	}
	return f.nodes[i].clone(), nil
}

// Remap returns the flat index of source tree node old, or NoNode if old was
// not reachable from the source root.
func (f *Flat) Remap(old int) int {
	if old < 0 || old >= len(f.remap) {
		return NoNode
	}
	return f.remap[old]
}

// Tree returns an editable copy of the optimized arena.
func (f *Flat) Tree() *Tree {
	t := &Tree{nodes: make([]Node, len(f.nodes)), root: f.Root()}
	for i, n := range f.nodes {
		t.nodes[i] = n.clone()
	}
	return t
}

// Eval returns the signed distance at p. It allocates a scratch buffer per
// call; hot loops should use an Evaluator.
func (f *Flat) Eval(p v3.Vec) float64 {
	return f.EvalInto(make([]float64, len(f.nodes)), p)
}

// EvalInto evaluates at p using values as scratch space, one slot per node.
// It panics if values is shorter than Len().
func (f *Flat) EvalInto(values []float64, p v3.Vec) float64 {
	values = values[:len(f.nodes)]
	for i := range f.nodes {
		n := &f.nodes[i]
		switch d := n.Data.(type) {
		case Primitive:
			values[i] = d.Distance(p)
		case Operation:
			values[i] = d.Apply(values[n.Children[0]], values[n.Children[1]])
		}
	}
	return values[len(values)-1]
}

// Evaluator owns the scratch buffer for repeated flat evaluation.
// An Evaluator must not be shared between goroutines; create one per worker.
type Evaluator struct {
	flat   *Flat
	values []float64
}

// NewEvaluator returns an Evaluator bound to f.
func (f *Flat) NewEvaluator() *Evaluator {
	return &Evaluator{flat: f, values: make([]float64, len(f.nodes))}
}

// Eval returns the signed distance at p.
func (e *Evaluator) Eval(p v3.Vec) float64 {
	return e.flat.EvalInto(e.values, p)
}

// Value returns the distance computed for node i by the last Eval call.
func (e *Evaluator) Value(i int) float64 {
	return e.values[i]
}
