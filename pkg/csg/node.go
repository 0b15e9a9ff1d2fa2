package csg

// NoNode marks an absent parent, child or root.
const NoNode = -1

var noChildren = [2]int{NoNode, NoNode}

// NodeData is the payload of a node: either a Primitive (leaf) or an
// Operation (internal node).
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}

// Node is one element of the tree arena.
type Node struct {
	Parent   int      `json:"parent"`   // NoNode for the root
	Children [2]int   `json:"children"` // {left, right}; {NoNode, NoNode} for leaves
	Data     NodeData `json:"data"`
}

// IsLeaf reports whether the node holds a primitive.
func (n Node) IsLeaf() bool {
	_, ok := n.Data.(Primitive)
	return ok
}

// Primitive returns the node's primitive if it is a leaf.
func (n Node) Primitive() (Primitive, bool) {
	p, ok := n.Data.(Primitive)
	return p, ok
}

// Operation returns the node's operation if it is internal.
func (n Node) Operation() (Operation, bool) {
	op, ok := n.Data.(Operation)
	return op, ok
}

// Left returns the index of the base operand.
func (n Node) Left() int { return n.Children[0] }

// Right returns the index of the tool operand.
func (n Node) Right() int { return n.Children[1] }

// clone deep-copies primitive parameters so callers can't alias arena storage.
func (n Node) clone() Node {
	if p, ok := n.Data.(Primitive); ok {
		n.Data = p.clone()
	}
	return n
}
