package csg

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a validation finding makes a tree
// unusable or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // tree cannot be evaluated safely
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Node     int                // offending node, NoNode if tree-level
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Node == NoNode {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %d: %s", e.Severity, e.Node, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs structural and numeric checks on t and returns every
// finding. An empty slice means the tree is well formed. Validate is
// read-only. Trees built only through Insert always pass the structural
// checks; Validate exists for trees assembled by other means and for tests.
func Validate(t *Tree) []ValidationError {
	if len(t.nodes) == 0 {
		return nil
	}
	var errs []ValidationError
	errs = append(errs, validateRoot(t.nodes, t.root)...)
	if HasErrors(errs) {
		return errs
	}
	errs = append(errs, validateNodes(t.nodes)...)
	if HasErrors(errs) {
		return errs
	}
	errs = append(errs, validateShape(t.nodes, t.root)...)
	errs = append(errs, validateParams(t.nodes)...)
	return errs
}

// ValidateFlat checks the topological order invariant in addition to the
// checks Validate performs.
func ValidateFlat(f *Flat) []ValidationError {
	errs := Validate(&Tree{nodes: f.nodes, root: f.Root()})
	for i, n := range f.nodes {
		if n.IsLeaf() {
			continue
		}
		for _, c := range n.Children {
			if c >= i {
				errs = append(errs, ValidationError{
					Node:     i,
					Message:  fmt.Sprintf("child %d is not before its parent", c),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

func validateRoot(nodes []Node, root int) []ValidationError {
	if root < 0 || root >= len(nodes) {
		return []ValidationError{{
			Node:     NoNode,
			Message:  fmt.Sprintf("root %d is out of range (%d nodes)", root, len(nodes)),
			Severity: SeverityError,
		}}
	}
	if nodes[root].Parent != NoNode {
		return []ValidationError{{
			Node:     root,
			Message:  fmt.Sprintf("root has parent %d", nodes[root].Parent),
			Severity: SeverityError,
		}}
	}
	return nil
}

// validateNodes checks that leaves have no children and internal nodes
// reference two distinct in-range children other than themselves.
func validateNodes(nodes []Node) []ValidationError {
	var errs []ValidationError
	for i, n := range nodes {
		switch n.Data.(type) {
		case Primitive:
			if n.Children != noChildren {
				errs = append(errs, ValidationError{
					Node:     i,
					Message:  fmt.Sprintf("leaf has children %v", n.Children),
					Severity: SeverityError,
				})
			}
		case Operation:
			for _, c := range n.Children {
				if c < 0 || c >= len(nodes) {
					errs = append(errs, ValidationError{
						Node:     i,
						Message:  fmt.Sprintf("child reference %d does not exist", c),
						Severity: SeverityError,
					})
				} else if c == i {
					errs = append(errs, ValidationError{
						Node:     i,
						Message:  "node is its own child",
						Severity: SeverityError,
					})
				}
			}
			if n.Children[0] == n.Children[1] {
				errs = append(errs, ValidationError{
					Node:     i,
					Message:  fmt.Sprintf("both children are node %d", n.Children[0]),
					Severity: SeverityError,
				})
			}
		default:
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  "node has no data",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateShape walks from the root checking that the structure is a tree:
// no cycles, no node with two parents, parent pointers agree with children.
// Nodes unreachable from the root are reported as warnings.
func validateShape(nodes []Node, root int) []ValidationError {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(nodes))
	var errs []ValidationError

	var visit func(i, parent int) bool // returns false to stop
	visit = func(i, parent int) bool {
		switch color[i] {
		case gray:
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  "cycle detected",
				Severity: SeverityError,
			})
			return false
		case black:
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  fmt.Sprintf("node is shared: reached again from %d", parent),
				Severity: SeverityError,
			})
			return false
		}
		color[i] = gray
		n := nodes[i]
		if parent != NoNode && n.Parent != parent {
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  fmt.Sprintf("parent pointer is %d, reached from %d", n.Parent, parent),
				Severity: SeverityWarning,
			})
		}
		if !n.IsLeaf() {
			for _, c := range n.Children {
				if !visit(c, i) {
					return false
				}
			}
		}
		color[i] = black
		return true
	}
	visit(root, NoNode)

	if HasErrors(errs) {
		return errs
	}
	for i := range nodes {
		if color[i] == white {
			errs = append(errs, ValidationError{
				Node:     i,
				Message:  "node is not reachable from the root (orphan)",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateParams re-checks primitive and operation values and flags
// suspicious but legal settings.
func validateParams(nodes []Node) []ValidationError {
	var errs []ValidationError
	for i, n := range nodes {
		switch d := n.Data.(type) {
		case Primitive:
			if err := d.Validate(); err != nil {
				errs = append(errs, ValidationError{Node: i, Message: err.Error(), Severity: SeverityError})
				continue
			}
			if d.Kind == PrimSphere && d.Params[3] == 0 {
				errs = append(errs, ValidationError{
					Node:     i,
					Message:  "sphere has zero radius",
					Severity: SeverityWarning,
				})
			}
		case Operation:
			if err := d.Validate(); err != nil {
				errs = append(errs, ValidationError{Node: i, Message: err.Error(), Severity: SeverityError})
				continue
			}
			if math.Abs(d.Blend) > 1 {
				errs = append(errs, ValidationError{
					Node:     i,
					Message:  fmt.Sprintf("blend %g is outside [-1, 1] and extrapolates", d.Blend),
					Severity: SeverityWarning,
				})
			}
			if d.Blend == 0 {
				errs = append(errs, ValidationError{
					Node:     i,
					Message:  "blend is 0; the right operand has no effect",
					Severity: SeverityWarning,
				})
			}
		}
	}
	return errs
}
