// Package csg defines the editable constructive-solid-geometry model for
// Michelangelo. A Tree is an append-only arena of nodes: leaves hold signed
// distance primitives and internal nodes hold smooth blend operations.
// Indices returned by Insert stay valid for the life of the tree.
//
// Optimize rebuilds a tree into topological order (a Flat) so it can be
// evaluated by a single forward pass, which is what renderers and meshers use.
package csg
