package csg

import "errors"

var (
	// ErrEmptyTree is returned when evaluating or optimizing a tree with no root.
	ErrEmptyTree = errors.New("csg: empty tree")

	// ErrIndexOutOfRange is returned for node indices outside the arena.
	ErrIndexOutOfRange = errors.New("csg: node index out of range")

	// ErrNotLeaf is returned when attaching below a node that is neither a
	// leaf nor the root.
	ErrNotLeaf = errors.New("csg: attach point is not a leaf")

	// ErrUnsupportedPrimitive is returned for primitive kinds with no distance function.
	ErrUnsupportedPrimitive = errors.New("csg: unsupported primitive")

	// ErrInvalidParams is returned when a primitive has the wrong number of
	// parameters or a negative size.
	ErrInvalidParams = errors.New("csg: invalid primitive parameters")

	// ErrNegativeSoftness is returned for operations with softness < 0.
	ErrNegativeSoftness = errors.New("csg: negative softness")

	// ErrNonFinite is returned when a parameter is NaN or infinite.
	ErrNonFinite = errors.New("csg: non-finite value")
)
