// Package kernel defines the abstract geometry kernel interface.
// Implementations turn distance fields and primitive shapes into triangle
// meshes. The kernel abstraction allows swapping backends without changing
// the rest of the system.
package kernel

// Field is a signed distance function: negative inside, zero on the
// surface, positive outside. Distance must be safe for concurrent use.
type Field interface {
	Distance(p [3]float64) float64
	// BoundingBox returns a box containing every point where Distance < 0.
	BoundingBox() (min, max [3]float64)
}

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Primitives, centered on center.
	Sphere(center [3]float64, radius float64) (Solid, error)
	Box(center, size [3]float64) (Solid, error)

	// FromField wraps an arbitrary distance field.
	FromField(f Field) (Solid, error)

	// Mesh output
	ToMesh(s Solid) (*Mesh, error)
}
