package csg

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimNone   PrimitiveKind = iota // no shape; rejected by Insert
	PrimSphere                      // params: cx cy cz r
	PrimBox                         // params: cx cy cz sx sy sz (full edge lengths)
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimNone:
		return "none"
	case PrimSphere:
		return "sphere"
	case PrimBox:
		return "box"
	default:
		return fmt.Sprintf("PrimitiveKind(%d)", int(k))
	}
}

// ParamCount returns the number of parameters a primitive of kind k takes,
// or -1 if the kind has no distance function.
func (k PrimitiveKind) ParamCount() int {
	switch k {
	case PrimSphere:
		return 4
	case PrimBox:
		return 6
	default:
		return -1
	}
}

// Primitive is a leaf shape: a kind plus its flat parameter list.
type Primitive struct {
	Kind   PrimitiveKind `json:"kind"`
	Params []float64     `json:"params"`
}

func (Primitive) nodeData() {}

// Sphere returns a sphere primitive.
func Sphere(center v3.Vec, radius float64) Primitive {
	return Primitive{
		Kind:   PrimSphere,
		Params: []float64{center.X, center.Y, center.Z, radius},
	}
}

// Box returns an axis-aligned box centered at center with the given edge lengths.
func Box(center, size v3.Vec) Primitive {
	return Primitive{
		Kind:   PrimBox,
		Params: []float64{center.X, center.Y, center.Z, size.X, size.Y, size.Z},
	}
}

// Cube returns an axis-aligned cube with edge length edge.
func Cube(center v3.Vec, edge float64) Primitive {
	return Box(center, v3.Vec{X: edge, Y: edge, Z: edge})
}

// Center returns the primitive's center point.
func (p Primitive) Center() v3.Vec {
	if len(p.Params) < 3 {
		return v3.Vec{}
	}
	return v3.Vec{X: p.Params[0], Y: p.Params[1], Z: p.Params[2]}
}

// Distance returns the signed distance from pt to the primitive surface:
// negative inside, zero on the surface, positive outside.
// It panics on kinds that Validate rejects.
func (p Primitive) Distance(pt v3.Vec) float64 {
	switch p.Kind {
	case PrimSphere:
		return pt.Sub(p.Center()).Length() - p.Params[3]
	case PrimBox:
		half := v3.Vec{X: p.Params[3], Y: p.Params[4], Z: p.Params[5]}.MulScalar(0.5)
		q := pt.Sub(p.Center()).Abs().Sub(half)
		return q.Max(v3.Vec{}).Length() + math.Min(q.MaxComponent(), 0)
	}
	panic(fmt.Sprintf("csg: %v: %s", ErrUnsupportedPrimitive, p.Kind))
}

// Validate reports whether the primitive can be evaluated.
func (p Primitive) Validate() error {
	n := p.Kind.ParamCount()
	if n < 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedPrimitive, p.Kind)
	}
	if len(p.Params) != n {
		return fmt.Errorf("%w: %s takes %d params, got %d", ErrInvalidParams, p.Kind, n, len(p.Params))
	}
	for i, v := range p.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s param %d is %v", ErrNonFinite, p.Kind, i, v)
		}
	}
	for i := 3; i < n; i++ {
		if p.Params[i] < 0 {
			return fmt.Errorf("%w: %s size param %d is negative (%g)", ErrInvalidParams, p.Kind, i, p.Params[i])
		}
	}
	return nil
}

// clone returns a copy that shares no storage with p.
func (p Primitive) clone() Primitive {
	params := make([]float64, len(p.Params))
	copy(params, p.Params)
	return Primitive{Kind: p.Kind, Params: params}
}

func (p Primitive) String() string {
	return fmt.Sprintf("%s%v", p.Kind, p.Params)
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// Operation combines the left (base) and right (tool) subtrees of an
// internal node. Blend >= 0 is a union, Blend < 0 a subtraction; |Blend|
// interpolates from the untouched base (0) to the full smooth combination (1).
// Softness is the smooth-min/max kernel radius.
type Operation struct {
	Blend    float64 `json:"blend"`
	Softness float64 `json:"softness"`
}

func (Operation) nodeData() {}

// Union returns a full-strength union with the given softness.
func Union(softness float64) Operation {
	return Operation{Blend: 1, Softness: softness}
}

// Subtract returns a full-strength subtraction with the given softness.
func Subtract(softness float64) Operation {
	return Operation{Blend: -1, Softness: softness}
}

// IsSubtraction reports whether the operation carves the right operand out of the left.
func (op Operation) IsSubtraction() bool {
	return op.Blend < 0
}

// Apply combines the left distance f with the right distance g.
func (op Operation) Apply(f, g float64) float64 {
	if op.Blend >= 0 {
		return Lerp(f, SmoothMin(f, g, op.Softness), op.Blend)
	}
	return Lerp(f, SmoothMax(f, -g, op.Softness), -op.Blend)
}

// Validate rejects non-finite values and negative softness.
func (op Operation) Validate() error {
	if math.IsNaN(op.Blend) || math.IsInf(op.Blend, 0) {
		return fmt.Errorf("%w: blend is %v", ErrNonFinite, op.Blend)
	}
	if math.IsNaN(op.Softness) || math.IsInf(op.Softness, 0) {
		return fmt.Errorf("%w: softness is %v", ErrNonFinite, op.Softness)
	}
	if op.Softness < 0 {
		return fmt.Errorf("%w: %g", ErrNegativeSoftness, op.Softness)
	}
	return nil
}

func (op Operation) String() string {
	name := "union"
	if op.IsSubtraction() {
		name = "subtract"
	}
	return fmt.Sprintf("%s(blend=%g, softness=%g)", name, op.Blend, op.Softness)
}
