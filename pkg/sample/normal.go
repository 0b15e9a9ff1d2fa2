package sample

import (
	"math"

	"github.com/chazu/michelangelo/pkg/csg"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultEpsilon is the finite-difference step for Normal.
const DefaultEpsilon = 0.001

// Normal estimates the unit surface normal at p with forward differences of
// step eps. It returns the zero vector where the field is flat.
func Normal(e *csg.Evaluator, p v3.Vec, eps float64) v3.Vec {
	o := e.Eval(p)
	g := v3.Vec{
		X: e.Eval(v3.Vec{X: p.X + eps, Y: p.Y, Z: p.Z}) - o,
		Y: e.Eval(v3.Vec{X: p.X, Y: p.Y + eps, Z: p.Z}) - o,
		Z: e.Eval(v3.Vec{X: p.X, Y: p.Y, Z: p.Z + eps}) - o,
	}
	l := g.Length()
	if l == 0 {
		return v3.Vec{}
	}
	return g.DivScalar(l)
}

// Hit is the result of a successful March.
type Hit struct {
	T      float64 // distance along the ray
	Point  v3.Vec
	Normal v3.Vec
	Steps  int
}

// MarchOptions bounds a sphere trace.
type MarchOptions struct {
	MaxSteps  int     // default 1000
	MaxT      float64 // default 100
	Threshold float64 // surface hit when |d| <= Threshold; default 0.001
}

func (o MarchOptions) withDefaults() MarchOptions {
	if o.MaxSteps <= 0 {
		o.MaxSteps = 1000
	}
	if o.MaxT <= 0 {
		o.MaxT = 100
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultEpsilon
	}
	return o
}

// March sphere-traces the ray origin + t*dir, stepping by the signed field
// value until it is within opts.Threshold of the surface. A ray starting
// inside the shape walks back to the surface behind it (negative T). dir
// need not be unit length.
func March(e *csg.Evaluator, origin, dir v3.Vec, opts MarchOptions) (Hit, bool) {
	opts = opts.withDefaults()
	l := dir.Length()
	if l == 0 {
		return Hit{}, false
	}
	dir = dir.DivScalar(l)

	t := 0.0
	for step := 1; step <= opts.MaxSteps && t <= opts.MaxT; step++ {
		p := origin.Add(dir.MulScalar(t))
		d := e.Eval(p)
		if math.Abs(d) <= opts.Threshold {
			return Hit{T: t, Point: p, Normal: Normal(e, p, DefaultEpsilon), Steps: step}, true
		}
		t += d
	}
	return Hit{}, false
}
