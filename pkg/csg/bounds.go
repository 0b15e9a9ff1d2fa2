package csg

import (
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Bounds returns an axis-aligned box containing every point where the tree's
// distance is negative. Unions grow by a quarter of their softness (the
// deepest a smooth minimum dips below the hard one); subtractions never grow
// past their base operand. An extrapolating union (blend > 1) is negative
// wherever the tool is sufficiently closer than the base, so its box grows by
// blend times twice the operands' combined span.
func (t *Tree) Bounds() (sdf.Box3, error) {
	if len(t.nodes) == 0 {
		return sdf.Box3{}, ErrEmptyTree
	}
	return t.bounds(t.root), nil
}

func (t *Tree) bounds(i int) sdf.Box3 {
	n := &t.nodes[i]
	switch d := n.Data.(type) {
	case Primitive:
		return d.Bounds()
	case Operation:
		left := t.bounds(n.Children[0])
		if d.IsSubtraction() || d.Blend == 0 {
			return left
		}
		right := t.bounds(n.Children[1])
		box := sdf.Box3{Min: left.Min.Min(right.Min), Max: left.Max.Max(right.Max)}
		pad := d.Softness * 0.25
		if d.Blend > 1 {
			pad = d.Blend * (2*box.Size().Length() + pad)
		}
		box.Min = box.Min.SubScalar(pad)
		box.Max = box.Max.AddScalar(pad)
		return box
	}
	return sdf.Box3{}
}

// Bounds returns the primitive's axis-aligned bounding box.
func (p Primitive) Bounds() sdf.Box3 {
	c := p.Center()
	var half v3.Vec
	switch p.Kind {
	case PrimSphere:
		r := p.Params[3]
		half = v3.Vec{X: r, Y: r, Z: r}
	case PrimBox:
		half = v3.Vec{X: p.Params[3], Y: p.Params[4], Z: p.Params[5]}.MulScalar(0.5)
	}
	return sdf.Box3{Min: c.Sub(half), Max: c.Add(half)}
}
