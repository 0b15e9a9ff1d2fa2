package csg

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func vecNear(a, b v3.Vec) bool {
	return a.Sub(b).Length() < tol
}

func TestBoundsPrimitives(t *testing.T) {
	bb := Sphere(v3.Vec{X: 1}, 2).Bounds()
	if bb.Min != (v3.Vec{X: -1, Y: -2, Z: -2}) || bb.Max != (v3.Vec{X: 3, Y: 2, Z: 2}) {
		t.Errorf("sphere bounds = %v", bb)
	}
	bb = Box(v3.Vec{}, v3.Vec{X: 2, Y: 4, Z: 6}).Bounds()
	if bb.Min != (v3.Vec{X: -1, Y: -2, Z: -3}) || bb.Max != (v3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("box bounds = %v", bb)
	}
}

func TestBoundsOperations(t *testing.T) {
	tr := New()
	if _, err := tr.Bounds(); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("Bounds(empty) = %v", err)
	}
	a := tr.MustInsert(NoNode, Operation{}, unitSphere())
	tr.MustInsert(a, Union(0.4), Sphere(v3.Vec{X: 4}, 1))
	bb, err := tr.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if !vecNear(bb.Min, v3.Vec{X: -1.1, Y: -1.1, Z: -1.1}) || !vecNear(bb.Max, v3.Vec{X: 5.1, Y: 1.1, Z: 1.1}) {
		t.Errorf("union bounds = %v", bb)
	}

	sub := New()
	b := sub.MustInsert(NoNode, Operation{}, unitSphere())
	sub.MustInsert(b, Subtract(0.5), Sphere(v3.Vec{X: 4}, 3))
	bb, _ = sub.Bounds()
	if bb.Min != (v3.Vec{X: -1, Y: -1, Z: -1}) || bb.Max != (v3.Vec{X: 1, Y: 1, Z: 1}) {
		t.Errorf("subtraction bounds = %v, want the base sphere's", bb)
	}
}

func TestBoundsContainInterior(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 30; trial++ {
		tr := randomTree(rng, 1+rng.Intn(10))
		bb, err := tr.Bounds()
		if err != nil {
			t.Fatal(err)
		}
		for s := 0; s < 500; s++ {
			p := v3.Vec{X: rng.Float64()*6 - 3, Y: rng.Float64()*6 - 3, Z: rng.Float64()*6 - 3}
			d, _ := tr.Eval(p)
			if d >= 0 {
				continue
			}
			if p.X < bb.Min.X || p.Y < bb.Min.Y || p.Z < bb.Min.Z ||
				p.X > bb.Max.X || p.Y > bb.Max.Y || p.Z > bb.Max.Z {
				t.Fatalf("trial %d: interior point %v (d=%g) outside bounds %v", trial, p, d, bb)
			}
		}
	}
}

func TestBoundsExtrapolatedUnion(t *testing.T) {
	// With blend 2 the union of spheres at 0 and 4 stays negative along +x
	// until x = 9, far past the hard union's box.
	tr := New()
	a := tr.MustInsert(NoNode, Operation{}, unitSphere())
	tr.MustInsert(a, Operation{Blend: 2}, Sphere(v3.Vec{X: 4}, 1))
	bb, err := tr.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	for x := -12.0; x <= 12; x += 0.25 {
		p := v3.Vec{X: x}
		d, _ := tr.Eval(p)
		if d < 0 && !inBox(p, bb) {
			t.Fatalf("eval(%v) = %g but bounds are %v", p, d, bb)
		}
	}
	if d, _ := tr.Eval(v3.Vec{X: 5.5}); d >= 0 {
		t.Fatalf("eval(5.5,0,0) = %g, want negative", d)
	}

	// Extrapolated subtraction never leaves its base.
	sub := New()
	b := sub.MustInsert(NoNode, Operation{}, unitSphere())
	sub.MustInsert(b, Operation{Blend: -3, Softness: 0.5}, Sphere(v3.Vec{X: 1}, 1))
	bb, _ = sub.Bounds()
	if bb.Min != (v3.Vec{X: -1, Y: -1, Z: -1}) || bb.Max != (v3.Vec{X: 1, Y: 1, Z: 1}) {
		t.Errorf("subtraction bounds = %v, want the base sphere's", bb)
	}
}

func TestBoundsContainExtrapolatedInterior(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 30; trial++ {
		tr := randomTree(rng, 1+rng.Intn(6))
		tool := Sphere(v3.Vec{X: rng.Float64()*4 - 2, Y: rng.Float64()*4 - 2}, 0.2+rng.Float64()*0.5)
		op := Operation{Blend: 1 + rng.Float64()*2, Softness: rng.Float64() * 0.5}
		tr.MustInsert(tr.Root(), op, tool)
		bb, err := tr.Bounds()
		if err != nil {
			t.Fatal(err)
		}
		for s := 0; s < 2000; s++ {
			p := v3.Vec{X: rng.Float64()*16 - 8, Y: rng.Float64()*16 - 8, Z: rng.Float64()*16 - 8}
			if d, _ := tr.Eval(p); d < 0 && !inBox(p, bb) {
				t.Fatalf("trial %d (%v): interior point %v (d=%g) outside bounds %v", trial, op, p, d, bb)
			}
		}
	}
}

func inBox(p v3.Vec, bb sdf.Box3) bool {
	return p.X >= bb.Min.X && p.Y >= bb.Min.Y && p.Z >= bb.Min.Z &&
		p.X <= bb.Max.X && p.Y <= bb.Max.Y && p.Z <= bb.Max.Z
}
