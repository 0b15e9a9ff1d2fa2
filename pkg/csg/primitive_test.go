package csg

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const tol = 1e-9

func TestSphereDistance(t *testing.T) {
	s := Sphere(v3.Vec{}, 1)
	tests := []struct {
		name string
		p    v3.Vec
		want float64
	}{
		{"center", v3.Vec{}, -1},
		{"surface", v3.Vec{X: 1}, 0},
		{"outside", v3.Vec{X: 2}, 1},
		{"diagonal", v3.Vec{X: 3, Y: 4}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Distance(tt.p); math.Abs(got-tt.want) > tol {
				t.Errorf("Distance(%v) = %g, want %g", tt.p, got, tt.want)
			}
		})
	}
}

func TestBoxDistance(t *testing.T) {
	b := Box(v3.Vec{X: 1}, v3.Vec{X: 2, Y: 4, Z: 6})
	tests := []struct {
		name string
		p    v3.Vec
		want float64
	}{
		{"center", v3.Vec{X: 1}, -1},
		{"face", v3.Vec{X: 2}, 0},
		{"outside face", v3.Vec{X: 1, Y: 5}, 3},
		{"outside corner", v3.Vec{X: 2 + 3, Y: 2 + 4, Z: 3}, 5},
		{"inside near z", v3.Vec{X: 1, Z: 2.5}, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Distance(tt.p); math.Abs(got-tt.want) > tol {
				t.Errorf("Distance(%v) = %g, want %g", tt.p, got, tt.want)
			}
		})
	}
}

func TestCubeIsUniformBox(t *testing.T) {
	c := Cube(v3.Vec{Y: 1}, 2)
	if c.Kind != PrimBox {
		t.Fatalf("Cube kind = %v, want box", c.Kind)
	}
	want := []float64{0, 1, 0, 2, 2, 2}
	for i, v := range want {
		if c.Params[i] != v {
			t.Errorf("Params[%d] = %g, want %g", i, c.Params[i], v)
		}
	}
}

func TestPrimitiveValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Primitive
		want error
	}{
		{"sphere ok", Sphere(v3.Vec{}, 1), nil},
		{"box ok", Box(v3.Vec{}, v3.Vec{X: 1, Y: 1, Z: 1}), nil},
		{"none", Primitive{}, ErrUnsupportedPrimitive},
		{"unknown kind", Primitive{Kind: 42, Params: []float64{1}}, ErrUnsupportedPrimitive},
		{"short params", Primitive{Kind: PrimSphere, Params: []float64{0, 0, 0}}, ErrInvalidParams},
		{"negative radius", Sphere(v3.Vec{}, -1), ErrInvalidParams},
		{"negative box size", Box(v3.Vec{}, v3.Vec{X: 1, Y: -1, Z: 1}), ErrInvalidParams},
		{"nan center", Sphere(v3.Vec{X: math.NaN()}, 1), ErrNonFinite},
		{"inf radius", Sphere(v3.Vec{}, math.Inf(1)), ErrNonFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDistancePanicsOnNone(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic evaluating a none primitive")
		}
	}()
	Primitive{}.Distance(v3.Vec{})
}

func TestOperationApply(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		f, g float64
		want float64
	}{
		{"hard union picks min", Union(0), 0.5, -0.25, -0.25},
		{"hard union keeps base", Union(0), -1, 2, -1},
		{"zero blend ignores tool", Operation{Blend: 0}, 0.5, -3, 0.5},
		{"half blend", Operation{Blend: 0.5}, 1, -1, 0},
		{"hard subtraction", Subtract(0), -1, -0.5, 0.5},
		{"subtraction outside tool", Subtract(0), -1, 2, -1},
		{"half subtraction", Operation{Blend: -0.5}, -1, -3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op.Apply(tt.f, tt.g); math.Abs(got-tt.want) > tol {
				t.Errorf("%v.Apply(%g, %g) = %g, want %g", tt.op, tt.f, tt.g, got, tt.want)
			}
		})
	}
}

func TestOperationValidate(t *testing.T) {
	if err := Union(0.1).Validate(); err != nil {
		t.Errorf("Union(0.1).Validate() = %v", err)
	}
	if err := (Operation{Blend: 1, Softness: -0.1}).Validate(); !errors.Is(err, ErrNegativeSoftness) {
		t.Errorf("negative softness: got %v, want ErrNegativeSoftness", err)
	}
	if err := (Operation{Blend: math.NaN()}).Validate(); !errors.Is(err, ErrNonFinite) {
		t.Errorf("NaN blend: got %v, want ErrNonFinite", err)
	}
	// Blend magnitude is not constrained.
	if err := (Operation{Blend: -3}).Validate(); err != nil {
		t.Errorf("blend -3: got %v, want nil", err)
	}
}

func TestKindString(t *testing.T) {
	if PrimSphere.String() != "sphere" || PrimBox.String() != "box" || PrimNone.String() != "none" {
		t.Errorf("unexpected kind strings: %s %s %s", PrimSphere, PrimBox, PrimNone)
	}
	if PrimitiveKind(9).String() != "PrimitiveKind(9)" {
		t.Errorf("unknown kind string = %s", PrimitiveKind(9))
	}
}
