package sdfx

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chazu/michelangelo/pkg/csg"
	"github.com/chazu/michelangelo/pkg/kernel"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// testCells keeps marching cubes fast in tests.
const testCells = 40

func checkMesh(t *testing.T, mesh *kernel.Mesh) {
	t.Helper()
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != mesh.TriangleCount()*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), mesh.TriangleCount()*3)
	}
}

func TestBox(t *testing.T) {
	k := NewWithCells(testCells)
	box, err := k.Box([3]float64{}, [3]float64{100, 50, 25})
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := k.ToMesh(box)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	checkMesh(t, mesh)
	t.Logf("box triangle count: %d", mesh.TriangleCount())
}

func TestSphere(t *testing.T) {
	k := NewWithCells(testCells)
	s, err := k.Sphere([3]float64{1, 2, 3}, 2)
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := k.ToMesh(s)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	checkMesh(t, mesh)

	// every vertex lies near the sphere surface
	for i := 0; i < len(mesh.Vertices); i += 3 {
		dx := float64(mesh.Vertices[i]) - 1
		dy := float64(mesh.Vertices[i+1]) - 2
		dz := float64(mesh.Vertices[i+2]) - 3
		if r := math.Sqrt(dx*dx + dy*dy + dz*dz); math.Abs(r-2) > 0.15 {
			t.Fatalf("vertex %d at radius %g, want ~2", i/3, r)
		}
	}
}

func TestSphereRejectsZeroRadius(t *testing.T) {
	if _, err := New().Sphere([3]float64{}, 0); err == nil {
		t.Fatal("expected error for zero radius")
	}
}

func TestTranslatedBoundingBox(t *testing.T) {
	k := New()
	box, err := k.Box([3]float64{100, 200, 300}, [3]float64{10, 10, 10})
	if err != nil {
		t.Fatal(err)
	}
	min, max := box.BoundingBox()

	const tol = 0.5
	expectMin := [3]float64{95, 195, 295}
	expectMax := [3]float64{105, 205, 305}

	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], expectMin[i])
		}
		if math.Abs(max[i]-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], expectMax[i])
		}
	}
}

// ball is a field for a sphere of radius r at the origin.
type ball struct{ r float64 }

func (b ball) Distance(p [3]float64) float64 {
	return math.Sqrt(p[0]*p[0]+p[1]*p[1]+p[2]*p[2]) - b.r
}

func (b ball) BoundingBox() (min, max [3]float64) {
	pad := b.r * 1.1
	return [3]float64{-pad, -pad, -pad}, [3]float64{pad, pad, pad}
}

func TestFromField(t *testing.T) {
	k := NewWithCells(testCells)
	s, err := k.FromField(ball{r: 1})
	if err != nil {
		t.Fatal(err)
	}
	min, _ := s.BoundingBox()
	if min != [3]float64{-1.1, -1.1, -1.1} {
		t.Errorf("min = %v", min)
	}
	mesh, err := k.ToMesh(s)
	if err != nil {
		t.Fatal(err)
	}
	checkMesh(t, mesh)
}

func TestFromFieldEmptyBounds(t *testing.T) {
	if _, err := New().FromField(ball{r: 0}); err == nil {
		t.Fatal("expected error for empty bounding box")
	}
}

type foreignSolid struct{}

func (foreignSolid) BoundingBox() (min, max [3]float64) { return }

func TestToMeshForeignSolid(t *testing.T) {
	if _, err := New().ToMesh(foreignSolid{}); err == nil {
		t.Fatal("expected error for a solid from another kernel")
	}
}

func TestNewWithCellsDefault(t *testing.T) {
	if c := NewWithCells(0).Cells(); c != DefaultMeshCells {
		t.Errorf("Cells() = %d, want %d", c, DefaultMeshCells)
	}
}

// The box distance in csg must agree with sdfx's exact box SDF.
func TestBoxDistanceMatchesSdfx(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for trial := 0; trial < 20; trial++ {
		center := v3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		size := v3.Vec{X: rng.Float64()*3 + 0.1, Y: rng.Float64()*3 + 0.1, Z: rng.Float64()*3 + 0.1}
		ref, err := sdf.Box3D(size, 0)
		if err != nil {
			t.Fatal(err)
		}
		ref = sdf.Transform3D(ref, sdf.Translate3d(center))
		prim := csg.Box(center, size)
		for s := 0; s < 100; s++ {
			p := v3.Vec{X: rng.NormFloat64() * 3, Y: rng.NormFloat64() * 3, Z: rng.NormFloat64() * 3}
			if got, want := prim.Distance(p), ref.Evaluate(p); math.Abs(got-want) > 1e-9 {
				t.Fatalf("box %v %v at %v: got %g, sdfx %g", center, size, p, got, want)
			}
		}
	}
}
