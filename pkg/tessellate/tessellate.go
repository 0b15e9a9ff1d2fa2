// Package tessellate turns a CSG tree into triangle meshes using a geometry
// kernel: one mesh for the blended shape and, optionally, one per primitive.
// The tessellator is read-only and never mutates the tree.
package tessellate

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/chazu/michelangelo/pkg/csg"
	"github.com/chazu/michelangelo/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// ShapeName is the name of the mesh of the whole tree.
const ShapeName = "shape"

// Options controls meshing.
type Options struct {
	// Padding grows the tree's bounds by this fraction of their largest
	// extent so the surface never touches the edge of the sampling grid.
	Padding float64
	// Exploded adds one mesh per primitive after the blended shape.
	Exploded bool
	// Names labels the meshes of named leaves.
	Names map[int]string
	// Workers bounds concurrent meshing. Zero means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns 5% padding and no exploded meshes.
func DefaultOptions() Options {
	return Options{Padding: 0.05}
}

// Field is a kernel.Field backed by an optimized snapshot of a tree. It is
// safe for concurrent use; each goroutine borrows its own evaluator.
type Field struct {
	flat     *csg.Flat
	min, max [3]float64
	pool     sync.Pool
}

// NewField optimizes t and pads its bounds by padding times their largest extent.
func NewField(t *csg.Tree, padding float64) (*Field, error) {
	flat, err := csg.Optimize(t)
	if err != nil {
		return nil, err
	}
	bb, err := t.Bounds()
	if err != nil {
		return nil, err
	}
	pad := bb.Size().MaxComponent() * padding
	bb.Min = bb.Min.SubScalar(pad)
	bb.Max = bb.Max.AddScalar(pad)

	f := &Field{
		flat: flat,
		min:  [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z},
		max:  [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z},
	}
	f.pool.New = func() any { return flat.NewEvaluator() }
	return f, nil
}

// Distance evaluates the tree at p.
func (f *Field) Distance(p [3]float64) float64 {
	e := f.pool.Get().(*csg.Evaluator)
	d := e.Eval(v3.Vec{X: p[0], Y: p[1], Z: p[2]})
	f.pool.Put(e)
	return d
}

// BoundingBox returns the padded bounds of the tree.
func (f *Field) BoundingBox() (min, max [3]float64) {
	return f.min, f.max
}

// Tessellate meshes t with k. The first mesh is always the blended shape;
// with opts.Exploded, one mesh per reachable leaf follows in Leaves order.
// Primitives with zero volume produce empty meshes.
func Tessellate(ctx context.Context, t *csg.Tree, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if t == nil || t.Empty() {
		return nil, nil
	}
	field, err := NewField(t, opts.Padding)
	if err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}

	jobs := []func() (*kernel.Mesh, error){
		func() (*kernel.Mesh, error) { return meshField(k, field) },
	}
	if opts.Exploded {
		for _, i := range t.Leaves() {
			prim, _ := t.MustNode(i).Primitive()
			name := opts.Names[i]
			if name == "" {
				name = fmt.Sprintf("%s %d", prim.Kind, i)
			}
			jobs = append(jobs, func() (*kernel.Mesh, error) {
				m, err := meshPrimitive(k, prim)
				if err != nil {
					return nil, fmt.Errorf("leaf %d: %w", i, err)
				}
				m.Name = name
				return m, nil
			})
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	meshes := make([]*kernel.Mesh, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := job()
			if err != nil {
				return err
			}
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tessellate: %w", err)
	}
	meshes[0].Name = ShapeName
	return meshes, nil
}

func meshField(k kernel.Kernel, f *Field) (*kernel.Mesh, error) {
	solid, err := k.FromField(f)
	if err != nil {
		return nil, err
	}
	return k.ToMesh(solid)
}

func meshPrimitive(k kernel.Kernel, p csg.Primitive) (*kernel.Mesh, error) {
	c := p.Center()
	center := [3]float64{c.X, c.Y, c.Z}
	var (
		solid kernel.Solid
		err   error
	)
	switch p.Kind {
	case csg.PrimSphere:
		if p.Params[3] == 0 {
			return &kernel.Mesh{}, nil
		}
		solid, err = k.Sphere(center, p.Params[3])
	case csg.PrimBox:
		size := [3]float64{p.Params[3], p.Params[4], p.Params[5]}
		if size[0] == 0 || size[1] == 0 || size[2] == 0 {
			return &kernel.Mesh{}, nil
		}
		solid, err = k.Box(center, size)
	default:
		return nil, fmt.Errorf("%w: %s", csg.ErrUnsupportedPrimitive, p.Kind)
	}
	if err != nil {
		return nil, err
	}
	return k.ToMesh(solid)
}
