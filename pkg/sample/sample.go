// Package sample evaluates a frozen flat tree at many points from many
// goroutines. Every worker owns a csg.Evaluator, so the tree is shared
// read-only and no value buffer is ever shared.
package sample

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chazu/michelangelo/pkg/csg"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"golang.org/x/sync/errgroup"
)

// chunk is the number of points a worker evaluates between context checks.
const chunk = 4096

// Grid is a regular lattice of N[0]*N[1]*N[2] points spanning Min..Max
// inclusive. Points are ordered x fastest, then y, then z.
type Grid struct {
	Min, Max v3.Vec
	N        [3]int
}

// Len returns the number of lattice points.
func (g Grid) Len() int {
	if g.N[0] <= 0 || g.N[1] <= 0 || g.N[2] <= 0 {
		return 0
	}
	return g.N[0] * g.N[1] * g.N[2]
}

// Point returns the i-th lattice point.
func (g Grid) Point(i int) v3.Vec {
	x := i % g.N[0]
	y := (i / g.N[0]) % g.N[1]
	z := i / (g.N[0] * g.N[1])
	return v3.Vec{
		X: axis(g.Min.X, g.Max.X, x, g.N[0]),
		Y: axis(g.Min.Y, g.Max.Y, y, g.N[1]),
		Z: axis(g.Min.Z, g.Max.Z, z, g.N[2]),
	}
}

func axis(lo, hi float64, i, n int) float64 {
	if n == 1 {
		return (lo + hi) / 2
	}
	return csg.Lerp(lo, hi, float64(i)/float64(n-1))
}

// Points evaluates f at every point using up to workers goroutines
// (GOMAXPROCS when workers <= 0). out[i] is the distance at pts[i].
func Points(ctx context.Context, f *csg.Flat, pts []v3.Vec, workers int) ([]float64, error) {
	out := make([]float64, len(pts))
	err := run(ctx, f, len(pts), workers, func(e *csg.Evaluator, i int) {
		out[i] = e.Eval(pts[i])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Lattice evaluates f at every point of g.
func Lattice(ctx context.Context, f *csg.Flat, g Grid, workers int) ([]float64, error) {
	out := make([]float64, g.Len())
	err := run(ctx, f, len(out), workers, func(e *csg.Evaluator, i int) {
		out[i] = e.Eval(g.Point(i))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// run splits [0,n) into chunks and hands them to workers, each with its own
// evaluator.
func run(ctx context.Context, f *csg.Flat, n, workers int, fn func(e *csg.Evaluator, i int)) error {
	if f == nil || f.Len() == 0 {
		return csg.ErrEmptyTree
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunks := (n + chunk - 1) / chunk
	if workers > chunks {
		workers = chunks
	}

	next := make(chan int)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(next)
		for c := 0; c < chunks; c++ {
			select {
			case next <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			e := f.NewEvaluator()
			for c := range next {
				if err := ctx.Err(); err != nil {
					return err
				}
				end := min((c+1)*chunk, n)
				for i := c * chunk; i < end; i++ {
					fn(e, i)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sample: %w", err)
	}
	return nil
}
