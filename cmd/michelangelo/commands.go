package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chazu/michelangelo/pkg/csg"
	"github.com/chazu/michelangelo/pkg/kernel"
	"github.com/chazu/michelangelo/pkg/sample"
	"github.com/chazu/michelangelo/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/spf13/cobra"
)

// ---------------------------------------------------------------------------
// eval
// ---------------------------------------------------------------------------

func (c *cli) evalCmd() *cobra.Command {
	var (
		recursive bool
		normal    bool
		node      string
		march     []float64
	)
	cmd := &cobra.Command{
		Use:   "eval [flags] FILE X Y Z [X Y Z...]",
		Short: "Print the signed distance from points to the scene",
		Long: `Print the signed distance at each point, one line per point.

Flags go before FILE so that negative coordinates are read as numbers.`,
		Example: `  michelangelo eval scene.csg 0 -1.5 0
  michelangelo eval --normal scene.csg 1 0 0 0 1 0
  michelangelo eval --march 0,0,1 scene.lisp 0 0 -5`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 4 || (len(args)-1)%3 != 0 {
				return fmt.Errorf("want FILE followed by one or more X Y Z triples, got %d args", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.app().Load(args[0])
			if err != nil {
				return err
			}
			pts, err := parsePoints(args[1:])
			if err != nil {
				return err
			}

			var ds []float64
			switch {
			case node != "":
				i, err := resolveNode(s, node)
				if err != nil {
					return err
				}
				if ds, err = evalEach(pts, func(p v3.Vec) (float64, error) { return s.Tree.EvalNode(p, i) }); err != nil {
					return err
				}
			case recursive:
				if ds, err = evalEach(pts, s.Tree.Eval); err != nil {
					return err
				}
			default:
				flat, err := csg.Optimize(s.Tree)
				if err != nil {
					return err
				}
				if ds, err = sample.Points(cmd.Context(), flat, pts, c.cfg.Eval.Workers); err != nil {
					return err
				}
			}

			var e *csg.Evaluator
			if normal || march != nil {
				flat, err := csg.Optimize(s.Tree)
				if err != nil {
					return err
				}
				e = flat.NewEvaluator()
			}
			out := cmd.OutOrStdout()
			for i, p := range pts {
				fmt.Fprintf(out, "%g\n", ds[i])
				if normal {
					n := sample.Normal(e, p, sample.DefaultEpsilon)
					fmt.Fprintf(out, "normal %g %g %g\n", n.X, n.Y, n.Z)
				}
				if march != nil {
					dir := v3.Vec{X: march[0], Y: march[1], Z: march[2]}
					hit, ok := sample.March(e, p, dir, sample.MarchOptions{})
					if !ok {
						fmt.Fprintln(out, "miss")
						continue
					}
					fmt.Fprintf(out, "hit %g at %g %g %g\n", hit.T, hit.Point.X, hit.Point.Y, hit.Point.Z)
				}
			}
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&recursive, "recursive", false, "walk the tree instead of the optimized form")
	cmd.Flags().StringVar(&node, "node", "", "evaluate the subtree at this index or name")
	cmd.Flags().BoolVar(&normal, "normal", false, "also print the estimated surface normal")
	cmd.Flags().Float64SliceVar(&march, "march", nil, "sphere-trace from each point along DX,DY,DZ and print the hit")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if march != nil && len(march) != 3 {
			return fmt.Errorf("--march wants DX,DY,DZ, got %d values", len(march))
		}
		return nil
	}
	return cmd
}

func parsePoints(args []string) ([]v3.Vec, error) {
	pts := make([]v3.Vec, 0, len(args)/3)
	for i := 0; i+3 <= len(args); i += 3 {
		var xyz [3]float64
		for j, a := range args[i : i+3] {
			v, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, fmt.Errorf("coordinate %q: %w", a, err)
			}
			xyz[j] = v
		}
		pts = append(pts, v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return pts, nil
}

func evalEach(pts []v3.Vec, eval func(v3.Vec) (float64, error)) ([]float64, error) {
	out := make([]float64, len(pts))
	for i, p := range pts {
		d, err := eval(p)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// resolveNode accepts a scene name or an arena index.
func resolveNode(s *scene.Scene, ref string) (int, error) {
	if i, ok := s.Lookup(ref); ok {
		return i, nil
	}
	i, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("no node named %q", ref)
	}
	return i, nil
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func (c *cli) inspectCmd() *cobra.Command {
	var optimize bool
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the node table, bounds and validation findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.app().Load(args[0])
			if err != nil {
				return err
			}
			t := s.Tree
			names := namesByNode(s)
			if optimize && !t.Empty() {
				flat, err := csg.Optimize(t)
				if err != nil {
					return err
				}
				t, names = flat.Tree(), remapNames(flat, names)
			}
			return inspect(cmd.OutOrStdout(), t, names)
		},
	}
	cmd.Flags().BoolVar(&optimize, "optimize", false, "show the optimized (post-order) layout")
	return cmd
}

// remapNames moves names onto the optimized layout, dropping names of nodes
// the flat tree does not carry.
func remapNames(flat *csg.Flat, names map[int][]string) map[int][]string {
	out := make(map[int][]string, len(names))
	for i, n := range names {
		if j := flat.Remap(i); j != csg.NoNode {
			out[j] = n
		}
	}
	return out
}

func inspect(w io.Writer, t *csg.Tree, names map[int][]string) error {
	if t.Empty() {
		fmt.Fprintln(w, "empty tree")
		return nil
	}
	fmt.Fprintf(w, "nodes %d  root %d  depth %d\n", t.Len(), t.Root(), t.Depth())
	if bb, err := t.Bounds(); err == nil {
		fmt.Fprintf(w, "bounds (%g %g %g) (%g %g %g)\n",
			bb.Min.X, bb.Min.Y, bb.Min.Z, bb.Max.X, bb.Max.Y, bb.Max.Z)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tPARENT\tCHILDREN\tDATA\tNAMES")
	for i := 0; i < t.Len(); i++ {
		n := t.MustNode(i)
		children := "-"
		if !n.IsLeaf() {
			children = fmt.Sprintf("%d %d", n.Left(), n.Right())
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%v\t%s\n", i, n.Parent, children, n.Data, strings.Join(names[i], ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	findings := csg.Validate(t)
	if len(findings) == 0 {
		fmt.Fprintln(w, "valid")
		return nil
	}
	for _, f := range findings {
		fmt.Fprintln(w, f.Error())
	}
	if csg.HasErrors(findings) {
		return errors.New("tree has validation errors")
	}
	return nil
}

// ---------------------------------------------------------------------------
// fmt
// ---------------------------------------------------------------------------

func (c *cli) fmtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fmt FILE",
		Short: "Print the index-addressed edit log that rebuilds the scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.app().Load(args[0])
			if err != nil {
				return err
			}
			return scene.Format(cmd.OutOrStdout(), s.Tree)
		},
	}
}

// ---------------------------------------------------------------------------
// mesh
// ---------------------------------------------------------------------------

func (c *cli) meshCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "mesh FILE -o OUT",
		Short: "Tessellate the scene to STL or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.applyMeshFlags(cmd); err != nil {
				return err
			}
			r, err := c.mesh(cmd.Context(), args[0], out)
			if err != nil {
				return err
			}
			c.log.Info("wrote mesh", "out", out, "meshes", len(r.Meshes))
			return nil
		},
	}
	addMeshFlags(cmd, &out)
	return cmd
}

func addMeshFlags(cmd *cobra.Command, out *string) {
	cmd.Flags().StringVarP(out, "output", "o", "", "output file (.stl or .json)")
	cmd.Flags().Int("cells", 0, "marching cubes cells along the longest axis")
	cmd.Flags().Bool("exploded", false, "add one mesh per primitive")
	_ = cmd.MarkFlagRequired("output")
}

// applyMeshFlags copies explicitly set mesh flags over the configuration.
func (c *cli) applyMeshFlags(cmd *cobra.Command) error {
	if cmd.Flags().Changed("cells") {
		c.cfg.Mesh.Cells, _ = cmd.Flags().GetInt("cells")
	}
	if cmd.Flags().Changed("exploded") {
		c.cfg.Mesh.Exploded, _ = cmd.Flags().GetBool("exploded")
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("mesh flags: %w", err)
	}
	return nil
}

// mesh evaluates the scene at in and writes it to out.
func (c *cli) mesh(ctx context.Context, in, out string) (Result, error) {
	if err := checkOutput(out); err != nil {
		return Result{}, err
	}
	source, err := os.ReadFile(in)
	if err != nil {
		return Result{}, err
	}
	r := c.app().Evaluate(ctx, in, string(source))
	for _, w := range r.Warnings {
		c.log.Warn(w.String(), "file", in)
	}
	if len(r.Errors) > 0 {
		errs := make([]error, len(r.Errors))
		for i, e := range r.Errors {
			errs[i] = fmt.Errorf("%s: %s", in, e)
		}
		return r, errors.Join(errs...)
	}
	return r, writeResult(out, r)
}

func checkOutput(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl", ".json":
		return nil
	}
	return fmt.Errorf("unsupported output %q: want .stl or .json", path)
}

func writeResult(path string, r Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		enc := json.NewEncoder(f)
		return enc.Encode(r)
	}
	return kernel.WriteSTL(f, r.raw...)
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

func (c *cli) watchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "watch FILE -o OUT",
		Short: "Re-mesh the scene every time the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.applyMeshFlags(cmd); err != nil {
				return err
			}
			if err := checkOutput(out); err != nil {
				return err
			}
			return c.watch(cmd.Context(), args[0], out)
		},
	}
	addMeshFlags(cmd, &out)
	return cmd
}

// ---------------------------------------------------------------------------
// sample
// ---------------------------------------------------------------------------

func (c *cli) sampleCmd() *cobra.Command {
	var res int
	cmd := &cobra.Command{
		Use:   "sample FILE",
		Short: "Sample the scene on a lattice over its bounds and estimate its volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if res < 2 {
				return fmt.Errorf("--res must be at least 2, got %d", res)
			}
			s, err := c.app().Load(args[0])
			if err != nil {
				return err
			}
			flat, err := csg.Optimize(s.Tree)
			if err != nil {
				return err
			}
			bb, err := s.Tree.Bounds()
			if err != nil {
				return err
			}
			grid := sample.Grid{Min: bb.Min, Max: bb.Max, N: [3]int{res, res, res}}
			ds, err := sample.Lattice(cmd.Context(), flat, grid, c.cfg.Eval.Workers)
			if err != nil {
				return err
			}
			st := summarize(ds)
			cell := bb.Size().DivScalar(float64(res - 1))
			volume := cell.X * cell.Y * cell.Z * float64(st.inside)
			fmt.Fprintf(cmd.OutOrStdout(), "grid %dx%dx%d  inside %d  min %g  max %g  volume %g\n",
				res, res, res, st.inside, st.min, st.max, volume)
			return nil
		},
	}
	cmd.Flags().IntVar(&res, "res", 32, "lattice points along each axis")
	return cmd
}

type latticeStats struct {
	inside   int
	min, max float64
}

func summarize(ds []float64) latticeStats {
	st := latticeStats{min: math.Inf(1), max: math.Inf(-1)}
	for _, d := range ds {
		if d < 0 {
			st.inside++
		}
		st.min = math.Min(st.min, d)
		st.max = math.Max(st.max, d)
	}
	return st
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
