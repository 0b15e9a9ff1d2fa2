package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/michelangelo/pkg/config"
	"github.com/chazu/michelangelo/pkg/csg"
	"github.com/chazu/michelangelo/pkg/engine"
	"github.com/chazu/michelangelo/pkg/kernel"
	"github.com/chazu/michelangelo/pkg/kernel/sdfx"
	"github.com/chazu/michelangelo/pkg/scene"
	"github.com/chazu/michelangelo/pkg/tessellate"
)

// colorPalette assigns distinct colors to meshes in JSON output.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// App ties the front ends, the tessellator and the kernel together.
type App struct {
	cfg    config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	log    *slog.Logger
}

// MeshData is the JSON mesh format written by `mesh -o FILE.json`.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
}

// ErrorData is a line-addressed diagnostic. Line 0 means the whole file.
type ErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e ErrorData) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Result is the outcome of evaluating one scene file.
type Result struct {
	Scene    *scene.Scene   `json:"-"`
	Meshes   []MeshData     `json:"meshes"`
	Errors   []ErrorData    `json:"errors"`
	Warnings []ErrorData    `json:"warnings"`
	raw      []*kernel.Mesh // kernel meshes, kept for STL output
}

// NewApp creates an App whose engine and kernel follow cfg.
func NewApp(cfg config.Config, logger *slog.Logger) *App {
	eng := engine.NewEngine()
	eng.Timeout = cfg.Eval.Timeout
	eng.Defaults = sceneOptions(cfg)
	return &App{
		cfg:    cfg,
		engine: eng,
		kernel: sdfx.NewWithCells(cfg.Mesh.Cells),
		log:    logger,
	}
}

func sceneOptions(cfg config.Config) scene.Options {
	return scene.Options{Blend: cfg.Defaults.Blend, Softness: cfg.Defaults.Softness}
}

// isScript reports whether name should be read by the Lisp engine rather
// than the edit-log parser.
func isScript(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".lisp", ".zy":
		return true
	}
	return false
}

// Parse builds a scene from source. Diagnostics tied to the input are
// returned as ErrorData; the error is reserved for fatal failures.
func (a *App) Parse(name, source string) (*scene.Scene, []ErrorData, error) {
	if isScript(name) {
		s, evalErrs, err := a.engine.Evaluate(source)
		if err != nil {
			return nil, nil, err
		}
		if len(evalErrs) > 0 {
			out := make([]ErrorData, len(evalErrs))
			for i, e := range evalErrs {
				out[i] = ErrorData{Line: e.Line, Col: e.Col, Message: e.Message}
			}
			return nil, out, nil
		}
		return s, nil, nil
	}

	s, err := scene.ParseString(source, sceneOptions(a.cfg))
	var perr *scene.ParseError
	if errors.As(err, &perr) {
		msg := perr.Msg
		if perr.Err != nil {
			msg += ": " + perr.Err.Error()
		}
		return nil, []ErrorData{{Line: perr.Line, Message: msg}}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// Load reads and parses the scene file at path. Diagnostics become errors
// prefixed with the path.
func (a *App) Load(path string) (*scene.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, diags, err := a.Parse(path, string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(diags) > 0 {
		errs := make([]error, len(diags))
		for i, d := range diags {
			errs[i] = fmt.Errorf("%s: %s", path, d)
		}
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// Evaluate parses source, validates the tree and tessellates it.
func (a *App) Evaluate(ctx context.Context, name, source string) Result {
	result := Result{
		Meshes:   []MeshData{},
		Errors:   []ErrorData{},
		Warnings: []ErrorData{},
	}

	s, diags, err := a.Parse(name, source)
	if err != nil {
		a.log.Error("evaluate failed", "file", name, "error", err)
		result.Errors = append(result.Errors, ErrorData{Message: err.Error()})
		return result
	}
	if len(diags) > 0 {
		result.Errors = append(result.Errors, diags...)
		return result
	}
	result.Scene = s

	for _, f := range csg.Validate(s.Tree) {
		d := ErrorData{Message: f.Error()}
		if f.Severity == csg.SeverityError {
			result.Errors = append(result.Errors, d)
		} else {
			result.Warnings = append(result.Warnings, d)
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	meshes, err := tessellate.Tessellate(ctx, s.Tree, a.kernel, a.tessellateOptions(s))
	if err != nil {
		a.log.Error("tessellate failed", "file", name, "error", err)
		result.Errors = append(result.Errors, ErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}
	result.raw = meshes
	for i, m := range meshes {
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Name:     m.Name,
			Color:    colorPalette[i%len(colorPalette)],
		})
	}
	a.log.Debug("tessellated", "file", name, "nodes", s.Tree.Len(), "meshes", len(meshes))
	return result
}

func (a *App) tessellateOptions(s *scene.Scene) tessellate.Options {
	opts := tessellate.Options{
		Padding:  a.cfg.Mesh.Padding,
		Exploded: a.cfg.Mesh.Exploded,
		Workers:  a.cfg.Eval.Workers,
	}
	if len(s.Names) > 0 {
		// A node can carry several names; label it with the first in order.
		opts.Names = make(map[int]string, len(s.Names))
		for _, n := range s.SortedNames() {
			if _, taken := opts.Names[s.Names[n]]; !taken {
				opts.Names[s.Names[n]] = n
			}
		}
	}
	return opts
}

// namesByNode inverts a scene's name table for display.
func namesByNode(s *scene.Scene) map[int][]string {
	out := make(map[int][]string, len(s.Names))
	for n, i := range s.Names {
		out[i] = append(out[i], n)
	}
	for _, names := range out {
		sort.Strings(names)
	}
	return out
}
