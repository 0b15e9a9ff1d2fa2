// Package scene reads and writes the line-oriented edit log that describes a
// CSG tree as a sequence of inserts.
//
// Two line forms are accepted and may be mixed in one file. The named form
// binds shapes to identifiers:
//
//	body  = sphere 0 0 0 1
//	body += 1 0.2 box 0 1 0 0.5 0.5 0.5
//	body -= 0.3 sphere 0 0 1 0.4
//	hole  = cube 0 0 0 0.2
//	body -= hole
//
// The index-addressed form names its attach point by arena index, with -1
// meaning the current root:
//
//	-1 0 0 sphere 0 0 0 1
//	-1 1 0.2 cube 0 1 0 0.5
//
// Everything after '#' is a comment.
package scene

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/michelangelo/pkg/csg"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ParseError reports a problem on one line of an edit log.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options supplies the operation used by named lines that omit one.
type Options struct {
	Blend    float64 // magnitude; the operator picks the sign
	Softness float64
}

// DefaultOptions returns a full-strength hard blend.
func DefaultOptions() Options {
	return Options{Blend: 1}
}

// Scene is a parsed edit log: the tree plus the names bound to its nodes.
type Scene struct {
	Tree  *csg.Tree
	Names map[string]int
}

// Lookup returns the node index bound to name.
func (s *Scene) Lookup(name string) (int, bool) {
	i, ok := s.Names[name]
	return i, ok
}

// SortedNames returns the bound names in lexical order.
func (s *Scene) SortedNames() []string {
	names := make([]string, 0, len(s.Names))
	for n := range s.Names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load parses the edit log at path.
func Load(path string, opts Options) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer f.Close()
	s, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("scene: %s: %w", path, err)
	}
	return s, nil
}

// ParseString parses an edit log held in memory.
func ParseString(src string, opts Options) (*Scene, error) {
	return Parse(strings.NewReader(src), opts)
}

// Parse reads an edit log, calling Insert once per shape line. It stops at
// the first bad line and returns a *ParseError.
func Parse(r io.Reader, opts Options) (*Scene, error) {
	p := &parser{
		opts:      opts,
		tree:      csg.New(),
		names:     map[string]int{},
		templates: map[string]csg.Primitive{},
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if err := p.parseLine(fields); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scene: read: %w", err)
	}
	return &Scene{Tree: p.tree, Names: p.names}, nil
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// paramCounts maps primitive keywords to their parameter counts.
var paramCounts = map[string]int{
	"sphere": 4,
	"cube":   4,
	"box":    6,
}

type parser struct {
	opts Options
	tree *csg.Tree
	line int

	names map[string]int
	// templates are primitives named after the root exists; they enter the
	// tree the first time they appear on the right of += or -=.
	templates map[string]csg.Primitive
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) wrap(err error, format string, args ...any) error {
	return &ParseError{Line: p.line, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (p *parser) parseLine(fields []string) error {
	if parent, err := strconv.Atoi(fields[0]); err == nil {
		return p.indexed(parent, fields[1:])
	}
	if len(fields) < 2 {
		return p.errorf("expected NAME = SHAPE, NAME += SHAPE or NAME -= SHAPE")
	}
	name, op, rest := fields[0], fields[1], fields[2:]
	if !validName(name) {
		return p.errorf("invalid name %q", name)
	}
	switch op {
	case "=":
		return p.define(name, rest)
	case "+=":
		return p.combine(name, 1, rest)
	case "-=":
		return p.combine(name, -1, rest)
	default:
		return p.errorf("unknown operator %q", op)
	}
}

// indexed handles PARENT BLEND SOFTNESS KIND PARAMS...
func (p *parser) indexed(parent int, fields []string) error {
	if len(fields) < 3 {
		return p.errorf("expected PARENT BLEND SOFTNESS KIND PARAMS...")
	}
	blend, err := p.number(fields[0], "blend")
	if err != nil {
		return err
	}
	softness, err := p.number(fields[1], "softness")
	if err != nil {
		return err
	}
	prim, err := p.primitive(fields[2:])
	if err != nil {
		return err
	}
	at := parent
	if at == -1 {
		at = p.tree.Root()
	}
	if _, err := p.tree.Insert(at, csg.Operation{Blend: blend, Softness: softness}, prim); err != nil {
		return p.wrap(err, "insert at %d", parent)
	}
	return nil
}

func (p *parser) define(name string, rest []string) error {
	if len(rest) == 0 {
		return p.errorf("missing shape after %s =", name)
	}
	if _, ok := paramCounts[rest[0]]; ok {
		prim, err := p.primitive(rest)
		if err != nil {
			return err
		}
		if p.tree.Empty() {
			i, err := p.tree.Insert(csg.NoNode, csg.Operation{}, prim)
			if err != nil {
				return p.wrap(err, "insert %s", name)
			}
			p.bind(name, i)
			return nil
		}
		if err := prim.Validate(); err != nil {
			return p.wrap(err, "define %s", name)
		}
		delete(p.names, name)
		p.templates[name] = prim
		return nil
	}

	if len(rest) != 1 {
		return p.errorf("unexpected %q after %s", strings.Join(rest[1:], " "), rest[0])
	}
	ref := rest[0]
	if i, ok := p.names[ref]; ok {
		p.bind(name, i)
		return nil
	}
	if t, ok := p.templates[ref]; ok {
		delete(p.names, name)
		p.templates[name] = t
		return nil
	}
	return p.errorf("undefined name %q", ref)
}

func (p *parser) combine(name string, sign float64, rest []string) error {
	at, ok := p.names[name]
	if !ok {
		if _, tmpl := p.templates[name]; tmpl {
			return p.errorf("%s is not in the tree yet; combine it into another shape first", name)
		}
		return p.errorf("undefined name %q", name)
	}

	blend, softness := p.opts.Blend, p.opts.Softness
	if len(rest) > 0 {
		if b, err := strconv.ParseFloat(rest[0], 64); err == nil {
			if len(rest) < 2 {
				return p.errorf("blend %s must be followed by a softness", rest[0])
			}
			s, err := p.number(rest[1], "softness")
			if err != nil {
				return err
			}
			blend, softness = b, s
			rest = rest[2:]
		}
	}
	if blend < 0 {
		return p.errorf("blend %g is negative; use -= to subtract", blend)
	}

	prim, from, err := p.operand(rest)
	if err != nil {
		return err
	}
	oldRoot := p.tree.Root()
	leaf, err := p.tree.Insert(at, csg.Operation{Blend: sign * blend, Softness: softness}, prim)
	if err != nil {
		return p.wrap(err, "combine into %s", name)
	}
	if at == oldRoot {
		// The root moved up a level; names that meant "the whole shape" follow it.
		for n, i := range p.names {
			if i == oldRoot {
				p.names[n] = p.tree.Root()
			}
		}
	}
	if from != "" {
		p.bind(from, leaf)
	}
	return nil
}

// operand resolves the right-hand side of += and -=. from is set when the
// operand was a template, which is then bound to the new leaf.
func (p *parser) operand(rest []string) (prim csg.Primitive, from string, err error) {
	if len(rest) == 0 {
		return prim, "", p.errorf("missing shape")
	}
	if _, ok := paramCounts[rest[0]]; ok {
		prim, err = p.primitive(rest)
		return prim, "", err
	}
	if len(rest) != 1 {
		return prim, "", p.errorf("unexpected %q after %s", strings.Join(rest[1:], " "), rest[0])
	}
	ref := rest[0]
	if t, ok := p.templates[ref]; ok {
		return t, ref, nil
	}
	i, ok := p.names[ref]
	if !ok {
		return prim, "", p.errorf("undefined name %q", ref)
	}
	prim, ok = p.tree.MustNode(i).Primitive()
	if !ok {
		return prim, "", p.errorf("%s is a combined shape; only primitives can be reused", ref)
	}
	return prim, "", nil
}

func (p *parser) bind(name string, i int) {
	delete(p.templates, name)
	p.names[name] = i
}

// primitive parses KIND PARAMS...
func (p *parser) primitive(fields []string) (csg.Primitive, error) {
	kind := fields[0]
	want, ok := paramCounts[kind]
	if !ok {
		return csg.Primitive{}, p.errorf("unknown primitive %q", kind)
	}
	if got := len(fields) - 1; got != want {
		return csg.Primitive{}, p.errorf("%s takes %d parameters, got %d", kind, want, got)
	}
	v := make([]float64, want)
	for i, f := range fields[1:] {
		x, err := p.number(f, fmt.Sprintf("%s parameter %d", kind, i+1))
		if err != nil {
			return csg.Primitive{}, err
		}
		v[i] = x
	}
	center := v3.Vec{X: v[0], Y: v[1], Z: v[2]}
	switch kind {
	case "sphere":
		return csg.Sphere(center, v[3]), nil
	case "cube":
		return csg.Cube(center, v[3]), nil
	default:
		return csg.Box(center, v3.Vec{X: v[3], Y: v[4], Z: v[5]}), nil
	}
}

func (p *parser) number(s, what string) (float64, error) {
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, p.errorf("%s: %q is not a number", what, s)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, p.wrap(csg.ErrNonFinite, "%s", what)
	}
	return x, nil
}

func validName(s string) bool {
	if _, reserved := paramCounts[s]; reserved {
		return false
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return false // inf, nan
	}
	return namePattern.MatchString(s)
}
