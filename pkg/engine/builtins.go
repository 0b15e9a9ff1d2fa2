package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/michelangelo/pkg/csg"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites scene scripts into something zygomys accepts:
//
//  1. :keyword -> "__kw_keyword", so keywords never collide with user
//     variables of the same name.
//  2. base-plate -> base_plate, since zygomys reads a hyphen inside an
//     identifier as subtraction.
//  3. ; comments -> // comments.
//
// String literals are left alone.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters; (- 1 2) stays.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpPrimitive is a shape that has not been inserted yet.
type sexpPrimitive struct {
	prim csg.Primitive
}

func (p *sexpPrimitive) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %v)", p.prim.Kind, p.prim.Params)
}
func (p *sexpPrimitive) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef is the arena index of a node in the tree being built.
type sexpNodeRef struct {
	index int
	name  string // for printing only
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(node %q)", n.name)
	}
	return fmt.Sprintf("(node %d)", n.index)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a finite float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		if math.IsNaN(v.Val) || math.IsInf(v.Val, 0) {
			return 0, fmt.Errorf("expected finite number, got %v", v.Val)
		}
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toNodeRef(s zygo.Sexp) (int, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.index, nil
	}
	return csg.NoNode, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// numbers extracts every element of args as a float64.
func numbers(args []zygo.Sexp) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// centerArg reads :at, defaulting to the origin.
func centerArg(pa kwArgs) (v3.Vec, error) {
	v, ok := pa.kw["at"]
	if !ok {
		return v3.Vec{}, nil
	}
	c, err := toVec3(v)
	if err != nil {
		return v3.Vec{}, fmt.Errorf("at: %w", err)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Tree editing
// ---------------------------------------------------------------------------

// operand resolves the shape being combined: a primitive value or a
// reference to an existing leaf, whose primitive is copied.
func (b *builder) operand(s zygo.Sexp) (csg.Primitive, error) {
	switch v := s.(type) {
	case *sexpPrimitive:
		return v.prim, nil
	case *sexpNodeRef:
		n, err := b.tree.Node(v.index)
		if err != nil {
			return csg.Primitive{}, err
		}
		p, ok := n.Primitive()
		if !ok {
			return csg.Primitive{}, fmt.Errorf("node %d is a combined shape; only primitives can be reused", v.index)
		}
		return p, nil
	}
	return csg.Primitive{}, fmt.Errorf("expected shape, got %T (%s)", s, s.SexpString(nil))
}

// combine implements union and subtract. sign selects the direction; the
// :blend keyword is a magnitude.
func (b *builder) combine(fn string, sign float64, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	if len(pa.positional) != 2 {
		return zygo.SexpNull, fmt.Errorf("%s requires a target node and a shape, got %d arguments", fn, len(pa.positional))
	}
	at, err := toNodeRef(pa.positional[0])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: target: %w", fn, err)
	}
	prim, err := b.operand(pa.positional[1])
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: shape: %w", fn, err)
	}

	op := csg.Operation{Blend: b.defaults.Blend, Softness: b.defaults.Softness}
	if v, ok := pa.kw["blend"]; ok {
		if op.Blend, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: blend: %w", fn, err)
		}
		if op.Blend < 0 {
			return zygo.SexpNull, fmt.Errorf("%s: blend %g is negative; the builtin sets the direction", fn, op.Blend)
		}
	}
	if v, ok := pa.kw["softness"]; ok {
		if op.Softness, err = toFloat64(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: softness: %w", fn, err)
		}
	}
	op.Blend *= sign

	oldRoot := b.tree.Root()
	leaf, err := b.tree.Insert(at, op, prim)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
	}
	if at == oldRoot {
		for n, i := range b.names {
			if i == oldRoot {
				b.names[n] = b.tree.Root()
			}
		}
	}

	ref := &sexpNodeRef{index: leaf}
	if v, ok := pa.kw["name"]; ok {
		if ref.name, err = toString(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: name: %w", fn, err)
		}
		b.names[ref.name] = leaf
	}
	return ref, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the scene builtins into a zygomys environment.
// They edit b's tree during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		v, err := numbers(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
		}
		return &sexpVec3{vec: v3.Vec{X: v[0], Y: v[1], Z: v[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere :at (vec3 0 0 0) :radius 1)  or  (sphere 0 0 0 1)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var prim csg.Primitive
		switch len(pa.positional) {
		case 4:
			v, err := numbers(pa.positional)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
			}
			prim = csg.Sphere(v3.Vec{X: v[0], Y: v[1], Z: v[2]}, v[3])
		case 0:
			c, err := centerArg(pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
			}
			rv, ok := pa.kw["radius"]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("sphere requires :radius")
			}
			r, err := toFloat64(rv)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
			}
			prim = csg.Sphere(c, r)
		default:
			return zygo.SexpNull, fmt.Errorf("sphere takes x y z r or :at and :radius")
		}
		if err := prim.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: %w", err)
		}
		return &sexpPrimitive{prim: prim}, nil
	})

	// -----------------------------------------------------------------------
	// (box :at (vec3 0 0 0) :size (vec3 1 2 3))  or  (box 0 0 0 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var prim csg.Primitive
		switch len(pa.positional) {
		case 6:
			v, err := numbers(pa.positional)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %w", err)
			}
			prim = csg.Box(v3.Vec{X: v[0], Y: v[1], Z: v[2]}, v3.Vec{X: v[3], Y: v[4], Z: v[5]})
		case 0:
			c, err := centerArg(pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %w", err)
			}
			sv, ok := pa.kw["size"]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("box requires :size")
			}
			size, err := toVec3(sv)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			prim = csg.Box(c, size)
		default:
			return zygo.SexpNull, fmt.Errorf("box takes x y z sx sy sz or :at and :size")
		}
		if err := prim.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		return &sexpPrimitive{prim: prim}, nil
	})

	// -----------------------------------------------------------------------
	// (cube :at (vec3 0 0 0) :size 2)  or  (cube 0 0 0 2)
	// -----------------------------------------------------------------------
	env.AddFunction("cube", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var prim csg.Primitive
		switch len(pa.positional) {
		case 4:
			v, err := numbers(pa.positional)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cube: %w", err)
			}
			prim = csg.Cube(v3.Vec{X: v[0], Y: v[1], Z: v[2]}, v[3])
		case 0:
			c, err := centerArg(pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cube: %w", err)
			}
			sv, ok := pa.kw["size"]
			if !ok {
				return zygo.SexpNull, fmt.Errorf("cube requires :size")
			}
			edge, err := toFloat64(sv)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cube: size: %w", err)
			}
			prim = csg.Cube(c, edge)
		default:
			return zygo.SexpNull, fmt.Errorf("cube takes x y z edge or :at and :size")
		}
		if err := prim.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("cube: %w", err)
		}
		return &sexpPrimitive{prim: prim}, nil
	})

	// -----------------------------------------------------------------------
	// (shape (sphere ...) :name "body")
	// Inserts the first primitive as the root.
	// -----------------------------------------------------------------------
	env.AddFunction("shape", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("shape requires exactly one primitive")
		}
		if !b.tree.Empty() {
			return zygo.SexpNull, fmt.Errorf("shape: the tree already has a root; use union or subtract")
		}
		p, ok := pa.positional[0].(*sexpPrimitive)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("shape: expected primitive, got %T (%s)",
				pa.positional[0], pa.positional[0].SexpString(nil))
		}
		i, err := b.tree.Insert(csg.NoNode, csg.Operation{}, p.prim)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shape: %w", err)
		}
		ref := &sexpNodeRef{index: i}
		if v, ok := pa.kw["name"]; ok {
			if ref.name, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("shape: name: %w", err)
			}
			b.names[ref.name] = i
		}
		return ref, nil
	})

	// -----------------------------------------------------------------------
	// (union target (sphere ...) :blend 1 :softness 0.2 :name "ear")
	// (subtract target (sphere ...) :blend 1 :softness 0.2)
	//
	// Both return the new leaf. When target is the root, the root moves up a
	// level: refs held in variables keep pointing at the old subtree, while
	// names bound with :name follow the root. Use (root) for the whole shape.
	// -----------------------------------------------------------------------
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.combine("union", 1, args)
	})
	env.AddFunction("subtract", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return b.combine("subtract", -1, args)
	})

	// -----------------------------------------------------------------------
	// (root)
	// -----------------------------------------------------------------------
	env.AddFunction("root", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.tree.Empty() {
			return zygo.SexpNull, fmt.Errorf("root: the tree is empty")
		}
		return &sexpNodeRef{index: b.tree.Root()}, nil
	})

	// -----------------------------------------------------------------------
	// (node "name")
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a name argument")
		}
		n, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: name: %w", err)
		}
		i, ok := b.names[n]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("node: no node named %q", n)
		}
		return &sexpNodeRef{index: i, name: n}, nil
	})
}
