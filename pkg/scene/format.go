package scene

import (
	"bufio"
	"io"
	"strconv"

	"github.com/chazu/michelangelo/pkg/csg"
)

// Format writes an index-addressed edit log that rebuilds t when parsed.
// The rebuilt tree has the same shape and operations as t, so it evaluates
// identically, but its arena indices may differ. An empty tree writes nothing.
func Format(w io.Writer, t *csg.Tree) error {
	if t.Empty() {
		return nil
	}
	f := &formatter{src: t, dst: csg.New(), w: bufio.NewWriter(w)}
	first := f.leftmost(t.Root())
	f.emit(csg.NoNode, csg.Operation{}, first)
	if _, err := f.dst.Insert(csg.NoNode, csg.Operation{}, first); err != nil {
		return err
	}
	if err := f.replay(t.Root(), f.dst.Root()); err != nil {
		return err
	}
	return f.w.Flush()
}

// formatter replays src into dst, writing one line per Insert. Each
// subtree is grown from a leaf already holding its leftmost primitive.
type formatter struct {
	src *csg.Tree
	dst *csg.Tree
	w   *bufio.Writer
	buf []byte
}

func (f *formatter) replay(i, at int) error {
	n := f.src.MustNode(i)
	op, ok := n.Operation()
	if !ok {
		return nil
	}
	tool := f.leftmost(n.Right())
	wasRoot := at == f.dst.Root()
	parent := at
	if wasRoot {
		parent = csg.NoNode
	}
	f.emit(parent, op, tool)
	leaf, err := f.dst.Insert(at, op, tool)
	if err != nil {
		return err
	}
	base := at
	if !wasRoot {
		base = leaf - 1
	}
	if err := f.replay(n.Left(), base); err != nil {
		return err
	}
	return f.replay(n.Right(), leaf)
}

func (f *formatter) leftmost(i int) csg.Primitive {
	for {
		n := f.src.MustNode(i)
		if p, ok := n.Primitive(); ok {
			return p
		}
		i = n.Left()
	}
}

func (f *formatter) emit(parent int, op csg.Operation, p csg.Primitive) {
	b := f.buf[:0]
	b = strconv.AppendInt(b, int64(parent), 10)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, op.Blend, 'g', -1, 64)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, op.Softness, 'g', -1, 64)
	b = append(b, ' ')
	b = append(b, p.Kind.String()...)
	for _, x := range p.Params {
		b = append(b, ' ')
		b = strconv.AppendFloat(b, x, 'g', -1, 64)
	}
	b = append(b, '\n')
	f.w.Write(b)
	f.buf = b
}
