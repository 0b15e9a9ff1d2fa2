package kernel

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`     // which shape or primitive this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// stlHeaderSize is the fixed header length of a binary STL file.
const stlHeaderSize = 80

// WriteSTL writes meshes as one binary STL solid. Facet normals are the
// average of the triangle's vertex normals.
func WriteSTL(w io.Writer, meshes ...*Mesh) error {
	var count int
	for _, m := range meshes {
		if len(m.Indices)%3 != 0 {
			return fmt.Errorf("kernel: mesh %q has %d indices, not a multiple of 3", m.Name, len(m.Indices))
		}
		count += m.TriangleCount()
	}
	if uint64(count) > math.MaxUint32 {
		return fmt.Errorf("kernel: %d triangles do not fit in an STL file", count)
	}

	bw := bufio.NewWriter(w)
	var header [stlHeaderSize]byte
	copy(header[:], "michelangelo")
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(count)); err != nil {
		return err
	}

	// normal, three vertices, attribute byte count
	var facet [12]float32
	for _, m := range meshes {
		for t := 0; t < len(m.Indices); t += 3 {
			facet = [12]float32{}
			for j := 0; j < 3; j++ {
				v := int(m.Indices[t+j]) * 3
				if v+2 >= len(m.Vertices) {
					return fmt.Errorf("kernel: mesh %q index %d out of range", m.Name, m.Indices[t+j])
				}
				copy(facet[3+j*3:6+j*3], m.Vertices[v:v+3])
				if v+2 < len(m.Normals) {
					facet[0] += m.Normals[v] / 3
					facet[1] += m.Normals[v+1] / 3
					facet[2] += m.Normals[v+2] / 3
				}
			}
			if err := binary.Write(bw, binary.LittleEndian, facet); err != nil {
				return err
			}
			if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
