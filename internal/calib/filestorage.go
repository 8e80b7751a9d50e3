package calib

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// fileStorage is the subset of the OpenCV FileStorage XML layout used by the
// dataset: top-level named nodes that are either opencv-matrix blocks or
// scalars.
type fileStorage struct {
	XMLName xml.Name `xml:"opencv_storage"`
	Nodes   []fsNode `xml:",any"`
}

type fsNode struct {
	XMLName xml.Name
	TypeID  string `xml:"type_id,attr"`
	Rows    int    `xml:"rows"`
	Cols    int    `xml:"cols"`
	DT      string `xml:"dt"`
	Data    string `xml:"data"`
	Text    string `xml:",chardata"`
}

func parseFileStorage(r io.Reader) (*fileStorage, error) {
	var doc fileStorage
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse filestorage xml: %w", err)
	}
	return &doc, nil
}

func (f *fileStorage) node(name string) (*fsNode, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].XMLName.Local == name {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// Matrix returns the named opencv-matrix node as a dense matrix.
func (f *fileStorage) Matrix(name string) (*mat.Dense, error) {
	n, ok := f.node(name)
	if !ok {
		return nil, fmt.Errorf("node %q not found", name)
	}
	if n.TypeID != "opencv-matrix" {
		return nil, fmt.Errorf("node %q: type_id %q, want opencv-matrix", name, n.TypeID)
	}
	switch n.DT {
	case "d", "f":
	default:
		return nil, fmt.Errorf("node %q: unsupported element type %q", name, n.DT)
	}
	if n.Rows <= 0 || n.Cols <= 0 {
		return nil, fmt.Errorf("node %q: invalid shape %dx%d", name, n.Rows, n.Cols)
	}

	fields := strings.Fields(n.Data)
	if len(fields) != n.Rows*n.Cols {
		return nil, fmt.Errorf("node %q: %d values for %dx%d matrix", name, len(fields), n.Rows, n.Cols)
	}
	data := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("node %q: element %d: %w", name, i, err)
		}
		data[i] = v
	}
	return mat.NewDense(n.Rows, n.Cols, data), nil
}

// Real returns the named scalar node.
func (f *fileStorage) Real(name string) (float64, error) {
	n, ok := f.node(name)
	if !ok {
		return 0, fmt.Errorf("node %q not found", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(n.Text), 64)
	if err != nil {
		return 0, fmt.Errorf("node %q: %w", name, err)
	}
	return v, nil
}

// Vector3 returns the named matrix node flattened to exactly three values,
// accepting 3×1 and 1×3 layouts.
func (f *fileStorage) Vector3(name string) ([3]float64, error) {
	var out [3]float64
	m, err := f.Matrix(name)
	if err != nil {
		return out, err
	}
	r, c := m.Dims()
	if r*c != 3 || (r != 1 && c != 1) {
		return out, fmt.Errorf("node %q: shape %dx%d, want 3 elements", name, r, c)
	}
	for i := 0; i < 3; i++ {
		if c == 1 {
			out[i] = m.At(i, 0)
		} else {
			out[i] = m.At(0, i)
		}
	}
	return out, nil
}
