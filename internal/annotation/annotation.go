// Package annotation decodes per-frame multi-view annotation documents.
//
// A frame document is a JSON object keyed "C1".."CN" (one-based camera
// numbers), each holding the objects annotated in that camera's view.
package annotation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/multiviewc/internal/bbox"
	"github.com/banshee-data/multiviewc/internal/monitoring"
)

var logf = monitoring.Component("annotation")

// Object is one annotated object in one camera view.
type Object struct {
	ID        string    `json:"CowID"`
	Action    string    `json:"action"`
	Location  []float64 `json:"location"`
	Rotation  float64   `json:"rotation"`
	Dimension []float64 `json:"dimension"`
	Visible   bool      `json:"visible"`
}

// Pose converts the record into a bbox.ObjectPose. Location and dimension
// must have three components each.
func (o Object) Pose() (bbox.ObjectPose, error) {
	if len(o.Location) != 3 {
		return bbox.ObjectPose{}, fmt.Errorf("object %s: location has %d components, want 3", o.ID, len(o.Location))
	}
	if len(o.Dimension) != 3 {
		return bbox.ObjectPose{}, fmt.Errorf("object %s: dimension has %d components, want 3", o.ID, len(o.Dimension))
	}
	return bbox.ObjectPose{
		Location:    r3.Vec{X: o.Location[0], Y: o.Location[1], Z: o.Location[2]},
		RotationDeg: o.Rotation,
		Dimension: bbox.Dimension{
			Length: o.Dimension[0],
			Width:  o.Dimension[1],
			Height: o.Dimension[2],
		},
		Visible: o.Visible,
	}, nil
}

// Frame holds one time step's annotations for every camera.
type Frame struct {
	Index int
	// Views maps zero-based camera index to that camera's objects in
	// document order.
	Views map[int][]Object
}

// Cameras returns the camera indices present in the frame, ascending.
func (f *Frame) Cameras() []int {
	out := make([]int, 0, len(f.Views))
	for k := range f.Views {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// CameraKey returns the document key for a zero-based camera index.
func CameraKey(camera int) string {
	return "C" + strconv.Itoa(camera+1)
}

// ParseCameraKey converts a "C<n>" key to a zero-based camera index.
func ParseCameraKey(key string) (int, error) {
	if !strings.HasPrefix(key, "C") {
		return 0, fmt.Errorf("camera key %q: missing C prefix", key)
	}
	n, err := strconv.Atoi(key[1:])
	if err != nil || n < 1 || CameraKey(n-1) != key {
		return 0, fmt.Errorf("camera key %q: want C<n> with n >= 1 and no sign or leading zeros", key)
	}
	return n - 1, nil
}

// Decode reads one frame document.
func Decode(r io.Reader, index int) (*Frame, error) {
	var raw map[string][]Object
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode frame %d: %w", index, err)
	}

	f := &Frame{Index: index, Views: make(map[int][]Object, len(raw))}
	for key, objs := range raw {
		cam, err := ParseCameraKey(key)
		if err != nil {
			logf("frame %d: ignoring key: %v", index, err)
			continue
		}
		f.Views[cam] = objs
	}
	return f, nil
}

// LoadFile reads a frame document from disk.
func LoadFile(path string, index int) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer fh.Close()
	return Decode(fh, index)
}
