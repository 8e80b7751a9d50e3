package calib

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/multiviewc/internal/monitoring"
)

var logf = monitoring.Component("calib")

// Locator names the intrinsic and extrinsic records for one camera, as
// slash-separated paths inside the store's file system.
type Locator struct {
	Intrinsic string
	Extrinsic string
}

// Record node names inside the FileStorage documents.
const (
	nodeCameraMatrix = "camera_matrix"
	nodeRvec         = "rvec"
	nodeTvec         = "tvec"
	nodeYawOffset    = "R_z"
)

// Store loads camera calibrations on demand and caches them. Cached
// calibrations are shared read-only between goroutines.
type Store struct {
	fsys     fs.FS
	locators map[int]Locator

	mu   sync.RWMutex
	cams map[int]*CameraCalibration
}

// NewStore returns a store reading calibration records from fsys. The
// locator table defines the camera range; it is copied.
func NewStore(fsys fs.FS, locators map[int]Locator) *Store {
	table := make(map[int]Locator, len(locators))
	for k, v := range locators {
		table[k] = v
	}
	return &Store{
		fsys:     fsys,
		locators: table,
		cams:     make(map[int]*CameraCalibration),
	}
}

// Cameras returns the configured camera indices in ascending order.
func (s *Store) Cameras() []int {
	out := make([]int, 0, len(s.locators))
	for k := range s.locators {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// Load returns the calibration for a camera, reading it on first use.
func (s *Store) Load(camera int) (*CameraCalibration, error) {
	s.mu.RLock()
	c, ok := s.cams[camera]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := s.read(camera)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have won the race; keep the first instance so all
	// callers share one calibration.
	if existing, ok := s.cams[camera]; ok {
		return existing, nil
	}
	s.cams[camera] = c
	return c, nil
}

// Reload re-reads a camera's records and replaces the cached calibration.
// Callers holding the previous instance keep a consistent, unchanged value.
func (s *Store) Reload(camera int) (*CameraCalibration, error) {
	c, err := s.read(camera)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cams[camera] = c
	s.mu.Unlock()
	logf("reloaded camera %d", camera)
	return c, nil
}

// LoadAll loads every configured camera. It returns the cameras that
// loaded and a map of per-camera failures; one bad camera does not prevent
// the others from loading.
func (s *Store) LoadAll() ([]int, map[int]error) {
	var ok []int
	failed := make(map[int]error)
	for _, cam := range s.Cameras() {
		if _, err := s.Load(cam); err != nil {
			failed[cam] = err
			logf("camera %d unavailable: %v", cam, err)
			continue
		}
		ok = append(ok, cam)
	}
	return ok, failed
}

// ProjectionMatrix returns a copy of the cached 3×4 projection matrix for a
// camera, loading the calibration if needed.
func (s *Store) ProjectionMatrix(camera int) (*mat.Dense, error) {
	c, err := s.Load(camera)
	if err != nil {
		return nil, err
	}
	return c.Projection(), nil
}

func (s *Store) read(camera int) (*CameraCalibration, error) {
	loc, ok := s.locators[camera]
	if !ok {
		return nil, &LoadError{Camera: camera, Err: fmt.Errorf("camera index not in configured range")}
	}

	intr, err := s.open(loc.Intrinsic)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Intrinsic, Err: err}
	}
	K, err := intr.Matrix(nodeCameraMatrix)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Intrinsic, Err: err}
	}
	if _, err := validateIntrinsic(K); err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Intrinsic, Err: err}
	}

	extr, err := s.open(loc.Extrinsic)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Extrinsic, Err: err}
	}
	rvec, err := extr.Vector3(nodeRvec)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Extrinsic, Err: err}
	}
	tvec, err := extr.Vector3(nodeTvec)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Extrinsic, Err: err}
	}
	yaw, err := extr.Real(nodeYawOffset)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Extrinsic, Err: err}
	}

	c, err := NewCameraCalibration(camera, K,
		r3.Vec{X: rvec[0], Y: rvec[1], Z: rvec[2]},
		r3.Vec{X: tvec[0], Y: tvec[1], Z: tvec[2]},
		yaw)
	if err != nil {
		return nil, &LoadError{Camera: camera, Source: loc.Extrinsic, Err: err}
	}
	logf("loaded camera %d (R_z=%.3f°)", camera, yaw)
	return c, nil
}

func (s *Store) open(name string) (*fileStorage, error) {
	if name == "" {
		return nil, fmt.Errorf("no calibration record configured")
	}
	f, err := s.fsys.Open(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("open calibration record: %w", err)
	}
	defer f.Close()
	return parseFileStorage(f)
}
