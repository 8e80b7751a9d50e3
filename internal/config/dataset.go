package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDatasetConfigPath is the path to the canonical dataset defaults file.
const DefaultDatasetConfigPath = "config/multiviewc.defaults.json"

// Behind-camera policies for objects whose corners project with non-positive
// depth.
const (
	// BehindCameraReject skips the object for that camera.
	BehindCameraReject = "reject"
	// BehindCameraPermit keeps the raw divided coordinates.
	BehindCameraPermit = "permit"
)

// CameraEntry maps one camera index to its calibration records, relative
// to CalibRoot.
type CameraEntry struct {
	Index     int    `json:"index"`
	Intrinsic string `json:"intrinsic"`
	Extrinsic string `json:"extrinsic"`
}

// DatasetConfig holds deployment parameters for the camera rig and the
// projection pipeline. Optional fields are pointers; the Get* methods supply
// defaults for anything the JSON omits.
type DatasetConfig struct {
	CalibRoot  *string       `json:"calib_root,omitempty"`
	Cameras    []CameraEntry `json:"cameras,omitempty"`
	NumCameras *int          `json:"num_cameras,omitempty"` // used only when Cameras is empty

	ImageWidth  *int `json:"image_width,omitempty"`
	ImageHeight *int `json:"image_height,omitempty"`

	BehindCameraPolicy *string `json:"behind_camera_policy,omitempty"`
	Workers            *int    `json:"workers,omitempty"`

	DBPath *string `json:"db_path,omitempty"`
}

// EmptyDatasetConfig returns a DatasetConfig with all fields unset.
func EmptyDatasetConfig() *DatasetConfig {
	return &DatasetConfig{}
}

// DefaultCameraTable reproduces the reference rig's record naming for n
// cameras: camera i uses intrinsic/intr_Camera{i+1}.xml and
// extrinsic/extr_Camera{i+1}.xml.
func DefaultCameraTable(n int) []CameraEntry {
	out := make([]CameraEntry, n)
	for i := range out {
		out[i] = CameraEntry{
			Index:     i,
			Intrinsic: fmt.Sprintf("intrinsic/intr_Camera%d.xml", i+1),
			Extrinsic: fmt.Sprintf("extrinsic/extr_Camera%d.xml", i+1),
		}
	}
	return out
}

// LoadDatasetConfig loads a DatasetConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadDatasetConfig(path string) (*DatasetConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDatasetConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultDatasetConfig loads DefaultDatasetConfigPath, searching the
// current directory and its parents. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultDatasetConfig() *DatasetConfig {
	candidates := []string{
		DefaultDatasetConfigPath,
		"../" + DefaultDatasetConfigPath,
		"../../" + DefaultDatasetConfigPath,
		"../../../" + DefaultDatasetConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadDatasetConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultDatasetConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *DatasetConfig) Validate() error {
	if c.NumCameras != nil && *c.NumCameras <= 0 {
		return fmt.Errorf("num_cameras must be positive, got %d", *c.NumCameras)
	}

	seen := make(map[int]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Index < 0 {
			return fmt.Errorf("cameras[%d]: index must be non-negative, got %d", i, cam.Index)
		}
		if seen[cam.Index] {
			return fmt.Errorf("cameras[%d]: duplicate camera index %d", i, cam.Index)
		}
		seen[cam.Index] = true
		if cam.Intrinsic == "" || cam.Extrinsic == "" {
			return fmt.Errorf("cameras[%d]: intrinsic and extrinsic locators are required", i)
		}
	}

	if c.ImageWidth != nil && *c.ImageWidth <= 0 {
		return fmt.Errorf("image_width must be positive, got %d", *c.ImageWidth)
	}
	if c.ImageHeight != nil && *c.ImageHeight <= 0 {
		return fmt.Errorf("image_height must be positive, got %d", *c.ImageHeight)
	}

	if c.BehindCameraPolicy != nil {
		switch *c.BehindCameraPolicy {
		case BehindCameraReject, BehindCameraPermit:
		default:
			return fmt.Errorf("behind_camera_policy must be %q or %q, got %q",
				BehindCameraReject, BehindCameraPermit, *c.BehindCameraPolicy)
		}
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	return nil
}

// GetCalibRoot returns the calibration root directory or the default.
func (c *DatasetConfig) GetCalibRoot() string {
	if c.CalibRoot == nil || *c.CalibRoot == "" {
		return "calibrations"
	}
	return *c.CalibRoot
}

// GetNumCameras returns num_cameras or the reference rig size.
func (c *DatasetConfig) GetNumCameras() int {
	if c.NumCameras == nil {
		return 7
	}
	return *c.NumCameras
}

// GetCameras returns the explicit camera table, or the default table for
// GetNumCameras cameras.
func (c *DatasetConfig) GetCameras() []CameraEntry {
	if len(c.Cameras) == 0 {
		return DefaultCameraTable(c.GetNumCameras())
	}
	out := make([]CameraEntry, len(c.Cameras))
	copy(out, c.Cameras)
	return out
}

// GetImageWidth returns the image width in pixels or the default.
func (c *DatasetConfig) GetImageWidth() int {
	if c.ImageWidth == nil {
		return 1280
	}
	return *c.ImageWidth
}

// GetImageHeight returns the image height in pixels or the default.
func (c *DatasetConfig) GetImageHeight() int {
	if c.ImageHeight == nil {
		return 720
	}
	return *c.ImageHeight
}

// GetBehindCameraPolicy returns the behind-camera policy or the default.
func (c *DatasetConfig) GetBehindCameraPolicy() string {
	if c.BehindCameraPolicy == nil {
		return BehindCameraReject
	}
	return *c.BehindCameraPolicy
}

// GetWorkers returns the projection worker limit or the default.
func (c *DatasetConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetDBPath returns the results database path, or "" when persistence is
// disabled.
func (c *DatasetConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}
