package calib

import "fmt"

// LoadError reports a camera whose calibration record is missing, malformed
// or dimensionally inconsistent. No default calibration is ever substituted.
type LoadError struct {
	Camera int
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("load calibration for camera %d: %v", e.Camera, e.Err)
	}
	return fmt.Sprintf("load calibration for camera %d (%s): %v", e.Camera, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
