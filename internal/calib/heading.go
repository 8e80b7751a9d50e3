package calib

import "math"

// CameraHeading converts an object's world yaw into the camera-relative
// global heading used by the dataset's orientation labels:
//
//	θ_ref = θ_world + 90
//	θ_cam = θ_ref − R_z
//
// All angles are degrees; the result is wrapped to (−180, 180].
func CameraHeading(worldYawDeg, yawOffsetDeg float64) float64 {
	return WrapDegrees(worldYawDeg + 90 - yawOffsetDeg)
}

// WrapDegrees wraps an angle to (−180, 180].
func WrapDegrees(deg float64) float64 {
	w := math.Mod(deg, 360)
	if w <= -180 {
		w += 360
	} else if w > 180 {
		w -= 360
	}
	return w
}
