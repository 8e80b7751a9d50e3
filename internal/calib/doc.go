// Package calib loads and holds per-camera calibration for the multi-view
// rig: the pinhole intrinsic matrix K, the world-to-camera extrinsic pose
// [R|t] (R from a Rodrigues rotation vector) and the camera's yaw offset
// R_z about the world Z axis. Each loaded calibration caches its 3×4
// projection matrix P = K·[R|t] and is read-only thereafter.
//
// Calibration records are OpenCV FileStorage XML documents, one intrinsic
// and one extrinsic file per camera, located through a Locator table
// supplied by configuration.
package calib
