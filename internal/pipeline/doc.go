// Package pipeline projects every visible annotated object of a frame into
// every requested camera.
//
// Per (camera, object) pair the steps run strictly in order: pose to 3D
// corners, corners through the camera's projection matrix, projected
// corners to an enclosing rectangle. Pairs are independent; cameras are
// processed concurrently under a worker limit and results are returned in
// (camera, object) order regardless of scheduling.
//
// Failures are isolated. A camera whose calibration cannot be loaded
// yields a CameraResult with Err set; an object whose pose is invalid,
// which lands behind the camera under the reject policy, or whose corners
// cannot be reduced yields an ObjectResult with Err set. Neither stops the
// rest of the frame.
package pipeline
