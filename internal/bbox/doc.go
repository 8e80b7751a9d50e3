// Package bbox owns the per-object geometry of the projection core.
//
// Responsibilities: expanding an object pose (center, yaw, extent) into the
// eight corners of its oriented 3D box, projecting points through a 3×4
// camera matrix, and reducing projected corners to an axis-aligned
// rectangle.
// Key types: ObjectPose, Box3D, Corner, Projection, Rect4.
//
// Corner order is a contract: indices 0–3 are the bottom face in cyclic
// order, 4–7 the top face in the same order, and corner i sits directly
// below corner i+4. Drawing code should walk Edges rather than hard-code
// index pairs.
package bbox
