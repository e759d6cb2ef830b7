// Package domain holds the data types shared across every facebridge
// component: the tracking Frame, the Rule/Ruleset that transform it, the
// DesktopFrame sent to the avatar application, and the snapshot types used
// for health reporting.
package domain

import "time"

// Vector3 is a generic (x,y,z) triple used for head position and rotation.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// Point2 is a generic (x,y) pair used for eye coordinates.
type Point2 struct {
	X float64
	Y float64
}

// Frame is a single tracking sample decoded from the mobile link.
//
// Invariant: if FacePresent is false, no downstream component may use the
// remaining fields — they carry whatever stale values the source sent.
type Frame struct {
	FacePresent  bool
	Timestamp    time.Time
	HeadPosition Vector3
	HeadRotation Vector3
	EyeLeft      Point2
	EyeRight     Point2

	// BlendShapes maps a source-defined, case-sensitive key to its value.
	// Keys are opaque to the engine except as rule variable bindings.
	BlendShapes map[string]float64
}

// Variables flattens the frame into the evaluation environment consumed by
// rule expressions: every scalar field under its wire name, plus every
// blend shape key verbatim.
func (f *Frame) Variables() map[string]interface{} {
	vars := make(map[string]interface{}, len(f.BlendShapes)+8)
	vars["FaceFound"] = f.FacePresent
	vars["HeadPosX"] = f.HeadPosition.X
	vars["HeadPosY"] = f.HeadPosition.Y
	vars["HeadPosZ"] = f.HeadPosition.Z
	vars["HeadRotX"] = f.HeadRotation.X
	vars["HeadRotY"] = f.HeadRotation.Y
	vars["HeadRotZ"] = f.HeadRotation.Z
	vars["EyeLeftX"] = f.EyeLeft.X
	vars["EyeLeftY"] = f.EyeLeft.Y
	vars["EyeRightX"] = f.EyeRight.X
	vars["EyeRightY"] = f.EyeRight.Y
	for k, v := range f.BlendShapes {
		vars[k] = v
	}
	return vars
}
