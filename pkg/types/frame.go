package types

import (
	"math"
	"time"
)

// Estimators report points slightly off-image; anything further out is
// treated as garbage.
const (
	MinLandmarkCoord = -1.0
	MaxLandmarkCoord = 2.0
)

// Landmark is one body keypoint from the pose estimator.
// X and Y are normalized to [0,1] relative to the image; Visibility is the
// estimator's confidence for the point.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility"`
}

// InRange reports whether X and Y are finite and within
// [MinLandmarkCoord, MaxLandmarkCoord].
func (l Landmark) InRange() bool {
	return coordInRange(l.X) && coordInRange(l.Y)
}

func coordInRange(v float64) bool {
	return !math.IsNaN(v) && v >= MinLandmarkCoord && v <= MaxLandmarkCoord
}

// LandmarkFrame is what the estimator hands over for one camera frame.
// A frame with Detected=false (or no landmarks) means nobody was found.
type LandmarkFrame struct {
	FrameNum  uint64     `json:"frame_number"`
	Timestamp time.Time  `json:"timestamp"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Detected  bool       `json:"detected"`
	Landmarks []Landmark `json:"landmarks,omitempty"` // Indexed by pose landmark id
}

// HasSubject reports whether the frame carries a detected body.
func (f *LandmarkFrame) HasSubject() bool {
	return f != nil && f.Detected && len(f.Landmarks) > 0
}

// Pose landmark ids (MediaPipe 33-point model)
const (
	LandmarkNose          = 0
	LandmarkLeftEar       = 7
	LandmarkRightEar      = 8
	LandmarkLeftShoulder  = 11
	LandmarkRightShoulder = 12
	LandmarkLeftHip       = 23
	LandmarkRightHip      = 24
	NumPoseLandmarks      = 33
)
