package posture

import (
	"math"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

const (
	testWidth  = 1000
	testHeight = 1000
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// frameWith builds a fully visible right-side frame from normalized ear,
// shoulder and hip positions.
func frameWith(ear, shoulder, hip [2]float64) *types.LandmarkFrame {
	lms := make([]types.Landmark, types.NumPoseLandmarks)
	for i := range lms {
		lms[i] = types.Landmark{X: 0.5, Y: 0.5, Visibility: 0.9}
	}
	lms[types.LandmarkRightEar] = types.Landmark{X: ear[0], Y: ear[1], Visibility: 0.9}
	lms[types.LandmarkRightShoulder] = types.Landmark{X: shoulder[0], Y: shoulder[1], Visibility: 0.9}
	lms[types.LandmarkRightHip] = types.Landmark{X: hip[0], Y: hip[1], Visibility: 0.9}
	return &types.LandmarkFrame{
		Width:     testWidth,
		Height:    testHeight,
		Detected:  true,
		Landmarks: lms,
	}
}

// frameWithAngle places the hip straight below the shoulder and the ear at
// the given ear-shoulder-hip angle, leaning back so the neck offset stays
// negative.
func frameWithAngle(deg float64) *types.LandmarkFrame {
	const r = 0.2
	rad := deg * math.Pi / 180
	shoulder := [2]float64{0.5, 0.5}
	hip := [2]float64{0.5, 0.8}
	ear := [2]float64{0.5 - r*math.Sin(rad), 0.5 + r*math.Cos(rad)}
	return frameWith(ear, shoulder, hip)
}

func noSubject() *types.LandmarkFrame {
	return &types.LandmarkFrame{Width: testWidth, Height: testHeight}
}

func at(d time.Duration) time.Time {
	return t0.Add(d)
}
