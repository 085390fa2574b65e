package posture

import (
	"math"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// angleEpsilon keeps the cosine denominator away from zero when two
// landmarks coincide.
const angleEpsilon = 1e-6

// FeatureSample is the pair of scalar signals derived from one frame.
type FeatureSample struct {
	TrunkAngle float64 `json:"trunk_angle"` // Ear-shoulder-hip angle at the shoulder, degrees [0,180]
	NeckOffset float64 `json:"neck_offset"` // Ear ahead of shoulder, fraction of image width
}

type point struct{ x, y float64 }

// landmarkIDs returns the ear, shoulder and hip ids for a body side.
func landmarkIDs(side BodySide) (ear, shoulder, hip int) {
	if side == SideLeft {
		return types.LandmarkLeftEar, types.LandmarkLeftShoulder, types.LandmarkLeftHip
	}
	return types.LandmarkRightEar, types.LandmarkRightShoulder, types.LandmarkRightHip
}

// ExtractFeatures computes the trunk angle and neck offset for the configured
// side. It returns false when the frame has no subject, lacks one of the three
// landmarks, or one of them is below the visibility floor or off the image.
func ExtractFeatures(frame *types.LandmarkFrame, cfg Config) (FeatureSample, bool) {
	if !frame.HasSubject() || frame.Width <= 0 || frame.Height <= 0 {
		return FeatureSample{}, false
	}

	earID, shoulderID, hipID := landmarkIDs(cfg.Side)
	w, h := float64(frame.Width), float64(frame.Height)

	pts := make([]point, 0, 3)
	for _, id := range []int{earID, shoulderID, hipID} {
		if id >= len(frame.Landmarks) {
			return FeatureSample{}, false
		}
		lm := frame.Landmarks[id]
		if lm.Visibility < cfg.MinVisibility || !lm.InRange() {
			return FeatureSample{}, false
		}
		p := point{x: lm.X * w, y: lm.Y * h}
		if !isFinite(p.x) || !isFinite(p.y) {
			return FeatureSample{}, false
		}
		pts = append(pts, p)
	}
	ear, shoulder, hip := pts[0], pts[1], pts[2]

	return FeatureSample{
		TrunkAngle: threePointAngle(ear, shoulder, hip),
		NeckOffset: cfg.Facing.Sign() * (ear.x - shoulder.x) / w,
	}, true
}

// threePointAngle returns the angle at vertex b formed by rays b->a and b->c,
// in degrees. Overflowing inputs yield 90.
func threePointAngle(a, b, c point) float64 {
	bax, bay := a.x-b.x, a.y-b.y
	bcx, bcy := c.x-b.x, c.y-b.y

	dot := bax*bcx + bay*bcy
	norm := math.Hypot(bax, bay)*math.Hypot(bcx, bcy) + angleEpsilon

	cosine := dot / norm
	if math.IsNaN(cosine) {
		cosine = 0
	}
	cosine = math.Max(-1, math.Min(1, cosine))
	return math.Acos(cosine) * 180 / math.Pi
}
