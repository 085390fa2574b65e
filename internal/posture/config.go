package posture

import (
	"fmt"
	"math"
	"strings"
)

// BodySide selects which ear/shoulder/hip chain is measured.
type BodySide string

const (
	SideLeft  BodySide = "left"
	SideRight BodySide = "right"
)

// Facing is the direction the subject faces in the image. It fixes the sign
// of the neck offset so that a forward head is always positive.
type Facing string

const (
	FacingRight Facing = "right" // ear x > shoulder x when the head is forward
	FacingLeft  Facing = "left"
)

// Sign returns +1 for FacingRight and -1 for FacingLeft.
func (f Facing) Sign() float64 {
	if f == FacingLeft {
		return -1
	}
	return 1
}

// Config holds the tunables of the posture pipeline.
type Config struct {
	// Classification
	AngleThreshold      float64 `yaml:"angle_threshold"`       // Trunk angle below this is Hunchback (degrees)
	NeckOffsetThreshold float64 `yaml:"neck_offset_threshold"` // Neck offset above this is NeckForward (ratio of width)

	// Smoothing
	SmoothFactor      float64 `yaml:"smooth_factor"`       // EMA alpha in (0,1]; smaller = smoother, slower
	InitialAngle      float64 `yaml:"initial_angle"`       // Filter prior, a good upright posture
	InitialNeckOffset float64 `yaml:"initial_neck_offset"` // Filter prior

	// Debounce
	AlarmTriggerFrames int `yaml:"alarm_trigger_frames"` // Alarm once the counter exceeds this

	// Presence
	GraceFrames       int `yaml:"grace_frames"`        // Missed frames tolerated before the session ends
	SedentaryLimitSec int `yaml:"sedentary_limit_sec"` // Seated seconds before "stand up"

	// Geometry
	Side          BodySide `yaml:"side"`
	Facing        Facing   `yaml:"facing"`
	MinVisibility float64  `yaml:"min_visibility"` // Landmarks below this confidence count as missing
}

// DefaultConfig returns the bench-testing tuning: 145° / 0.15, alpha 0.3,
// 20 frames (~2 s at 10 fps) and a 15 s sedentary limit.
func DefaultConfig() Config {
	return Config{
		AngleThreshold:      145,
		NeckOffsetThreshold: 0.15,

		SmoothFactor:      0.3,
		InitialAngle:      170,
		InitialNeckOffset: 0,

		AlarmTriggerFrames: 20,

		GraceFrames:       5,
		SedentaryLimitSec: 15,

		Side:          SideRight,
		Facing:        FacingRight,
		MinVisibility: 0.05,
	}
}

// OfficeConfig returns DefaultConfig with a 45 minute sedentary limit.
func OfficeConfig() Config {
	cfg := DefaultConfig()
	cfg.SedentaryLimitSec = 45 * 60
	return cfg
}

// Validate checks that the tunables are usable.
func (c Config) Validate() error {
	var problems []string

	if !(c.SmoothFactor > 0 && c.SmoothFactor <= 1) {
		problems = append(problems, fmt.Sprintf("smooth_factor must be in (0,1], got %v", c.SmoothFactor))
	}
	if !isFinite(c.AngleThreshold) || c.AngleThreshold < 0 || c.AngleThreshold > 180 {
		problems = append(problems, fmt.Sprintf("angle_threshold must be within [0,180], got %v", c.AngleThreshold))
	}
	if !isFinite(c.NeckOffsetThreshold) {
		problems = append(problems, "neck_offset_threshold must be finite")
	}
	if !isFinite(c.InitialAngle) || !isFinite(c.InitialNeckOffset) {
		problems = append(problems, "initial filter values must be finite")
	}
	if c.AlarmTriggerFrames < 0 {
		problems = append(problems, fmt.Sprintf("alarm_trigger_frames must be >= 0, got %d", c.AlarmTriggerFrames))
	}
	if c.GraceFrames < 0 {
		problems = append(problems, fmt.Sprintf("grace_frames must be >= 0, got %d", c.GraceFrames))
	}
	if c.SedentaryLimitSec <= 0 {
		problems = append(problems, fmt.Sprintf("sedentary_limit_sec must be > 0, got %d", c.SedentaryLimitSec))
	}
	if c.Side != SideLeft && c.Side != SideRight {
		problems = append(problems, fmt.Sprintf("side must be left or right, got %q", c.Side))
	}
	if c.Facing != FacingLeft && c.Facing != FacingRight {
		problems = append(problems, fmt.Sprintf("facing must be left or right, got %q", c.Facing))
	}
	if c.MinVisibility < 0 || c.MinVisibility > 1 {
		problems = append(problems, fmt.Sprintf("min_visibility must be within [0,1], got %v", c.MinVisibility))
	}

	if len(problems) > 0 {
		return fmt.Errorf("posture config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
