package posture

// FilterState is the persistent output of the smoother.
type FilterState struct {
	Angle      float64 `json:"angle"`
	NeckOffset float64 `json:"neck_offset"`
}

// Smoother is a single-pole low-pass (EMA) filter over both signals.
// It is owned by the analysis loop and is not safe for concurrent use.
type Smoother struct {
	alpha float64
	state FilterState
}

// NewSmoother creates a smoother primed with the configured prior so that a
// fresh process does not start out alarming.
func NewSmoother(cfg Config) *Smoother {
	return &Smoother{
		alpha: cfg.SmoothFactor,
		state: FilterState{Angle: cfg.InitialAngle, NeckOffset: cfg.InitialNeckOffset},
	}
}

// Update folds a raw sample into the filter and returns the new state.
func (s *Smoother) Update(raw FeatureSample) FilterState {
	s.state.Angle = s.alpha*raw.TrunkAngle + (1-s.alpha)*s.state.Angle
	s.state.NeckOffset = s.alpha*raw.NeckOffset + (1-s.alpha)*s.state.NeckOffset
	return s.state
}

// State returns the current filter values.
func (s *Smoother) State() FilterState {
	return s.state
}

// Sample returns the current filter values as a FeatureSample.
func (s *Smoother) Sample() FeatureSample {
	return FeatureSample{TrunkAngle: s.state.Angle, NeckOffset: s.state.NeckOffset}
}
