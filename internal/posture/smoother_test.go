package posture

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmootherStartsAtPrior(t *testing.T) {
	s := NewSmoother(DefaultConfig())
	assert.Equal(t, FilterState{Angle: 170, NeckOffset: 0}, s.State())
}

func TestSmootherUpdate(t *testing.T) {
	s := NewSmoother(DefaultConfig())

	got := s.Update(FeatureSample{TrunkAngle: 100, NeckOffset: 0.5})
	assert.InDelta(t, 149, got.Angle, 1e-9)
	assert.InDelta(t, 0.15, got.NeckOffset, 1e-9)

	got = s.Update(FeatureSample{TrunkAngle: 100, NeckOffset: 0.5})
	assert.InDelta(t, 134.3, got.Angle, 1e-9)
	assert.Equal(t, got, s.State())
	assert.Equal(t, FeatureSample{TrunkAngle: got.Angle, NeckOffset: got.NeckOffset}, s.Sample())
}

func TestSmootherAlphaOneTracksRaw(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothFactor = 1
	s := NewSmoother(cfg)

	got := s.Update(FeatureSample{TrunkAngle: 42, NeckOffset: -0.3})
	assert.Equal(t, FilterState{Angle: 42, NeckOffset: -0.3}, got)
}

func TestSmootherStaysBetweenPreviousAndRaw(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultConfig()

	for i := 0; i < 200; i++ {
		cfg.SmoothFactor = 0.01 + rng.Float64()*0.99
		s := NewSmoother(cfg)
		for j := 0; j < 20; j++ {
			prev := s.State()
			raw := FeatureSample{TrunkAngle: rng.Float64() * 180, NeckOffset: rng.Float64() - 0.5}
			next := s.Update(raw)

			require.GreaterOrEqual(t, next.Angle, math.Min(prev.Angle, raw.TrunkAngle)-1e-9)
			require.LessOrEqual(t, next.Angle, math.Max(prev.Angle, raw.TrunkAngle)+1e-9)
			require.GreaterOrEqual(t, next.NeckOffset, math.Min(prev.NeckOffset, raw.NeckOffset)-1e-9)
			require.LessOrEqual(t, next.NeckOffset, math.Max(prev.NeckOffset, raw.NeckOffset)+1e-9)
		}
	}
}
