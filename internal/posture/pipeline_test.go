package posture

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

const frameStep = 100 * time.Millisecond

func TestPipelineAlarmNeedsSustainedBadPosture(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	angles := []float64{170, 170, 170}
	for len(angles) < 30 {
		angles = append(angles, 100)
	}

	firstBad := -1
	for i, a := range angles {
		res := p.Process(frameWithAngle(a), at(time.Duration(i)*frameStep))
		require.Equal(t, OutcomeAnalyzed, res.Outcome, "frame %d", i)

		switch {
		case i < 4:
			// The smoothed angle is still above 145 on the first slouched frame.
			assert.Equal(t, LabelGood, res.Classification.Label, "frame %d", i)
			assert.Equal(t, 0, res.Counter, "frame %d", i)
		default:
			assert.Equal(t, LabelHunchback, res.Classification.Label, "frame %d", i)
			assert.Equal(t, i-3, res.Counter, "frame %d", i)
		}

		if res.Payload.IsBad && firstBad < 0 {
			firstBad = i
		}
		if !res.Payload.IsBad {
			assert.True(t, strings.HasPrefix(res.Payload.PostureText, "Good ("), "frame %d: %q", i, res.Payload.PostureText)
		} else {
			assert.True(t, strings.HasPrefix(res.Payload.PostureText, "Hunchback ("), "frame %d: %q", i, res.Payload.PostureText)
		}
	}
	// Counter reaches 21 on the 21st slouched frame after the filter crossed.
	assert.Equal(t, 24, firstBad)
}

func TestPipelineFilterPrior(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	res := p.Process(frameWithAngle(100), t0)
	assert.InDelta(t, 149, res.Smoothed.Angle, 1e-2)
	assert.Equal(t, LabelGood, res.Classification.Label)
	assert.False(t, res.Payload.IsBad)
}

func TestPipelineGraceKeepsSession(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	for i := 0; i < 10; i++ {
		p.Process(frameWithAngle(90), at(time.Duration(i)*frameStep))
	}
	res := p.Process(frameWithAngle(90), at(time.Second))
	require.Equal(t, 10, res.Counter)
	require.Equal(t, 1, res.Session.ElapsedSec)

	for i := 1; i <= 3; i++ {
		res = p.Process(noSubject(), at(time.Second+time.Duration(i)*time.Second))
		assert.Equal(t, OutcomeNoSubject, res.Outcome)
		assert.True(t, res.Session.Present)
		assert.Equal(t, 1+i, res.Payload.SitTime)
		assert.Equal(t, TextNoPerson, res.Payload.PostureText)
		assert.Equal(t, [4]float64{0.25, 0.25, 0.25, 0.25}, res.Payload.PressureData)
		// No subject means nothing to accumulate.
		assert.Equal(t, 0, res.Counter)
	}
}

func TestPipelineLongAbsenceEndsSession(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	for i := 0; i < 25; i++ {
		p.Process(frameWithAngle(90), at(time.Duration(i)*frameStep))
	}

	var res FrameResult
	events := map[SessionEvent]int{}
	for i := 1; i <= 6; i++ {
		res = p.Process(noSubject(), at(3*time.Second+time.Duration(i)*frameStep))
		events[res.Event]++
	}
	assert.Equal(t, 1, events[SessionEnded])
	assert.False(t, res.Session.Present)
	assert.Equal(t, 0, res.Counter)

	want := types.PosturePayload{PostureText: TextUserAway}
	if diff := cmp.Diff(want, res.Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineUserAwayBeforeFirstSession(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	var texts []string
	for i := 0; i < 7; i++ {
		texts = append(texts, p.Process(noSubject(), at(time.Duration(i)*frameStep)).Payload.PostureText)
	}
	assert.Equal(t, []string{
		TextNoPerson, TextNoPerson, TextNoPerson, TextNoPerson, TextNoPerson,
		TextUserAway, TextUserAway,
	}, texts)
}

func TestPipelineSedentaryOverride(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	res := p.Process(frameWithAngle(175), t0)
	assert.Equal(t, SessionStarted, res.Event)

	res = p.Process(frameWithAngle(175), at(15*time.Second))
	assert.False(t, res.Payload.IsBad)
	assert.Equal(t, 15, res.Payload.SitTime)

	res = p.Process(frameWithAngle(175), at(16*time.Second))
	assert.Equal(t, TextStandUp, res.Payload.PostureText)
	assert.True(t, res.Payload.IsBad)
	assert.True(t, res.Status.Sedentary)
	assert.Equal(t, 16, res.Payload.SitTime)
	assert.False(t, res.Alarm)
}

func TestPipelineSedentaryWinsOverPostureAlarm(t *testing.T) {
	p := NewPipeline(DefaultConfig())

	var res FrameResult
	for i := 0; i <= 200; i++ {
		res = p.Process(frameWithAngle(90), at(time.Duration(i)*frameStep))
	}
	assert.True(t, res.Alarm)
	assert.Equal(t, 20, res.Payload.SitTime)
	assert.Equal(t, TextStandUp, res.Payload.PostureText)
	assert.Equal(t, LabelHunchback, res.Status.Label)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "analyzed", OutcomeAnalyzed.String())
	assert.Equal(t, "no_subject", OutcomeNoSubject.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
