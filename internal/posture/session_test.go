package posture

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStartsAndCounts(t *testing.T) {
	tr := NewSessionTracker(DefaultConfig())

	snap, ev := tr.Observe(true, at(0))
	assert.Equal(t, SessionStarted, ev)
	assert.True(t, snap.Present)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, t0, snap.StartedAt)
	assert.Equal(t, 0, snap.ElapsedSec)

	snap, ev = tr.Observe(true, at(2900*time.Millisecond))
	assert.Equal(t, SessionUnchanged, ev)
	assert.Equal(t, 2, snap.ElapsedSec)
	assert.Equal(t, snap, tr.Snapshot())
}

func TestSessionSurvivesShortAbsence(t *testing.T) {
	tr := NewSessionTracker(DefaultConfig())
	first, _ := tr.Observe(true, at(0))

	for i := 1; i <= 3; i++ {
		snap, ev := tr.Observe(false, at(time.Duration(i)*time.Second))
		require.Equal(t, SessionUnchanged, ev)
		assert.True(t, snap.Present)
		assert.True(t, snap.InGrace())
		assert.Equal(t, i, snap.MissedFrames)
		assert.Equal(t, i, snap.ElapsedSec)
		assert.Equal(t, first.ID, snap.ID)
	}

	snap, _ := tr.Observe(true, at(4*time.Second))
	assert.Equal(t, 0, snap.MissedFrames)
	assert.False(t, snap.InGrace())
	assert.Equal(t, 4, snap.ElapsedSec)
}

func TestSessionEndsAfterGrace(t *testing.T) {
	tr := NewSessionTracker(DefaultConfig())
	first, _ := tr.Observe(true, at(0))
	tr.Observe(true, at(10*time.Second))

	var events []SessionEvent
	var snap SessionSnapshot
	for i := 1; i <= 6; i++ {
		var ev SessionEvent
		snap, ev = tr.Observe(false, at(10*time.Second+time.Duration(i)*100*time.Millisecond))
		events = append(events, ev)
	}
	assert.Equal(t, []SessionEvent{
		SessionUnchanged, SessionUnchanged, SessionUnchanged,
		SessionUnchanged, SessionUnchanged, SessionEnded,
	}, events)
	assert.False(t, snap.Present)
	assert.Equal(t, 0, snap.ElapsedSec)
	assert.Empty(t, snap.ID)
	assert.True(t, snap.StartedAt.IsZero())

	snap, ev := tr.Observe(false, at(12*time.Second))
	assert.Equal(t, SessionUnchanged, ev)
	assert.Equal(t, 7, snap.MissedFrames)

	snap, ev = tr.Observe(true, at(20*time.Second))
	assert.Equal(t, SessionStarted, ev)
	assert.Equal(t, 0, snap.ElapsedSec)
	assert.NotEqual(t, first.ID, snap.ID)
}

func TestSessionZeroGrace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraceFrames = 0
	tr := NewSessionTracker(cfg)

	tr.Observe(true, at(0))
	snap, ev := tr.Observe(false, at(time.Second))
	assert.Equal(t, SessionEnded, ev)
	assert.False(t, snap.Present)
}

func TestSessionElapsedNeverShrinks(t *testing.T) {
	tr := NewSessionTracker(DefaultConfig())
	tr.Observe(true, at(0))
	tr.Observe(true, at(5*time.Second))

	snap, _ := tr.Observe(true, at(3*time.Second))
	assert.Equal(t, 5, snap.ElapsedSec)
}

func TestSessionSnapshotConcurrent(t *testing.T) {
	tr := NewSessionTracker(DefaultConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			tr.Observe(i%7 != 0, at(time.Duration(i)*time.Millisecond))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := tr.Snapshot()
			if !snap.Present {
				assert.Equal(t, 0, snap.ElapsedSec)
			}
		}
	}()
	wg.Wait()
}

func TestSessionEventString(t *testing.T) {
	assert.Equal(t, "started", SessionStarted.String())
	assert.Equal(t, "ended", SessionEnded.String())
	assert.Equal(t, "unchanged", SessionUnchanged.String())
}
