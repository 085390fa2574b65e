package posture

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionEvent is the presence transition produced by one observation.
type SessionEvent int

const (
	SessionUnchanged SessionEvent = iota
	SessionStarted                // Absent -> Present
	SessionEnded                  // Present -> Absent, grace exceeded
)

func (e SessionEvent) String() string {
	switch e {
	case SessionStarted:
		return "started"
	case SessionEnded:
		return "ended"
	default:
		return "unchanged"
	}
}

// SessionSnapshot is a copy of the tracker state, safe to hand to other goroutines.
type SessionSnapshot struct {
	ID           string    `json:"session_id,omitempty"`
	Present      bool      `json:"present"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	ElapsedSec   int       `json:"elapsed_sec"`
	MissedFrames int       `json:"missed_frames"`
}

// InGrace reports whether the subject is missing but the session is still open.
func (s SessionSnapshot) InGrace() bool {
	return s.Present && s.MissedFrames > 0
}

// SessionTracker keeps presence and sitting time for one subject.
// The analysis loop is the single writer; status readers call Snapshot from
// other goroutines, so every access goes through mu.
type SessionTracker struct {
	graceFrames int

	mu        sync.Mutex
	id        string
	present   bool
	startedAt time.Time
	elapsed   int
	missed    int
}

// NewSessionTracker creates an absent tracker.
func NewSessionTracker(cfg Config) *SessionTracker {
	return &SessionTracker{graceFrames: cfg.GraceFrames}
}

// Observe feeds one frame's detection result taken at now.
func (t *SessionTracker) Observe(detected bool, now time.Time) (SessionSnapshot, SessionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	event := SessionUnchanged

	if detected {
		t.missed = 0
		if !t.present {
			t.present = true
			t.startedAt = now
			t.id = uuid.NewString()
			event = SessionStarted
		}
		t.elapsed = elapsedSeconds(t.startedAt, now, t.elapsed)
		return t.snapshotLocked(), event
	}

	t.missed++
	if !t.present {
		return t.snapshotLocked(), event
	}

	if t.missed > t.graceFrames {
		t.present = false
		t.startedAt = time.Time{}
		t.elapsed = 0
		t.id = ""
		return t.snapshotLocked(), SessionEnded
	}

	// Inside the grace period the session stays open and keeps counting.
	t.elapsed = elapsedSeconds(t.startedAt, now, t.elapsed)
	return t.snapshotLocked(), event
}

// Snapshot returns the current state.
func (t *SessionTracker) Snapshot() SessionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *SessionTracker) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		ID:           t.id,
		Present:      t.present,
		StartedAt:    t.startedAt,
		ElapsedSec:   t.elapsed,
		MissedFrames: t.missed,
	}
}

// elapsedSeconds truncates now-start to whole seconds and never goes below
// prev, so a clock step backwards cannot shrink the sitting time.
func elapsedSeconds(start, now time.Time, prev int) int {
	secs := int(now.Sub(start) / time.Second)
	if secs < prev {
		return prev
	}
	return secs
}
