package webmonitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// SessionReader is the concurrent read side of the session tracker.
type SessionReader interface {
	Snapshot() posture.SessionSnapshot
}

// Monitor assembles status snapshots from the latest payload, the session
// tracker and the loop metrics. It also caches the rendered status card.
type Monitor struct {
	startTime time.Time
	slot      *publish.Slot
	sessions  SessionReader
	metrics   *metrics.Metrics

	cardMu   sync.Mutex
	cardSeq  uint64
	cardJPEG []byte
}

// NewMonitor creates a Monitor. Any argument may be nil.
func NewMonitor(slot *publish.Slot, sessions SessionReader, m *metrics.Metrics) *Monitor {
	return &Monitor{
		startTime: time.Now(),
		slot:      slot,
		sessions:  sessions,
		metrics:   m,
	}
}

// Latest returns the most recent payload event, or nil before the first frame.
func (m *Monitor) Latest() *publish.Event {
	if m.slot == nil {
		return nil
	}
	return m.slot.Latest()
}

// Snapshot returns the current status.
func (m *Monitor) Snapshot() StatusResponse {
	resp := StatusResponse{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Monitor: MonitorStats{
			UptimeSec: time.Since(m.startTime).Seconds(),
		},
	}

	if ev := m.Latest(); ev != nil {
		payload := ev.Payload
		resp.Payload = &payload
		resp.Seq = ev.Seq
		resp.UpdatedAt = float64(ev.At.UnixNano()) / 1e9
	}
	if m.sessions != nil {
		resp.Session = m.sessions.Snapshot()
	}

	if mt := m.metrics; mt != nil {
		resp.Filter = FilterStats{
			SmoothedAngle:   mt.SmoothedAngle(),
			NeckOffset:      mt.SmoothedNeckOffset(),
			DebounceCounter: mt.DebounceCounter.Load(),
			AlarmActive:     mt.AlarmActive.Load() == 1,
			SedentaryActive: mt.SedentaryActive.Load() == 1,
		}
		resp.Monitor.FramesRead = mt.FramesRead.Load()
		resp.Monitor.FramesAnalyzed = mt.FramesAnalyzed.Load()
		resp.Monitor.FramesNoSubject = mt.FramesNoSubject.Load()
		resp.Monitor.FramesFailed = mt.FramesFailed.Load()
		resp.Monitor.AcquireErrors = mt.AcquireErrors.Load()
		resp.Monitor.PayloadsPublished = mt.PayloadsPublished.Load()
		resp.Monitor.PayloadsDropped = mt.PayloadsDropped.Load()
		resp.Monitor.SinkErrors = mt.SinkErrors.Load()
		resp.Monitor.ActiveClients = mt.ActiveClients.Load()
	}

	return resp
}

// Card returns the JPEG card for the latest payload, re-rendering only when
// a newer payload has arrived.
func (m *Monitor) Card() ([]byte, error) {
	var (
		seq     uint64
		payload types.PosturePayload
	)
	if ev := m.Latest(); ev != nil {
		seq, payload = ev.Seq, ev.Payload
	}

	m.cardMu.Lock()
	defer m.cardMu.Unlock()

	if m.cardJPEG != nil && m.cardSeq == seq {
		return m.cardJPEG, nil
	}
	data, err := renderCard(payload)
	if err != nil {
		return nil, err
	}
	m.cardSeq, m.cardJPEG = seq, data
	return data, nil
}
