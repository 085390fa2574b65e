package webmonitor

import (
	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// StatusResponse is the payload for /api/status.
type StatusResponse struct {
	Payload   *types.PosturePayload   `json:"payload"` // null until the first frame
	Seq       uint64                  `json:"seq"`
	UpdatedAt float64                 `json:"updated_at,omitempty"`
	Session   posture.SessionSnapshot `json:"session"`
	Filter    FilterStats             `json:"filter"`
	Monitor   MonitorStats            `json:"monitor"`
	Timestamp float64                 `json:"timestamp"`
}

// FilterStats exposes the smoothed features and alarm state.
type FilterStats struct {
	SmoothedAngle   float64 `json:"smoothed_angle"`
	NeckOffset      float64 `json:"neck_offset"`
	DebounceCounter uint64  `json:"debounce_counter"`
	AlarmActive     bool    `json:"alarm_active"`
	SedentaryActive bool    `json:"sedentary_active"`
}

// MonitorStats summarizes the analysis loop and push clients.
type MonitorStats struct {
	UptimeSec         float64 `json:"uptime_sec"`
	FramesRead        uint64  `json:"frames_read"`
	FramesAnalyzed    uint64  `json:"frames_analyzed"`
	FramesNoSubject   uint64  `json:"frames_no_subject"`
	FramesFailed      uint64  `json:"frames_failed"`
	AcquireErrors     uint64  `json:"acquire_errors"`
	PayloadsPublished uint64  `json:"payloads_published"`
	PayloadsDropped   uint64  `json:"payloads_dropped"`
	SinkErrors        uint64  `json:"sink_errors"`
	ActiveClients     int64   `json:"active_clients"`
}
