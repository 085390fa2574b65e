// Package engine runs the per-frame analysis loop: acquire a landmark frame,
// push it through the posture pipeline and hand the payload to publishers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
	"github.com/dj-oyu/smart-posture/posture-server/internal/source"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// Processor turns one frame into a result. *posture.Pipeline implements it.
type Processor interface {
	Process(frame *types.LandmarkFrame, now time.Time) posture.FrameResult
}

// Config tunes the loop timing.
type Config struct {
	RetryDelay    time.Duration // Pause after an acquisition error
	ErrorPause    time.Duration // Pause after a failed frame
	FrameInterval time.Duration // Yield between frames
	UseFrameTime  bool          // Use frame timestamps as the clock (replay)
}

// DefaultConfig returns the live-camera timing.
func DefaultConfig() Config {
	return Config{
		RetryDelay:    time.Second,
		ErrorPause:    time.Second,
		FrameInterval: 10 * time.Millisecond,
	}
}

// Runner owns the analysis loop. It is the only writer of pipeline state.
type Runner struct {
	src     source.Source
	proc    Processor
	slot    *publish.Slot
	metrics *metrics.Metrics
	cfg     Config

	now       func() time.Time
	frameTime time.Time // Last stamped frame time, for UseFrameTime
	seq       uint64
	onResult func(*types.LandmarkFrame, posture.FrameResult)

	acquireFailures int
}

// NewRunner creates a runner. slot may be nil when nothing consumes payloads.
func NewRunner(src source.Source, proc Processor, slot *publish.Slot, m *metrics.Metrics, cfg Config) *Runner {
	return &Runner{
		src:     src,
		proc:    proc,
		slot:    slot,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// OnResult registers a callback invoked after every processed frame,
// including failed ones. Call before Run.
func (r *Runner) OnResult(fn func(*types.LandmarkFrame, posture.FrameResult)) {
	r.onResult = fn
}

// Run loops until ctx is done or the source is exhausted. Acquisition and
// frame errors are absorbed; Run only returns nil.
func (r *Runner) Run(ctx context.Context) error {
	logger.Info("Engine", "Analysis loop started (retry=%v, error_pause=%v, interval=%v, frame_time=%v)",
		r.cfg.RetryDelay, r.cfg.ErrorPause, r.cfg.FrameInterval, r.cfg.UseFrameTime)
	defer logger.Info("Engine", "Analysis loop stopped after %d payloads", r.seq)

	for ctx.Err() == nil {
		frame, err := r.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("Engine", "Source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			r.acquireFailed(err)
			sleepCtx(ctx, r.cfg.RetryDelay)
			continue
		}
		if r.acquireFailures > 0 {
			logger.Info("Engine", "Acquisition recovered after %d errors", r.acquireFailures)
			r.acquireFailures = 0
		}

		r.metrics.FramesRead.Add(1)
		res := r.Step(frame)
		if res.Outcome == posture.OutcomeFailed {
			sleepCtx(ctx, r.cfg.ErrorPause)
			continue
		}
		sleepCtx(ctx, r.cfg.FrameInterval)
	}
	return nil
}

func (r *Runner) acquireFailed(err error) {
	r.metrics.AcquireErrors.Add(1)
	r.acquireFailures++
	if r.acquireFailures == 1 || r.acquireFailures%60 == 0 {
		if errors.Is(err, source.ErrNoFrame) {
			logger.Warn("Engine", "No frame (%d in a row): %v", r.acquireFailures, err)
		} else {
			logger.Error("Engine", "Frame acquisition failed (%d in a row): %v", r.acquireFailures, err)
		}
	}
}

// Step processes one frame, updates metrics and publishes the payload. A
// panic inside the pipeline becomes an OutcomeFailed result.
func (r *Runner) Step(frame *types.LandmarkFrame) posture.FrameResult {
	start := time.Now()
	res := r.process(frame, r.clock(frame))
	r.metrics.UpdateProcessLatency(time.Since(start))

	switch res.Outcome {
	case posture.OutcomeFailed:
		r.metrics.FramesFailed.Add(1)
		logger.Error("Engine", "Frame %d failed: %v", frameNum(frame), res.Err)
	case posture.OutcomeNoSubject:
		r.metrics.FramesNoSubject.Add(1)
	case posture.OutcomeAnalyzed:
		r.metrics.FramesAnalyzed.Add(1)
		r.metrics.UpdateFrameLatency(frame.Timestamp)
		logger.Debug("Engine", "Frame %d angle=%.1f (smoothed %.1f) neck=%.3f (smoothed %.3f) counter=%d",
			frame.FrameNum, res.Features.TrunkAngle, res.Smoothed.Angle,
			res.Features.NeckOffset, res.Smoothed.NeckOffset, res.Counter)
	}

	if res.Outcome != posture.OutcomeFailed {
		r.record(res)
		r.publish(res)
	}
	if r.onResult != nil {
		r.onResult(frame, res)
	}
	return res
}

func (r *Runner) process(frame *types.LandmarkFrame, now time.Time) (res posture.FrameResult) {
	defer func() {
		if p := recover(); p != nil {
			res = posture.FrameResult{Outcome: posture.OutcomeFailed, Err: fmt.Errorf("pipeline panic: %v", p)}
		}
	}()
	return r.proc.Process(frame, now)
}

// clock picks the observation time for a frame. With UseFrameTime an
// unstamped frame reuses the previous stamp, so the clock never switches
// between recorded and wall time mid-stream.
func (r *Runner) clock(frame *types.LandmarkFrame) time.Time {
	if !r.cfg.UseFrameTime {
		return r.now()
	}
	if frame != nil && !frame.Timestamp.IsZero() {
		r.frameTime = frame.Timestamp
	}
	if r.frameTime.IsZero() {
		return r.now()
	}
	return r.frameTime
}

func (r *Runner) record(res posture.FrameResult) {
	m := r.metrics
	m.DebounceCounter.Store(uint64(res.Counter))
	metrics.SetFlag(&m.AlarmActive, res.Alarm)
	metrics.SetFlag(&m.SedentaryActive, res.Status.Sedentary)
	m.SitSeconds.Store(uint64(res.Session.ElapsedSec))
	m.UpdateFilter(res.Smoothed.Angle, res.Smoothed.NeckOffset)

	switch res.Event {
	case posture.SessionStarted:
		m.SessionsStarted.Add(1)
		logger.Info("Session", "Session %s started", res.Session.ID)
	case posture.SessionEnded:
		m.SessionsEnded.Add(1)
		logger.Info("Session", "Session ended after %d missed frames", res.Session.MissedFrames)
	}
}

func (r *Runner) publish(res posture.FrameResult) {
	if r.slot == nil {
		return
	}
	r.seq++
	ev, err := publish.NewEvent(r.seq, r.now(), res.Payload)
	if err != nil {
		logger.Error("Engine", "Building event: %v", err)
		return
	}
	if r.slot.Put(ev) {
		r.metrics.PayloadsDropped.Add(1)
	}
}

func frameNum(f *types.LandmarkFrame) uint64 {
	if f == nil {
		return 0
	}
	return f.FrameNum
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
