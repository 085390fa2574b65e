// Package source delivers landmark frames to the analysis loop.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// ErrNoFrame reports a transient acquisition failure. The caller should
// pause and try again; it is not a "nobody detected" frame.
var ErrNoFrame = errors.New("no frame available")

// maxLandmarks bounds decoded frames from untrusted producers.
const maxLandmarks = 512

// Source yields landmark frames. Next blocks until a frame is available, ctx
// is done, or the source gives up. io.EOF means the source is exhausted.
type Source interface {
	Next(ctx context.Context) (*types.LandmarkFrame, error)
	io.Closer
}

// DecodeFrame parses one JSON landmark frame and checks its shape.
func DecodeFrame(data []byte) (*types.LandmarkFrame, error) {
	var f types.LandmarkFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode landmark frame: %w", err)
	}
	if len(f.Landmarks) > maxLandmarks {
		return nil, fmt.Errorf("decode landmark frame: %d landmarks exceeds %d", len(f.Landmarks), maxLandmarks)
	}
	if f.Detected && (f.Width <= 0 || f.Height <= 0) {
		return nil, fmt.Errorf("decode landmark frame: detected frame needs positive size, got %dx%d", f.Width, f.Height)
	}
	for i, lm := range f.Landmarks {
		if !lm.InRange() {
			return nil, fmt.Errorf("decode landmark frame: landmark %d at (%g, %g) outside [%g,%g]",
				i, lm.X, lm.Y, types.MinLandmarkCoord, types.MaxLandmarkCoord)
		}
	}
	return &f, nil
}

// mailbox is a single-slot latest-frame buffer: an unread frame is replaced
// by a newer one, so the analysis loop never works through a backlog.
type mailbox struct {
	ch      chan *types.LandmarkFrame
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan *types.LandmarkFrame, 1)}
}

func (m *mailbox) put(f *types.LandmarkFrame) {
	if f.FrameNum == 0 {
		f.FrameNum = m.seq.Add(1)
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	for {
		select {
		case m.ch <- f:
			return
		default:
		}
		select {
		case <-m.ch:
			m.dropped.Add(1)
		default:
		}
	}
}

func (m *mailbox) next(ctx context.Context, staleAfter time.Duration) (*types.LandmarkFrame, error) {
	var timeout <-chan time.Time
	if staleAfter > 0 {
		t := time.NewTimer(staleAfter)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case f := <-m.ch:
		return f, nil
	case <-timeout:
		return nil, fmt.Errorf("%w: nothing received for %v", ErrNoFrame, staleAfter)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
