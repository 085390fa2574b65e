package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

const maxReplayLine = 4 << 20

// ReplaySource reads recorded frames from JSON lines, one frame per line.
// Blank lines are skipped; a malformed line yields ErrNoFrame and reading
// continues with the next one.
type ReplaySource struct {
	sc     *bufio.Scanner
	closer io.Closer
	line   int
}

// NewReplaySource reads frames from r.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	s := &ReplaySource{sc: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenReplay opens a JSON lines recording.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return NewReplaySource(f), nil
}

// Next returns the next recorded frame, or io.EOF at the end of the input.
func (s *ReplaySource) Next(ctx context.Context) (*types.LandmarkFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for s.sc.Scan() {
		s.line++
		data := bytes.TrimSpace(s.sc.Bytes())
		if len(data) == 0 {
			continue
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrNoFrame, s.line, err)
		}
		if frame.FrameNum == 0 {
			frame.FrameNum = uint64(s.line)
		}
		return frame, nil
	}

	if err := s.sc.Err(); err != nil {
		return nil, fmt.Errorf("replay line %d: %w", s.line+1, err)
	}
	return nil, io.EOF
}

// Close closes the underlying reader when it is closable.
func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
