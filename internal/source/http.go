package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

const maxFrameBody = 1 << 20

// HTTPSource receives frames posted by the pose estimator, one JSON frame
// per request.
type HTTPSource struct {
	box        *mailbox
	staleAfter time.Duration
}

// NewHTTPSource creates an HTTP ingest source. Next reports ErrNoFrame when
// nothing arrives for staleAfter (zero waits forever).
func NewHTTPSource(staleAfter time.Duration) *HTTPSource {
	return &HTTPSource{box: newMailbox(), staleAfter: staleAfter}
}

// Next returns the newest frame not yet handed out.
func (s *HTTPSource) Next(ctx context.Context) (*types.LandmarkFrame, error) {
	return s.box.next(ctx, s.staleAfter)
}

// Close implements Source.
func (s *HTTPSource) Close() error {
	return nil
}

// Dropped returns how many frames were replaced before being read.
func (s *HTTPSource) Dropped() uint64 {
	return s.box.dropped.Load()
}

// ServeHTTP handles POST /api/landmarks.
func (s *HTTPSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	frame, err := DecodeFrame(body)
	if err != nil {
		logger.Debug("HTTPSource", "Rejected frame from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.box.put(frame)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "accepted",
		"frame_number": frame.FrameNum,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
