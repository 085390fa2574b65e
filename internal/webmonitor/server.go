// Package webmonitor serves the posture dashboard and its push feeds.
package webmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
	"github.com/dj-oyu/smart-posture/posture-server/internal/webrtc"
)

const maxOfferBytes = 64 << 10

// OfferHandler answers WebRTC offers.
type OfferHandler interface {
	HandleOffer(ctx context.Context, offerJSON []byte) ([]byte, error)
}

// Deps are the collaborators the monitor reads from. Nil members disable
// the routes that need them.
type Deps struct {
	Slot     *publish.Slot
	Sessions SessionReader
	Metrics  *metrics.Metrics
	Ingest   http.Handler // POST /api/landmarks
	WebRTC   OfferHandler
}

// Server serves the web monitor endpoints.
type Server struct {
	cfg         Config
	monitor     *Monitor
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
	ingest      http.Handler
	webrtc      OfferHandler
}

// NewServer returns a configured monitor server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.MJPEGInterval <= 0 {
		cfg.MJPEGInterval = DefaultConfig().MJPEGInterval
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultConfig().KeepAlive
	}

	return &Server{
		cfg:         cfg,
		monitor:     NewMonitor(deps.Slot, deps.Sessions, deps.Metrics),
		broadcaster: NewBroadcaster(deps.Metrics),
		metrics:     deps.Metrics,
		ingest:      deps.Ingest,
		webrtc:      deps.WebRTC,
	}
}

// Broadcaster returns the push fan-out; register it with the dispatcher.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Close disconnects all push clients.
func (s *Server) Close() {
	s.broadcaster.Stop()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	if s.cfg.AssetsDir != "" {
		mux.Handle("/assets/", http.StripPrefix("/assets/", newAssetHandler(s.cfg.AssetsDir)))
	}
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/card.jpg", s.handleCard)
	mux.HandleFunc("/api/landmarks", s.handleLandmarks)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	streamEventsFromChannel(w, r, eventCh, s.monitor.Latest(), wantsProtobuf(r), s.cfg.KeepAlive)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.ClientConnected()
		defer s.metrics.ClientDisconnected()
	}
	streamMJPEG(w, r, s.cfg.MJPEGInterval, s.monitor.Card)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	data, err := s.monitor.Card()
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) handleLandmarks(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeJSONWithStatus(w, map[string]any{"error": "landmark ingest is not enabled"}, http.StatusNotFound)
		return
	}
	s.ingest.ServeHTTP(w, r)
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.webrtc == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC is not enabled"}, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxOfferBytes))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}
	if payload["sdp"] == nil || payload["type"] == nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.webrtc.HandleOffer(r.Context(), body)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, webrtc.ErrTooManyClients) {
			status = http.StatusServiceUnavailable
		}
		logger.Warn("WebMonitor", "WebRTC offer failed: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
