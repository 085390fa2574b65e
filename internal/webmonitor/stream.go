package webmonitor

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
)

// wantsProtobuf does content negotiation on the Accept header.
func wantsProtobuf(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")
}

func eventData(ev *publish.Event, useProtobuf bool) []byte {
	if useProtobuf {
		// SSE is a text protocol
		return ev.ProtobufBase64()
	}
	return ev.JSON
}

// streamEventsFromChannel streams pre-serialized payload events to an SSE client.
// initial, when non-nil, is sent before anything from eventCh.
func streamEventsFromChannel(w http.ResponseWriter, r *http.Request, eventCh <-chan *publish.Event, initial *publish.Event, useProtobuf bool, keepAlive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Add custom header to indicate format
	if useProtobuf {
		w.Header().Set("X-Content-Format", "application/protobuf")
	} else {
		w.Header().Set("X-Content-Format", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if initial != nil {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", eventData(initial, useProtobuf)); err != nil {
			logger.Debug("SSE", "Client disconnected during initial write: %v", err)
			return
		}
		flusher.Flush()
	}

	keepAliveTicker := time.NewTicker(keepAlive)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-eventCh:
			if !ok {
				// Channel closed, client should disconnect
				return
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", eventData(event, useProtobuf)); err != nil {
				logger.Debug("SSE", "Client disconnected during event write: %v", err)
				return
			}
			flusher.Flush()

		case <-keepAliveTicker.C:
			// Send keepalive comment to prevent timeout
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				logger.Debug("SSE", "Client disconnected during keepalive: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

type jpegProvider func() ([]byte, error)

// streamMJPEG sends a multipart JPEG stream, one part per interval, until the
// client goes away.
func streamMJPEG(w http.ResponseWriter, r *http.Request, interval time.Duration, provider jpegProvider) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		jpegData, err := provider()
		if err != nil {
			logger.Warn("MJPEG", "Failed to render card: %v", err)
			return
		}

		// Write frame with error checking - if client disconnected, exit immediately
		if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during write: %v", err)
			return
		}
		if _, err := w.Write(jpegData); err != nil {
			logger.Debug("MJPEG", "Client disconnected during frame write: %v", err)
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			logger.Debug("MJPEG", "Client disconnected during delimiter write: %v", err)
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
