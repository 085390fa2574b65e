package webmonitor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
)

// Broadcaster fans payload events out to SSE, WebSocket and MJPEG clients.
// It is a publish.Sink: Publish never blocks on a slow client.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *publish.Event
	nextID  int
	stopped bool
	metrics *metrics.Metrics

	dropped atomic.Uint64
}

// NewBroadcaster creates an empty broadcaster. m may be nil.
func NewBroadcaster(m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		clients: make(map[int]chan *publish.Event),
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving events.
// After Stop the returned channel is already closed.
func (b *Broadcaster) Subscribe() (int, <-chan *publish.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *publish.Event, 2) // Buffer 2 events to avoid blocking
	if b.stopped {
		close(ch)
		return id, ch
	}
	b.clients[id] = ch
	if b.metrics != nil {
		b.metrics.ClientConnected()
	}

	logger.Debug("Broadcaster", "Client #%d subscribed (total clients: %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		if b.metrics != nil {
			b.metrics.ClientDisconnected()
		}
		logger.Debug("Broadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(b.clients))
	}
}

// Name implements publish.Sink.
func (b *Broadcaster) Name() string {
	return "monitor"
}

// Publish hands ev to every client. A client whose buffer is full loses its
// oldest queued event instead of stalling the others.
func (b *Broadcaster) Publish(_ context.Context, ev *publish.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.clients {
		select {
		case ch <- ev:
			continue
		default:
		}

		select {
		case <-ch:
			b.dropped.Add(1)
		default:
		}
		select {
		case ch <- ev:
		default:
			logger.Debug("Broadcaster", "Client #%d buffer full, event %d skipped", id, ev.Seq)
		}
	}
	return nil
}

// ClientCount returns the number of subscribed clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Dropped returns how many queued events were discarded for slow clients.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Stop closes every client channel; streaming handlers then return.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
		if b.metrics != nil {
			b.metrics.ClientDisconnected()
		}
	}
	logger.Info("Broadcaster", "Stopped")
}
