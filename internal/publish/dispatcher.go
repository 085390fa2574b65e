package publish

import (
	"context"
	"errors"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
)

// DefaultSinkTimeout bounds one Publish call.
const DefaultSinkTimeout = 2 * time.Second

// Sink receives every dispatched event.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev *Event) error
}

// Dispatcher drains a Slot and fans each event out to the sinks in order.
// Sink failures are counted and logged; they never stop dispatching.
type Dispatcher struct {
	slot     *Slot
	sinks    []Sink
	metrics  *metrics.Metrics
	timeout  time.Duration
	failures map[string]int
}

// NewDispatcher creates a dispatcher over slot.
func NewDispatcher(slot *Slot, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		slot:     slot,
		sinks:    sinks,
		metrics:  m,
		timeout:  DefaultSinkTimeout,
		failures: make(map[string]int),
	}
}

// Add registers another sink. Call before Run.
func (d *Dispatcher) Add(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Sinks returns the registered sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Run dispatches until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger.Info("Dispatcher", "Starting with sinks %v", d.Sinks())
	for {
		ev, err := d.slot.Take(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		d.Dispatch(ctx, ev)
	}
}

// Dispatch delivers ev to every sink. The event counts as published once
// any sink accepts it.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) {
	delivered := false
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Publish(sctx, ev)
		cancel()

		name := s.Name()
		if err != nil {
			d.metrics.SinkErrors.Add(1)
			d.failures[name]++
			if n := d.failures[name]; n == 1 || n%100 == 0 {
				logger.Warn("Dispatcher", "Sink %s failed (%d consecutive): %v", name, n, err)
			}
			continue
		}
		delivered = true
		if n := d.failures[name]; n > 0 {
			logger.Info("Dispatcher", "Sink %s recovered after %d errors", name, n)
			d.failures[name] = 0
		}
	}
	if delivered {
		d.metrics.PayloadsPublished.Add(1)
	}
}
