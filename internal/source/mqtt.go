package source

import (
	"context"
	"fmt"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/mqtt"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

// Subscriber is the part of the MQTT client the source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTSource receives JSON landmark frames from a broker topic.
type MQTTSource struct {
	sub        Subscriber
	topic      string
	box        *mailbox
	staleAfter time.Duration
}

// NewMQTTSource subscribes to topic and starts buffering frames.
func NewMQTTSource(sub Subscriber, topic string, qos byte, staleAfter time.Duration) (*MQTTSource, error) {
	s := &MQTTSource{
		sub:        sub,
		topic:      topic,
		box:        newMailbox(),
		staleAfter: staleAfter,
	}
	if err := sub.Subscribe(topic, qos, s.handle); err != nil {
		return nil, fmt.Errorf("landmark source: %w", err)
	}
	return s, nil
}

func (s *MQTTSource) handle(_ string, payload []byte) error {
	frame, err := DecodeFrame(payload)
	if err != nil {
		return err
	}
	s.box.put(frame)
	return nil
}

// Next returns the newest frame not yet handed out.
func (s *MQTTSource) Next(ctx context.Context) (*types.LandmarkFrame, error) {
	return s.box.next(ctx, s.staleAfter)
}

// Close unsubscribes from the landmark topic.
func (s *MQTTSource) Close() error {
	return s.sub.Unsubscribe(s.topic)
}

// Dropped returns how many frames were replaced before being read.
func (s *MQTTSource) Dropped() uint64 {
	return s.box.dropped.Load()
}
