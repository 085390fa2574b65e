package publish

import (
	"context"
)

// Publisher is the part of the MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink publishes payload JSON to an alert topic, not retained.
type MQTTSink struct {
	pub   Publisher
	topic string
	qos   byte
}

// NewMQTTSink creates a sink on topic.
func NewMQTTSink(pub Publisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic, qos: qos}
}

// Name implements Sink.
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Publish implements Sink. The client applies its own timeout.
func (s *MQTTSink) Publish(ctx context.Context, ev *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.pub.Publish(s.topic, s.qos, false, ev.JSON)
}
