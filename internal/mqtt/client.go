// Package mqtt wraps the paho client with the small surface the landmark
// source and the alert sink need.
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/dj-oyu/smart-posture/posture-server/internal/config"
	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 2 * time.Second
	disconnectWait = 250 // ms
)

// MessageHandler handles one inbound message.
type MessageHandler func(topic string, payload []byte) error

// Client is a connected MQTT client.
type Client struct {
	client paho.Client
	cfg    config.MQTTConfig
}

// NewClient connects to the configured broker.
func NewClient(cfg config.MQTTConfig) (*Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT", "Connection to %s lost: %v", cfg.Broker, err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("MQTT", "Connected to %s as %s", cfg.Broker, cfg.ClientID)
	})

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out after %v", cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}

	return &Client{client: client, cfg: cfg}, nil
}

// Subscribe registers handler for topic. Handler errors are logged; they do
// not affect the subscription.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := c.client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			logger.Warn("MQTT", "Handling message on %s: %v", msg.Topic(), err)
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Publish sends payload to topic and waits for the broker handshake of the QoS.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to topic %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe drops topic subscriptions.
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectWait)
}

// IsConnected reports the connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
