// Package config assembles the server configuration from defaults, an
// optional YAML file and POSTURE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Profiles select the posture tuning preset.
const (
	ProfileTesting = "testing"
	ProfileOffice  = "office"
)

// Source kinds.
const (
	SourceHTTP   = "http"
	SourceMQTT   = "mqtt"
	SourceReplay = "replay"
)

// Config is the full runtime configuration of posture_server.
type Config struct {
	Profile string         `yaml:"profile"`
	Posture posture.Config `yaml:"posture"`
	Server  ServerConfig   `yaml:"server"`
	Source  SourceConfig   `yaml:"source"`
	Engine  EngineConfig   `yaml:"engine"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Redis   RedisConfig    `yaml:"redis"`
	Log     LogConfig      `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the web monitor.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	AssetsDir        string        `yaml:"assets_dir"`
	MJPEGInterval    time.Duration `yaml:"mjpeg_interval"`
	KeepAlive        time.Duration `yaml:"keepalive"`
	MaxWebRTCClients int           `yaml:"max_webrtc_clients"`
	ICEServers       []string      `yaml:"ice_servers"`
}

// SourceConfig selects where landmark frames come from.
type SourceConfig struct {
	Kind       string        `yaml:"kind"`        // http, mqtt or replay
	ReplayPath string        `yaml:"replay_path"` // JSON lines, one frame per line
	StaleAfter time.Duration `yaml:"stale_after"` // Live sources report ErrNoFrame after this long without input
}

// EngineConfig tunes the analysis loop.
type EngineConfig struct {
	RetryDelay    time.Duration `yaml:"retry_delay"`    // Pause after an acquisition error
	ErrorPause    time.Duration `yaml:"error_pause"`    // Pause after a failed frame
	FrameInterval time.Duration `yaml:"frame_interval"` // Yield between frames
	UseFrameTime  bool          `yaml:"use_frame_time"` // Use the frame timestamp as the clock
}

// MQTTConfig configures the broker connection shared by the MQTT source and sink.
type MQTTConfig struct {
	Broker        string `yaml:"broker"`
	ClientID      string `yaml:"client_id"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	QoS           byte   `yaml:"qos"`
	LandmarkTopic string `yaml:"landmark_topic"`
	AlertTopic    string `yaml:"alert_topic"` // Empty disables the MQTT sink
}

// RedisConfig configures the Redis pub/sub sink.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables the sink
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	Color  bool   `yaml:"color"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Dedicated listener; /metrics is always on the main server too
}

// DefaultConfig returns the bench-testing configuration.
func DefaultConfig() Config {
	return Config{
		Profile: ProfileTesting,
		Posture: posture.DefaultConfig(),
		Server: ServerConfig{
			Addr:             ":5000",
			MJPEGInterval:    200 * time.Millisecond,
			KeepAlive:        30 * time.Second,
			MaxWebRTCClients: 10,
			ICEServers:       []string{"stun:stun.l.google.com:19302"},
		},
		Source: SourceConfig{
			Kind:       SourceHTTP,
			StaleAfter: 2 * time.Second,
		},
		Engine: EngineConfig{
			RetryDelay:    time.Second,
			ErrorPause:    time.Second,
			FrameInterval: 10 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			ClientID:      "posture-server",
			LandmarkTopic: "posture/landmarks",
		},
		Redis: RedisConfig{
			Channel: "posture:alerts",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Color:  true,
		},
	}
}

// ForProfile returns DefaultConfig with the posture preset of the named profile.
func ForProfile(profile string) (Config, error) {
	cfg := DefaultConfig()
	switch profile {
	case "", ProfileTesting:
	case ProfileOffice:
		cfg.Profile = ProfileOffice
		cfg.Posture = posture.OfficeConfig()
	default:
		return cfg, fmt.Errorf("%w: unknown profile %q", ErrInvalid, profile)
	}
	return cfg, nil
}

// Load builds a Config for profile (empty keeps the file's choice) and
// overlays the YAML file at path when path is non-empty.
func Load(path, profile string) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		// The profile decides the defaults the rest of the file overrides.
		var head struct {
			Profile string `yaml:"profile"`
		}
		if err := yaml.Unmarshal(data, &head); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if profile == "" {
			profile = head.Profile
		}
	}

	cfg, err := ForProfile(profile)
	if err != nil {
		return Config{}, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if profile != "" {
			cfg.Profile = profile
		}
	}
	return cfg, nil
}

// Validate checks the whole configuration. Every failure wraps ErrInvalid.
func (c Config) Validate() error {
	if err := c.Posture.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var problems []string
	switch c.Source.Kind {
	case SourceHTTP:
	case SourceMQTT:
		if c.MQTT.Broker == "" || c.MQTT.LandmarkTopic == "" {
			problems = append(problems, "mqtt source needs mqtt.broker and mqtt.landmark_topic")
		}
	case SourceReplay:
		if c.Source.ReplayPath == "" {
			problems = append(problems, "replay source needs source.replay_path")
		}
	default:
		problems = append(problems, fmt.Sprintf("source.kind must be http, mqtt or replay, got %q", c.Source.Kind))
	}
	if c.MQTT.QoS > 2 {
		problems = append(problems, fmt.Sprintf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.MQTT.AlertTopic != "" && c.MQTT.Broker == "" {
		problems = append(problems, "mqtt.alert_topic needs mqtt.broker")
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		problems = append(problems, "redis.channel must be set when redis.addr is")
	}
	if c.Source.StaleAfter < 0 {
		problems = append(problems, "source.stale_after must be >= 0")
	}
	if c.Engine.RetryDelay < 0 || c.Engine.ErrorPause < 0 || c.Engine.FrameInterval < 0 {
		problems = append(problems, "engine delays must be >= 0")
	}
	if c.Server.MJPEGInterval <= 0 {
		problems = append(problems, "server.mjpeg_interval must be > 0")
	}
	if c.Server.MaxWebRTCClients < 0 {
		problems = append(problems, "server.max_webrtc_clients must be >= 0")
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		problems = append(problems, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
