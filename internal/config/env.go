package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
)

// envReader collects the first parse error so callers can apply a whole
// section and check once.
type envReader struct {
	err error
}

func (r *envReader) str(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = n
}

func (r *envReader) float(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = f
}

func (r *envReader) boolean(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" || r.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = d
}

// LoadFromEnv overrides fields from <prefix>_* environment variables.
func (c *Config) LoadFromEnv(prefix string) error {
	r := &envReader{}

	r.str(prefix+"_ADDR", &c.Server.Addr)
	r.str(prefix+"_ASSETS_DIR", &c.Server.AssetsDir)
	r.str(prefix+"_SOURCE", &c.Source.Kind)
	r.str(prefix+"_REPLAY_PATH", &c.Source.ReplayPath)
	r.str(prefix+"_METRICS_ADDR", &c.Metrics.Addr)
	r.boolean(prefix+"_USE_FRAME_TIME", &c.Engine.UseFrameTime)
	r.duration(prefix+"_FRAME_INTERVAL", &c.Engine.FrameInterval)

	r.str(prefix+"_LOG_LEVEL", &c.Log.Level)
	r.str(prefix+"_LOG_FORMAT", &c.Log.Format)
	r.boolean(prefix+"_LOG_COLOR", &c.Log.Color)

	(*postureEnv)(&c.Posture).apply(r, prefix)
	if r.err != nil {
		return r.err
	}

	if err := c.MQTT.LoadFromEnv(prefix + "_MQTT"); err != nil {
		return err
	}
	return c.Redis.LoadFromEnv(prefix + "_REDIS")
}

// postureEnv lets the posture tunables be read from the environment without
// teaching package posture about env vars.
type postureEnv posture.Config

func (c *postureEnv) apply(r *envReader, prefix string) {
	r.float(prefix+"_ANGLE_THRESHOLD", &c.AngleThreshold)
	r.float(prefix+"_NECK_OFFSET_THRESHOLD", &c.NeckOffsetThreshold)
	r.float(prefix+"_SMOOTH_FACTOR", &c.SmoothFactor)
	r.integer(prefix+"_ALARM_TRIGGER_FRAMES", &c.AlarmTriggerFrames)
	r.integer(prefix+"_GRACE_FRAMES", &c.GraceFrames)
	r.integer(prefix+"_SEDENTARY_LIMIT_SEC", &c.SedentaryLimitSec)
	r.float(prefix+"_MIN_VISIBILITY", &c.MinVisibility)

	var side, facing string
	r.str(prefix+"_SIDE", &side)
	r.str(prefix+"_FACING", &facing)
	if side != "" {
		c.Side = posture.BodySide(strings.ToLower(side))
	}
	if facing != "" {
		c.Facing = posture.Facing(strings.ToLower(facing))
	}
}

// LoadFromEnv overrides MQTT settings from <prefix>_* environment variables.
func (c *MQTTConfig) LoadFromEnv(prefix string) error {
	r := &envReader{}
	r.str(prefix+"_BROKER", &c.Broker)
	r.str(prefix+"_CLIENT_ID", &c.ClientID)
	r.str(prefix+"_USERNAME", &c.Username)
	r.str(prefix+"_PASSWORD", &c.Password)
	r.str(prefix+"_LANDMARK_TOPIC", &c.LandmarkTopic)
	r.str(prefix+"_ALERT_TOPIC", &c.AlertTopic)

	qos := int(c.QoS)
	r.integer(prefix+"_QOS", &qos)
	if r.err == nil {
		c.QoS = byte(qos)
	}
	return r.err
}

// LoadFromEnv overrides Redis settings from <prefix>_* environment variables.
func (c *RedisConfig) LoadFromEnv(prefix string) error {
	r := &envReader{}
	r.str(prefix+"_ADDR", &c.Addr)
	r.str(prefix+"_PASSWORD", &c.Password)
	r.str(prefix+"_CHANNEL", &c.Channel)
	r.integer(prefix+"_DB", &c.DB)
	return r.err
}
