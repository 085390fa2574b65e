package webmonitor

import "time"

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr          string
	AssetsDir     string // Optional; served under /assets/
	MJPEGInterval time.Duration
	KeepAlive     time.Duration // SSE keepalive comment interval
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          ":5000",
		MJPEGInterval: 200 * time.Millisecond,
		KeepAlive:     30 * time.Second,
	}
}
