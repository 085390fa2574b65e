package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dj-oyu/smart-posture/posture-server/internal/config"
	"github.com/dj-oyu/smart-posture/posture-server/internal/engine"
	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/mqtt"
	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
	"github.com/dj-oyu/smart-posture/posture-server/internal/publish"
	"github.com/dj-oyu/smart-posture/posture-server/internal/source"
	"github.com/dj-oyu/smart-posture/posture-server/internal/webmonitor"
	"github.com/dj-oyu/smart-posture/posture-server/internal/webrtc"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live posture pipeline and web monitor",
	Long: `Starts the analysis loop on the configured landmark source and serves the
dashboard, SSE, WebSocket, MJPEG and WebRTC feeds over HTTP.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().String("source", "", "Landmark source: http, mqtt or replay")
	serveCmd.Flags().String("replay-path", "", "JSON lines file for the replay source")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if kind, _ := cmd.Flags().GetString("source"); kind != "" {
		cfg.Source.Kind = kind
	}
	if path, _ := cmd.Flags().GetString("replay-path"); path != "" {
		cfg.Source.ReplayPath = path
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := initLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Main", "Posture server starting...")
	logger.Info("Main", "Log level: %s", level)
	logBanner(cfg)

	srv, err := newServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrors := srv.Start()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Main", "Shutting down... Signal: %v", sig)
	case err := <-serverErrors:
		logger.Error("Main", "HTTP server error: %v", err)
		runErr = err
	}

	if err := srv.Shutdown(); err != nil {
		logger.Warn("Main", "Error during shutdown: %v", err)
	}
	logger.Info("Main", "Server stopped")
	return runErr
}

func logBanner(cfg config.Config) {
	p := cfg.Posture
	logger.Info("Main", "  Profile: %s", cfg.Profile)
	logger.Info("Main", "  Angle threshold: %.1f deg", p.AngleThreshold)
	logger.Info("Main", "  Neck offset threshold: %.3f", p.NeckOffsetThreshold)
	logger.Info("Main", "  Smoothing factor: %.2f", p.SmoothFactor)
	logger.Info("Main", "  Alarm trigger frames: %d", p.AlarmTriggerFrames)
	logger.Info("Main", "  Grace frames: %d", p.GraceFrames)
	logger.Info("Main", "  Sedentary limit: %ds", p.SedentaryLimitSec)
	logger.Info("Main", "  Body side: %s (facing %s)", p.Side, p.Facing)
	logger.Info("Main", "  Landmark source: %s", cfg.Source.Kind)
	logger.Info("Main", "  HTTP server: %s", cfg.Server.Addr)
	if cfg.Metrics.Addr != "" {
		logger.Info("Main", "  Metrics server: %s", cfg.Metrics.Addr)
	}
}

// Server is the running posture service.
type Server struct {
	cfg    config.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics    *metrics.Metrics
	pipeline   *posture.Pipeline
	src        source.Source
	runner     *engine.Runner
	dispatcher *publish.Dispatcher
	monitor    *webmonitor.Server
	webrtc     *webrtc.Server
	mqtt       *mqtt.Client
	redis      *publish.RedisSink
	httpServer *http.Server
}

func newServer(cfg config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		metrics:  metrics.New(),
		pipeline: posture.NewPipeline(cfg.Posture),
	}

	if cfg.Source.Kind == config.SourceMQTT || cfg.MQTT.AlertTopic != "" {
		client, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			cancel()
			return nil, err
		}
		s.mqtt = client
	}

	deps := webmonitor.Deps{
		Sessions: s.pipeline.Sessions(),
		Metrics:  s.metrics,
	}

	switch cfg.Source.Kind {
	case config.SourceHTTP:
		httpSrc := source.NewHTTPSource(cfg.Source.StaleAfter)
		s.src = httpSrc
		deps.Ingest = httpSrc
	case config.SourceMQTT:
		mqttSrc, err := source.NewMQTTSource(s.mqtt, cfg.MQTT.LandmarkTopic, cfg.MQTT.QoS, cfg.Source.StaleAfter)
		if err != nil {
			s.closeClients()
			cancel()
			return nil, err
		}
		s.src = mqttSrc
	case config.SourceReplay:
		replaySrc, err := source.OpenReplay(cfg.Source.ReplayPath)
		if err != nil {
			s.closeClients()
			cancel()
			return nil, err
		}
		s.src = replaySrc
	}

	slot := publish.NewSlot()
	deps.Slot = slot

	if cfg.Server.MaxWebRTCClients > 0 {
		s.webrtc = webrtc.NewServer(cfg.Server.ICEServers, cfg.Server.MaxWebRTCClients, s.metrics)
		deps.WebRTC = s.webrtc
	}

	s.monitor = webmonitor.NewServer(webmonitor.Config{
		Addr:          cfg.Server.Addr,
		AssetsDir:     cfg.Server.AssetsDir,
		MJPEGInterval: cfg.Server.MJPEGInterval,
		KeepAlive:     cfg.Server.KeepAlive,
	}, deps)

	s.dispatcher = publish.NewDispatcher(slot, s.metrics, s.monitor.Broadcaster())
	if s.webrtc != nil {
		s.dispatcher.Add(s.webrtc)
	}
	if cfg.Redis.Addr != "" {
		s.redis = publish.NewRedisSink(publish.NewRedisClient(cfg.Redis), cfg.Redis.Channel)
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.redis.Ping(pingCtx); err != nil {
			// The sink keeps retrying on every payload; failures are counted.
			logger.Warn("Main", "Redis %s not reachable yet: %v", cfg.Redis.Addr, err)
		}
		pingCancel()
		s.dispatcher.Add(s.redis)
	}
	if cfg.MQTT.AlertTopic != "" {
		s.dispatcher.Add(publish.NewMQTTSink(s.mqtt, cfg.MQTT.AlertTopic, cfg.MQTT.QoS))
	}

	s.runner = engine.NewRunner(s.src, s.pipeline, slot, s.metrics, engine.Config{
		RetryDelay:    cfg.Engine.RetryDelay,
		ErrorPause:    cfg.Engine.ErrorPause,
		FrameInterval: cfg.Engine.FrameInterval,
		UseFrameTime:  cfg.Engine.UseFrameTime,
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.monitor.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Streaming handlers end when the service context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	return s, nil
}

// Start launches the HTTP servers and the analysis goroutines. Listener
// failures are reported on the returned channel.
func (s *Server) Start() <-chan error {
	serverErrors := make(chan error, 1)

	if addr := s.cfg.Metrics.Addr; addr != "" {
		go func() {
			logger.Info("Main", "Starting metrics server on %s", addr)
			if err := s.metrics.StartServer(addr); err != nil {
				logger.Warn("Main", "Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		logger.Info("Main", "Starting HTTP server on %s", s.cfg.Server.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	logger.Info("Main", "Payload sinks: %v", s.dispatcher.Sinks())

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = s.dispatcher.Run(s.ctx)
	}()
	go func() {
		defer s.wg.Done()
		_ = s.runner.Run(s.ctx)
		if s.ctx.Err() == nil {
			logger.Info("Main", "Landmark source finished; still serving the last state")
		}
	}()

	logger.Info("Main", "Server started successfully")
	return serverErrors
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	// Cancel context to stop goroutines
	s.cancel()

	// Unblocks a source waiting for input
	if err := s.src.Close(); err != nil {
		logger.Warn("Main", "Closing landmark source: %v", err)
	}

	// Wait for goroutines
	s.wg.Wait()

	// Close push clients before draining HTTP
	s.monitor.Close()
	if s.webrtc != nil {
		s.webrtc.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		logger.Warn("Main", "Graceful shutdown did not complete in %v: %v", shutdownTimeout, err)
		err = s.httpServer.Close()
	}

	s.closeClients()
	return err
}

func (s *Server) closeClients() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logger.Warn("Main", "Closing Redis client: %v", err)
		}
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
}
