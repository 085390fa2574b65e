package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dj-oyu/smart-posture/posture-server/internal/config"
	"github.com/dj-oyu/smart-posture/posture-server/internal/engine"
	"github.com/dj-oyu/smart-posture/posture-server/internal/logger"
	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/internal/posture"
	"github.com/dj-oyu/smart-posture/posture-server/internal/source"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file.jsonl>",
	Short: "Run recorded landmark frames through the pipeline",
	Long: `Reads one JSON landmark frame per line, runs them through the posture pipeline
as fast as possible and prints one payload JSON line per frame to stdout.
Frame timestamps drive the sitting clock unless --wall-clock is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("wall-clock", false, "Use the wall clock instead of frame timestamps")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Source.Kind = config.SourceReplay
	cfg.Source.ReplayPath = args[0]
	if err := cfg.Validate(); err != nil {
		return err
	}

	// stdout carries payloads only
	if _, err := initLogger(cfg.Log, cmd.ErrOrStderr()); err != nil {
		return err
	}
	defer logger.Sync()

	src, err := source.OpenReplay(cfg.Source.ReplayPath)
	if err != nil {
		return err
	}
	defer src.Close()

	wallClock, _ := cmd.Flags().GetBool("wall-clock")
	m := metrics.New()
	runner := engine.NewRunner(src, posture.NewPipeline(cfg.Posture), nil, m, engine.Config{
		UseFrameTime: !wallClock,
	})

	enc := json.NewEncoder(cmd.OutOrStdout())
	var writeErr error
	runner.OnResult(func(_ *types.LandmarkFrame, res posture.FrameResult) {
		if res.Outcome == posture.OutcomeFailed || writeErr != nil {
			return
		}
		writeErr = enc.Encode(res.Payload)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil {
		return err
	}

	logger.Info("Replay", "%s: %d frames, %d analyzed, %d without subject, %d failed, %d unreadable lines",
		cfg.Source.ReplayPath, m.FramesRead.Load(), m.FramesAnalyzed.Load(),
		m.FramesNoSubject.Load(), m.FramesFailed.Load(), m.AcquireErrors.Load())
	return writeErr
}
