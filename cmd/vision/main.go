// Command vision runs the FRC coprocessor vision service: it reads the
// cameras listed in the config file, finds the vision target, publishes the
// result to the shared table and serves annotated streams.
//
// Usage:
//
//	vision [config-path]
//
// The config path defaults to /boot/frc.json.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/frc-vision/internal/config"
	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/app"
)

var (
	logLevel string
	listen   string
	visionOn bool
)

var rootCmd = &cobra.Command{
	Use:   "vision [config-path]",
	Short: "FRC coprocessor vision service",
	Long: `Reads the cameras from the coprocessor config, locates the retroreflective
target on the primary camera and publishes isTargetFound, targetCount,
boundingRectxywh, targetOffset and distanceToTarget to the shared table.

Processing is gated by the isVisionOn table entry.

Examples:
  vision                          # uses /boot/frc.json
  vision ./frc.json --log-level debug
  vision ./frc.json --vision-on   # process without waiting for the robot`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(logLevel)
	},
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address, overrides server.listen")
	rootCmd.Flags().BoolVar(&visionOn, "vision-on", false, "process frames until the robot sets isVisionOn")
}

func run(cmd *cobra.Command, args []string) error {
	path := config.Path(args)
	cfg, err := config.Load(path)
	if err != nil {
		for _, h := range errors.GetAllHints(err) {
			log.Error("hint", "hint", h)
		}
		return err
	}
	for _, w := range cfg.Warnings {
		log.Warn(w, "config", path)
	}

	if listen != "" {
		cfg.Server.Listen = listen
	}
	if cmd.Flags().Changed("vision-on") {
		cfg.Vision.EnabledDefault = visionOn
	}

	a, err := app.New(cfg, log.L())
	if err != nil {
		return err
	}
	if err := a.Init(); err != nil {
		return errors.Wrap(err, "initialization failed")
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("vision service running", "config", path, "listen", cfg.Server.Listen)
	return a.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
