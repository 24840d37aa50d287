package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voicebot/internal/config"
	"github.com/teslashibe/go-voicebot/internal/log"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "voicebot",
		Short: "Voice front-end for the robot",
		Long: `voicebot runs the tap-to-talk conversation loop on the robot.

Commands:
  run       Start the conversation loop, web interface and robot bridge
  probe     Dial the robot and print which call shapes it supports
  config    Print the effective configuration
  version   Version information

Configuration is read from --config, then ROBOT_IP, BACKEND_URL,
BACKEND_TOKEN, REDIS_URL, LOG_LEVEL and GO_ENV override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("VOICEBOT_CONFIG"), "config file (YAML)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debug logging")

	cmd.AddCommand(
		newRunCmd(opts),
		newProbeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and installs the logger.
func (o *rootOptions) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	logger := log.InitWriter(os.Stderr, cfg.LogLevel, cfg.Production())
	return cfg, logger, nil
}
