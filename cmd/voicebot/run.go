package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var mock bool
	var addr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the conversation loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if mock {
				cfg.Mock = true
			}
			if addr != "" {
				cfg.Web.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			webErr := make(chan error, 1)
			go func() {
				if err := a.web.Start(ctx); err != nil {
					webErr <- err
					cancel()
				}
			}()

			logger.Info("voicebot running", "web", cfg.Web.Addr, "mock", cfg.Mock)
			err = a.controller.Run(ctx)
			if shutdownErr := a.web.Shutdown(); shutdownErr != nil {
				logger.Warn("web shutdown", "error", shutdownErr)
			}

			select {
			case werr := <-webErr:
				return werr
			default:
			}
			if errors.Is(err, context.Canceled) {
				logger.Info("voicebot stopped")
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&mock, "mock", false, "run without a robot or backend")
	cmd.Flags().StringVar(&addr, "addr", "", "web interface address (overrides config)")
	return cmd
}
