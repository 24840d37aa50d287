package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voicebot/pkg/robot"
	"github.com/teslashibe/go-voicebot/pkg/speech"
)

func newProbeCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Dial the robot and print its supported call shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Robot.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			agent, err := robot.Dial(ctx, cfg.Robot)
			if err != nil {
				return err
			}
			engine := speech.NewEmbodiedEngine(agent, logger)
			motion := robot.NewMotionSurface(agent)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agent:      %s\n", agent.BaseURL())
			fmt.Fprintf(out, "generation: %d\n", agent.Generation())
			fmt.Fprintf(out, "speech:     %s\n", strings.Join(engine.Capabilities(), ", "))
			fmt.Fprintf(out, "motion:     %s\n", strings.Join(motion.Capabilities(), ", "))
			fmt.Fprintf(out, "tts ready:  %v\n", engine.Ready(ctx))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall probe timeout")
	return cmd
}
