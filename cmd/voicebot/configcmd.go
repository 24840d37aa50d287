package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-voicebot/internal/config"
)

const masked = "********"

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if check {
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			data, err := redact(cfg).Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&check, "validate", false, "fail if the configuration is invalid")
	return cmd
}

// redact hides credentials.
func redact(cfg config.Config) config.Config {
	if cfg.Backend.Auth.Token != "" {
		cfg.Backend.Auth.Token = masked
	}
	if cfg.Backend.Auth.ClientSecret != "" {
		cfg.Backend.Auth.ClientSecret = masked
	}
	if cfg.Journal.Redis.URL != "" {
		cfg.Journal.Redis.URL = redactURL(cfg.Journal.Redis.URL)
	}
	return cfg
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return masked
	}
	return u.Redacted()
}
