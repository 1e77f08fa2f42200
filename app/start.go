package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the member portal web service",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig(devMode)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.DevMode {
				if dump, err := config.DumpConfig(cfg); err == nil {
					log.Debug().Msg("effective config:\n" + dump)
				}
			}

			d, err := daemon.New(cmd.Context(), cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			return d.Start(cmd.Context()) //nolint:wrapcheck
		},
	}
)
