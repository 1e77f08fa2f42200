// Package app implements the main application commands.
package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memberportal/memberportal/internal/config"
	"github.com/memberportal/memberportal/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "memberportal",
	Short: "Member portal with approval based sign-in",
	Long: `memberportal serves the member portal API. New registrations wait
for an administrator, and only active accounts keep a session.`,
	Args:          cobra.OnlyValidArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var (
	configPath string // Path to the configuration directory
	cfg        *config.Config
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory holding main.toml (default ./etc/)")
}

// loadConfig reads the config and initializes logging.
func loadConfig(devMode bool) error {
	c, err := config.ReadConfig(configPath)
	if err != nil {
		return err //nolint:wrapcheck
	}

	cfg = &c

	if devMode {
		cfg.DevMode = true
	}

	return logger.Init(cfg.Log) //nolint:wrapcheck
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background()) //nolint:wrapcheck
}
