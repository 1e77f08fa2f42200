package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memberportal/memberportal/internal/daemon"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(groupsCmd)
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Print the group directory computed from the stored profiles",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig(false)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		groups, err := daemon.Groups(cmd.Context(), cfg)
		if err != nil {
			return err //nolint:wrapcheck
		}

		for _, g := range groups {
			fmt.Fprintln(cmd.OutOrStdout(), g)
		}

		return nil
	},
}
