package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/authprx/internal/flags"
	"github.com/zjrosen/authprx/internal/presentation"
)

var flagsListCmd = &cobra.Command{
	Use:   "flags:list",
	Short: "Show feature flags and their current values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listFlags(cmd.OutOrStdout(), flags.New(cfg.Flags))
	},
}

func init() {
	rootCmd.AddCommand(flagsListCmd)
}

func listFlags(out io.Writer, featureFlags *flags.Registry) error {
	return presentation.NewFormatter(out).FormatFlags(featureFlags.All())
}
