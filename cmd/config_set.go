package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/authprx/internal/config"
	"github.com/zjrosen/authprx/internal/flags"
	"github.com/zjrosen/authprx/internal/paths"
)

var configSetCmd = &cobra.Command{
	Use:   "config:set KEY VALUE",
	Short: "Set a value in the config file",
	Long: `Set KEY to VALUE in the config file in use, keeping its comments.

KEY is a dotted path. Feature flags live under flags.

Examples:
  authprx config:set storage.path /var/lib/authprx/registry.db
  authprx config:set flags.record-cache false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if name, ok := flagName(key); ok && !slices.Contains(flags.Known(), name) {
			return fmt.Errorf("unknown feature flag %q, known flags: %v", name, flags.Known())
		}

		path := viper.ConfigFileUsed()
		if path == "" {
			path = paths.LocalConfigPath()
		}
		if err := config.SetValue(path, key, value); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", key, value, path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configSetCmd)
}

// flagName returns the flag name of a "flags.<name>" key.
func flagName(key string) (string, bool) {
	name, ok := strings.CutPrefix(key, "flags.")
	return name, ok && name != ""
}
