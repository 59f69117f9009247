package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/authprx/internal/presentation"
	registry "github.com/zjrosen/authprx/internal/registry/application"
)

var apiListCmd = &cobra.Command{
	Use:   "api:list",
	Short: "List registered API names",
	Long: `List the names of all registered APIs as a JSON array, in byte order.

Examples:
  authprx api:list
  authprx api:list | jq length`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		reg, shutdown, err := openRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		return listApis(ctx, cmd.OutOrStdout(), reg)
	},
}

func init() {
	rootCmd.AddCommand(apiListCmd)
}

func listApis(ctx context.Context, out io.Writer, reg *registry.Registry) error {
	names, err := reg.List(ctx)
	if err != nil {
		return err
	}
	return presentation.NewFormatter(out).FormatNames(names)
}
