package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/authprx/internal/presentation"
	registry "github.com/zjrosen/authprx/internal/registry/application"
)

var apiGetCmd = &cobra.Command{
	Use:   "api:get NAME",
	Short: "Show a registered API",
	Long: `Print the API registered under NAME as JSON.

Exits non-zero when NAME is not registered or its stored record cannot
be decoded.

Examples:
  authprx api:get billing
  authprx api:get billing | jq '.protected_paths[]'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, shutdown, err := openRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		return getApi(ctx, cmd.OutOrStdout(), reg, args[0])
	},
}

func init() {
	rootCmd.AddCommand(apiGetCmd)
}

func getApi(ctx context.Context, out io.Writer, reg *registry.Registry, name string) error {
	api, found, err := reg.Get(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("api %s not found", name)
	}
	return presentation.NewFormatter(out).FormatApi(presentation.FromDomainApi(name, api))
}
