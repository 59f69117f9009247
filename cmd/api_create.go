package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/authprx/internal/presentation"
	registry "github.com/zjrosen/authprx/internal/registry/application"
	"github.com/zjrosen/authprx/internal/registry/domain"
)

var (
	createClientLimit uint16
	createProtected   []string
	createUnprotected []string
)

var apiCreateCmd = &cobra.Command{
	Use:   "api:create NAME",
	Short: "Register a new API",
	Long: `Register a new API under NAME and print it as JSON.

Names are unique: creating an API under a name that is already taken
fails and leaves the stored API unchanged. The command returns only
after the record has been flushed to disk.

Examples:
  # Register an API with defaults (no client limit, no paths)
  authprx api:create billing

  # Limit clients and mark paths
  authprx api:create billing --client-limit 10 \
    --protected /admin --protected /invoices \
    --unprotected /health`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		reg, shutdown, err := openRegistry(ctx, cfg)
		if err != nil {
			return err
		}
		defer shutdown()

		api := domain.Api{
			ClientLimit:      createClientLimit,
			ProtectedPaths:   createProtected,
			UnprotectedPaths: createUnprotected,
		}
		return createApi(ctx, cmd.OutOrStdout(), reg, args[0], api)
	},
}

func init() {
	apiCreateCmd.Flags().Uint16Var(&createClientLimit, "client-limit", 0, "Maximum number of clients, 0 for no limit")
	apiCreateCmd.Flags().StringArrayVar(&createProtected, "protected", nil, "Path that requires auth (repeatable)")
	apiCreateCmd.Flags().StringArrayVar(&createUnprotected, "unprotected", nil, "Path that skips auth (repeatable)")
	rootCmd.AddCommand(apiCreateCmd)
}

func createApi(ctx context.Context, out io.Writer, reg *registry.Registry, name string, api domain.Api) error {
	if err := reg.Create(ctx, name, api); err != nil {
		return err
	}
	return presentation.NewFormatter(out).FormatApi(presentation.FromDomainApi(name, api))
}
