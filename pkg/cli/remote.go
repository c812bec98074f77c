package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/airkv/pkg/kv"
)

func newRemoteCmd() *cobra.Command {
	remoteCmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage remote account connections",
	}

	var token string
	connectCmd := &cobra.Command{
		Use:   "connect <account-id>",
		Short: "Validate an API token and connect an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				conn, err := app.Gateway.Connect(ctx, args[0], token)
				if err != nil {
					return err
				}
				if PrintJSON(conn) {
					return nil
				}
				PrintSuccessf("Connected account %s", BoldStyle.Render(conn.AccountID))
				return nil
			})
		},
	}
	connectCmd.Flags().StringVar(&token, "token", getEnv(apiTokenEnv, ""), "API token (or set "+apiTokenEnv+")")

	disconnectCmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Remove every connected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				if err := app.Gateway.Disconnect(ctx); err != nil {
					return err
				}
				if PrintJSON(map[string]bool{"disconnected": true}) {
					return nil
				}
				PrintSuccess("Disconnected all accounts")
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List connected accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				conns := app.Gateway.ListConnections()
				if PrintJSON(conns) {
					return nil
				}
				printConnections(conns)
				return nil
			})
		},
	}

	var withCounts bool
	namespacesCmd := &cobra.Command{
		Use:   "namespaces",
		Short: "List the namespaces of every connected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				namespaces, err := app.Gateway.ListRemoteNamespaces(ctx, withCounts)
				if err != nil {
					return err
				}
				if PrintJSON(namespaces) {
					return nil
				}
				printRemoteNamespaces(namespaces, withCounts)
				return nil
			})
		},
	}
	namespacesCmd.Flags().BoolVar(&withCounts, "counts", false, "Include key counts")

	remoteCmd.AddCommand(connectCmd, disconnectCmd, listCmd, namespacesCmd)
	return remoteCmd
}
