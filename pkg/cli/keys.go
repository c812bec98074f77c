package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/types"
)

// accountFlag binds --account, used to pick the connection for remote namespaces.
func accountFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "account", "", "Account id for remote namespaces (optional with one connection)")
}

func newKeysCmd() *cobra.Command {
	var (
		account string
		cursor  string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "keys <namespace-id>",
		Short: "List the keys of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				var page types.EntryPage
				if all {
					entries, err := app.Gateway.ListAllKeys(ctx, args[0], account)
					if err != nil {
						return err
					}
					page = types.EntryPage{Entries: entries, TotalCount: len(entries)}
				} else {
					var c *string
					if cursor != "" {
						c = &cursor
					}
					var err error
					page, err = app.Gateway.ListEntries(ctx, args[0], account, c)
					if err != nil {
						return err
					}
				}

				if PrintJSON(page) {
					return nil
				}
				printEntries(page)
				return nil
			})
		},
	}
	accountFlag(cmd, &account)
	cmd.Flags().StringVar(&cursor, "cursor", "", "Continue a remote listing from this cursor")
	cmd.Flags().BoolVar(&all, "all", false, "Follow cursors until every key is listed")
	return cmd
}

func newGetCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "get <namespace-id> <key>",
		Short: "Print the JSON value of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				value, err := app.Gateway.GetValue(ctx, args[0], account, args[1])
				if err != nil {
					return err
				}
				printValue(value)
				return nil
			})
		},
	}
	accountFlag(cmd, &account)
	return cmd
}

func newPutCmd() *cobra.Command {
	var (
		account  string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "put <namespace-id> <key> [value|-]",
		Short: "Write a JSON value to a key",
		Long: `Write a JSON value to a key.

The value is read from the third argument, from --file, or from stdin when
the argument is "-". It must be valid JSON; quote plain strings.`,
		Example: `  airkv put folder-1-ns-abc123 user:1 '{"name":"ada"}'
  cat value.json | airkv put folder-1-ns-abc123 user:1 -`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := readValue(cmd, args[2:], fromFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				if err := app.Gateway.PutValue(ctx, args[0], account, args[1], value); err != nil {
					return err
				}
				if PrintJSON(map[string]string{"updated": args[1]}) {
					return nil
				}
				PrintSuccessf("Updated %s", BoldStyle.Render(args[1]))
				return nil
			})
		},
	}
	accountFlag(cmd, &account)
	cmd.Flags().StringVar(&fromFile, "file", "", "Read the value from a file")
	return cmd
}

func readValue(cmd *cobra.Command, rest []string, fromFile string) (string, error) {
	switch {
	case fromFile != "" && len(rest) > 0:
		return "", types.NewInvalidInput("pass the value as an argument or with --file, not both")
	case fromFile != "":
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", fromFile, err)
		}
		return string(data), nil
	case len(rest) == 1 && rest[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case len(rest) == 1:
		return rest[0], nil
	}
	return "", types.NewInvalidInput("a value is required")
}

func newRmCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "rm <namespace-id> <key>...",
		Short: "Delete one or more keys",
		Long: `Delete one or more keys.

Local deletes are all or nothing: if any key is missing, nothing is removed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args[1:]
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				if err := app.Gateway.DeleteKeys(ctx, args[0], account, keys); err != nil {
					return err
				}
				if PrintJSON(map[string][]string{"deleted": keys}) {
					return nil
				}
				if len(keys) == 1 {
					PrintSuccessf("Deleted %s", BoldStyle.Render(keys[0]))
				} else {
					PrintSuccessf("Deleted %d keys", len(keys))
				}
				return nil
			})
		},
	}
	accountFlag(cmd, &account)
	return cmd
}
