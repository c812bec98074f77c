package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/beam-cloud/airkv/pkg/kv"
	"github.com/beam-cloud/airkv/pkg/types"
)

func newFolderCmd() *cobra.Command {
	folderCmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage local project folders",
	}

	var name string
	addCmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a project folder containing emulator KV state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				view, err := app.Gateway.AddFolder(ctx, args[0], name)
				if err != nil {
					return err
				}
				if PrintJSON(view) {
					return nil
				}
				PrintSuccessf("Folder %s registered (id %d)", BoldStyle.Render(view.Folder.Name), view.Folder.ID)
				printFolderView(view)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the directory name)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered folders, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				folders := app.Gateway.ListFolders()
				if PrintJSON(folders) {
					return nil
				}
				printFolders(folders)
				return nil
			})
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Forget a registered folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFolderID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				if err := app.Gateway.RemoveFolder(ctx, id); err != nil {
					return err
				}
				if PrintJSON(map[string]int64{"removed": id}) {
					return nil
				}
				PrintSuccessf("Folder %d removed", id)
				return nil
			})
		},
	}

	openCmd := &cobra.Command{
		Use:   "open <id>",
		Short: "Show the namespaces and entries of a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFolderID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *kv.App) error {
				view, err := app.Gateway.LoadFolder(ctx, id)
				if err != nil {
					return err
				}
				if PrintJSON(view) {
					return nil
				}
				PrintHeader(fmt.Sprintf("%s  %s", view.Folder.Name, DimStyle.Render(view.Folder.Path)))
				printFolderView(view)
				return nil
			})
		},
	}

	folderCmd.AddCommand(addCmd, listCmd, rmCmd, openCmd)
	return folderCmd
}

func parseFolderID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewInvalidInput(fmt.Sprintf("invalid folder id: %q", arg))
	}
	return id, nil
}
