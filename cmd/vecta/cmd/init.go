package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/workspace"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .vecta workspace",
		Long: `Create .vecta/{config,data,logs} in dir (default: the working directory,
or the home directory with --global) and write a default config document.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ws  *workspace.Workspace
				err error
			)
			switch {
			case len(args) == 1:
				ws, err = workspace.At(args[0])
			case opts.global:
				ws, err = workspace.Global()
			case opts.workspaceDir != "":
				ws, err = workspace.At(opts.workspaceDir)
			default:
				ws, err = workspace.At(".")
			}
			if err != nil {
				return err
			}

			created, err := workspace.Init(ws, nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !created {
				fmt.Fprintf(out, "Workspace already initialized at %s\n", ws.Dir())
				return nil
			}
			fmt.Fprintf(out, "Initialized vecta workspace at %s\n", ws.Dir())
			fmt.Fprintf(out, "  config: %s\n", ws.ConfigPath())
			fmt.Fprintf(out, "  data:   %s\n", ws.DataDir())
			fmt.Fprintf(out, "  logs:   %s\n", ws.LogsDir())
			return nil
		},
	}
}
