package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/workspace"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

func newDestroyCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete the workspace with its config, index and logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.workspace()
			if err != nil {
				return err
			}
			if !ws.Exists() {
				return apperrors.Wrap(apperrors.ErrInvalidInput, "destroy", ws.Dir(), workspace.ErrNotFound)
			}
			out := cmd.OutOrStdout()

			if !yes {
				if !isTerminal(cmd.InOrStdin()) {
					return apperrors.New(apperrors.ErrInvalidInput, "destroy", ws.Dir(),
						"stdin is not a terminal; pass --yes to confirm")
				}
				fmt.Fprintf(out, "This deletes %s and everything in it. It cannot be undone.\n", ws.Dir())
				fmt.Fprint(out, "Continue? (y/N) ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "y", "yes":
				default:
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			if err := workspace.Destroy(ws); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %s\n", ws.Dir())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}
