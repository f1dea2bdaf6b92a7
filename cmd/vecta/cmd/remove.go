package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <dir>",
		Short: "Remove an indexed directory's documents from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load()
			if err != nil {
				return err
			}
			defer env.close()
			svc, err := env.service(cmd.Context(), false)
			if err != nil {
				return err
			}

			summary, err := svc.Remove(cmd.Context(), args[0])
			env.pushMetrics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d documents under %s\n", summary.Removed, summary.Root)
			return nil
		},
	}
}
