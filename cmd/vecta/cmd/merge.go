package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/service"
)

func newMergeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge every index segment into one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.load()
			if err != nil {
				return err
			}
			defer env.close()
			svc, err := env.service(cmd.Context(), false)
			if err != nil {
				return err
			}

			summary, elapsed, err := inBackground(cmd.Context(), cmd.ErrOrStderr(), "merging",
				func(ctx context.Context) (*service.MergeSummary, error) {
					return svc.Merge(ctx)
				})
			env.pushMetrics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if summary.Merged == 0 {
				fmt.Fprintln(out, "Nothing to merge")
			} else {
				fmt.Fprintf(out, "Merged %d segments: %d documents kept, %d dropped\n",
					summary.Merged, summary.Docs, summary.Dropped)
			}
			fmt.Fprintf(out, "Merging took: %s\n", formatElapsed(elapsed))
			return nil
		},
	}
}
