package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the indexed directories",
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

			roots, err := svc.Roots(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(roots) == 0 {
				fmt.Fprintln(out, "No directories indexed")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DIRECTORY\tFILES\tINDEXED")
			for _, r := range roots {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Path, humanize.Comma(int64(r.Files)), humanize.Time(r.IndexedAt))
			}
			return tw.Flush()
		},
	}
}
