package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
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

			st, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Fprintf(out, "Index:       %s\n", st.Path)
			fmt.Fprintf(out, "Generation:  %d\n", st.Generation)
			fmt.Fprintf(out, "Segments:    %d\n", st.Segments)
			fmt.Fprintf(out, "Documents:   %s\n", humanize.Comma(int64(st.Docs)))
			fmt.Fprintf(out, "Size:        %s\n", humanize.IBytes(uint64(st.SizeBytes)))
			fmt.Fprintf(out, "Fields:      %s\n", strings.Join(st.Fields, ", "))
			fmt.Fprintf(out, "Directories: %d\n", len(st.Roots))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print statistics as JSON")
	return cmd
}
