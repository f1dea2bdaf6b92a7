package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "index [dir...]",
		Short: "Index the text files under one or more directories",
		Long: `Walk each directory, index every text file that passes the configured
inclusion and exclusion rules, drop documents whose files are gone, and
commit. With no arguments the directories in indexing.directories are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.load()
			if err != nil {
				return err
			}
			defer env.close()

			dirs := args
			if len(dirs) == 0 {
				dirs = env.cfg.Indexing.Directories
			}
			if len(dirs) == 0 {
				return apperrors.New(apperrors.ErrInvalidInput, "index", "",
					"no directories given and indexing.directories is empty")
			}
			svc, err := env.service(cmd.Context(), false)
			if err != nil {
				return err
			}

			summary, elapsed, err := inBackground(cmd.Context(), cmd.ErrOrStderr(), "indexing",
				func(ctx context.Context) (*ingestion.RunSummary, error) {
					return svc.Index(ctx, dirs...)
				})
			env.pushMetrics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			printRunSummary(out, svc.IndexPath(), summary)
			fmt.Fprintf(out, "Indexing took: %s\n", formatElapsed(elapsed))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the run summary as JSON")
	return cmd
}

func printRunSummary(out io.Writer, indexPath string, s *ingestion.RunSummary) {
	for _, root := range s.Roots {
		fmt.Fprintf(out, "Indexed %s\n", root)
	}
	fmt.Fprintf(out, "%s files seen, %s indexed, %s skipped, %s pruned\n",
		humanize.Comma(int64(s.Seen)),
		humanize.Comma(int64(s.Indexed)),
		humanize.Comma(int64(s.Skipped)),
		humanize.Comma(int64(s.Pruned)),
	)
	if s.Warnings > 0 {
		fmt.Fprintf(out, "%d entries could not be read (see log)\n", s.Warnings)
	}
	if s.Merge != nil {
		fmt.Fprintf(out, "Merged %d segments into one\n", len(s.Merge.Merged))
	}
	fmt.Fprintf(out, "Index %s at generation %d\n", indexPath, s.Generation)
}
