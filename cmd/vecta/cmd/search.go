package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/vecta/internal/schema"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the index and print the best matching documents.

Terms are ORed by default. AND, OR and NOT (uppercase), +term, -term,
field:term, "quoted phrases" and parentheses are supported.`,
		Example: `  vecta search milk
  vecta search 'milk AND NOT eggs'
  vecta search 'title:"notes.txt"' -n 3`,
		Args: cobra.MinimumNArgs(1),
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

			query := strings.Join(args, " ")
			result, err := svc.Search(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if len(result.Hits) == 0 {
				fmt.Fprintf(out, "No results for %q\n", query)
			} else {
				titleField := displayField(result.Hits[0].Fields)
				for i, hit := range result.Hits {
					fmt.Fprintf(out, "%2d. %s  (score %.4f)\n", i+1, hit.Fields[titleField], hit.Score)
				}
				fmt.Fprintf(out, "\n%d of %d results\n", len(result.Hits), result.TotalHits)
			}
			fmt.Fprintf(out, "Search took: %s\n", formatElapsed(result.Elapsed))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from search.defaultLimit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}

// displayField picks the stored field to print for each hit: the title when
// the schema stores one, otherwise any stored field.
func displayField(fields map[string]string) string {
	if _, ok := fields[schema.TitleField]; ok {
		return schema.TitleField
	}
	for name := range fields {
		return name
	}
	return schema.TitleField
}
