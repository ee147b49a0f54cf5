package main

import (
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"bird-conservation/internal/common"
	"bird-conservation/internal/storage"

	"github.com/spf13/cobra"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	var (
		limit int
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}

			a, err := newApp(cmd.Context(), root.settings, needs{history: true})
			if err != nil {
				return err
			}
			defer a.close()

			var records []storage.PredictionRecord
			if since > 0 {
				end := time.Now()
				records, err = a.store.GetPredictionsInRange(end.Add(-since), end)
				slices.Reverse(records)
				if len(records) > limit {
					records = records[:limit]
				}
			} else {
				records, err = a.store.Recent(limit)
			}
			if err != nil {
				return fmt.Errorf("read prediction history: %w", err)
			}

			if root.output == outputJSON {
				return writeIndented(cmd.OutOrStdout(), records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No predictions recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tLABEL\tMODEL\tSOURCE\tGROUP\tIUCN")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Timestamp.Format(time.RFC3339), r.Label, r.ModelVersion, r.Source,
					r.Input.Group.String(), r.Input.IUCNStatus)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", common.DefaultHistoryLimit, "maximum number of predictions to show")
	cmd.Flags().DurationVar(&since, "since", 0, "only show predictions from this far back (e.g. 24h)")
	return cmd
}
