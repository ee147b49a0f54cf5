package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"bird-conservation/internal/dataset"
	"bird-conservation/internal/traits"

	"github.com/spf13/cobra"
)

func newSummaryCmd(root *rootOptions) *cobra.Command {
	var groups, migratory []string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarise the reference dataset",
		Long:  "Prints the distribution panels of the reference dataset, optionally filtered by taxonomic group and migratory status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), root.settings, needs{dataset: true})
			if err != nil {
				return err
			}
			defer a.close()

			filtered, err := a.table.Filter(groups, migratory)
			if err != nil {
				return fmt.Errorf("filter dataset: %w", err)
			}
			summary, err := dataset.Summarize(filtered)
			if err != nil {
				return err
			}

			if root.output == outputJSON {
				return writeIndented(cmd.OutOrStdout(), summary)
			}
			return writeSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringArrayVar(&groups, "group", nil, "keep rows of this group (repeatable)")
	cmd.Flags().StringArrayVar(&migratory, "migratory-status", nil, "keep rows with this migratory status (repeatable)")
	return cmd
}

func writeSummary(w io.Writer, s dataset.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Rows\t%d\n", s.Rows)
	for _, p := range s.Panels {
		fmt.Fprintf(tw, "\n%s (%s)\n", p.Title, p.Chart)
		for _, c := range p.Counts {
			fmt.Fprintf(tw, "  %s\t%d\n", c.Value, c.Count)
		}
		if p.Chart == dataset.ChartScatter {
			fmt.Fprintf(tw, "  points\t%d\n", len(p.Points))
		}
	}
	return tw.Flush()
}

func newCatalogCmd(root *rootOptions) *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the options of every categorical trait",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if field != "" {
				if _, ok := traits.Lookup(field); !ok {
					return fmt.Errorf("unknown field %q", field)
				}
			}

			a, err := newApp(cmd.Context(), root.settings, needs{dataset: true})
			if err != nil {
				return err
			}
			defer a.close()

			if field != "" {
				options := a.catalog.Options(field)
				if root.output == outputJSON {
					return writeIndented(cmd.OutOrStdout(), options)
				}
				for _, o := range options {
					fmt.Fprintln(cmd.OutOrStdout(), o)
				}
				return nil
			}

			if root.output == outputJSON {
				return writeIndented(cmd.OutOrStdout(), a.catalog)
			}
			for _, f := range traits.CategoricalFields() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d options\n", f, len(a.catalog.Options(f)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "print only the options of this field")
	return cmd
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
