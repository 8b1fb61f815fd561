package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formchat/pkg/lookup"
)

func newLookupCmd(root *rootOptions) *cobra.Command {
	var (
		field     string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "lookup QUERY",
		Short: "Rank the allowed values of a field against free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			registry, err := loadRegistry(cmd.Context(), cfg.Forms, zap.NewNop())
			if err != nil {
				return err
			}
			form, err := registry.Latest(cfg.Forms.Default)
			if err != nil {
				return err
			}
			if _, ok := form.Schema.Property(field); !ok {
				return fmt.Errorf("field %q not found in %s", field, form.ID())
			}

			candidates := lookup.Resolve(strings.Join(args, " "), form.Schema, field, threshold)
			if len(candidates) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no candidates")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VALUE\tLABEL\tCONFIDENCE")
			for _, c := range candidates {
				fmt.Fprintf(w, "%v\t%s\t%.2f\n", c.Value, c.Label, c.Score)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", "", "field whose allowed values are ranked")
	cmd.Flags().Float64Var(&threshold, "threshold", lookup.DefaultThreshold, "minimum similarity")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
