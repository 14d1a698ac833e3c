package cmd

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/rotcurve/results"
)

var summaryIn string
var summaryBurn int

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the posterior of a saved run",
	RunE: func(c *cobra.Command, args []string) error {
		sp, err := newStartupParams()
		if err != nil {
			return err
		}
		defer sp.Close()

		return runSummary(sp, summaryIn, summaryBurn)
	},
}

func init() {
	summaryCmd.Flags().StringVarP(&summaryIn, "in", "i", "", "Saved run (.json or .json.zst)")
	summaryCmd.Flags().IntVarP(&summaryBurn, "burn", "b", 0, "Steps to drop from the start of every walker")
	summaryCmd.MarkFlagRequired("in")
}

func runSummary(sp *startupParams, in string, burn int) error {
	sp.out.Printf("Reading run from %s\n", in)
	bundle, err := results.Load(in)
	if err != nil {
		return err
	}

	sums, err := bundle.Summarize(burn)
	if err != nil {
		return errors.Wrapf(err, "Could not summarize %s", in)
	}
	return writeSummary(sp.report, bundle, sums)
}

func writeSummary(w io.Writer, b *results.Bundle, sums []results.Summary) error {
	if _, err := fmt.Fprintf(w, "Run %s: %d walkers x %d steps, mean acceptance %.3f\n",
		b.RunID, b.Walkers(), b.Steps(), b.MeanAcceptance()); err != nil {
		return err
	}

	fmt.Fprintf(w, "%-10s %12s %12s %12s %12s %12s\n", "Variable", "Median", "-1sig", "+1sig", "Mean", "StdDev")
	for _, s := range sums {
		_, err := fmt.Fprintf(w, "%-10s %12.5f %12.5f %12.5f %12.5f %12.5f\n",
			s.Name, s.Median, s.Median-s.P16, s.P84-s.Median, s.Mean, s.StdDev)
		if err != nil {
			return err
		}
	}
	return nil
}
