package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"meatengine/internal/config"
	"meatengine/internal/meat"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var (
		periodKey string
		companyID uint
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Print the network variance report for one week",
		Example: `  meatengine reconcile --period 2026-W09
  meatengine reconcile --company 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			period := meat.PeriodOf(time.Now().AddDate(0, 0, -7))
			if periodKey != "" {
				p, err := meat.ParsePeriod(periodKey)
				if err != nil {
					return err
				}
				period = p
			}

			a, err := newApp(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			defer a.Close()

			return reconcile(cmd.Context(), a, companyID, period)
		},
	}

	cmd.Flags().StringVarP(&periodKey, "period", "p", "", "ISO week, e.g. 2026-W09 (default: last week)")
	cmd.Flags().UintVar(&companyID, "company", 1, "Company id")
	return cmd
}

func reconcile(ctx context.Context, a *app, companyID uint, period meat.Period) error {
	sum, err := a.reports.Network(ctx, companyID, period)
	if err != nil {
		return err
	}

	fmt.Printf("Network %d, %s: %s %s across %d stores, %d guests\n",
		sum.CompanyID, sum.Period, sum.Status, sum.TotalFinancialImpact.StringFixed(2), sum.StoreCount, sum.TotalGuests)
	if sum.ConfigGaps > 0 || sum.ExcludedLines > 0 {
		fmt.Printf("%d configuration gaps, %d excluded usage lines (see log)\n", sum.ConfigGaps, sum.ExcludedLines)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "RANK\tSTORE\tGUESTS\tACTUAL LB\tTARGET LB\tLB/GUEST\tVARIANCE $\tSEVERITY\t")
	for _, r := range sum.Ranking {
		perGuest := "-"
		if r.ActualPerGuest != nil {
			perGuest = fmt.Sprintf("%.3f", *r.ActualPerGuest)
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%.1f\t%.1f\t%s\t%s\t%s\t\n",
			r.Rank, r.StoreID, r.GuestCount, r.ActualWeight, r.TargetWeight, perGuest, r.CostVariance.StringFixed(2), r.Severity)
	}
	return w.Flush()
}
