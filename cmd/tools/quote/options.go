package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/plan-configurator/internal/pricing"
)

func newOptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the modem bundle, PBX and handset price tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEM BUNDLE\tOUTRIGHT\t12 MONTHS\t24 MONTHS")
			for _, tier := range []pricing.BundleTier{pricing.TierModemOnly, pricing.TierOneExtender, pricing.TierTwoExtenders} {
				name, _ := pricing.ModemBundleName(tier)
				row := name
				for _, term := range []pricing.PaymentTerm{pricing.TermOutright, pricing.Term12, pricing.Term24} {
					price, err := pricing.ModemBundlePrice(tier, term)
					if err != nil {
						return err
					}
					row += "\t" + price.StringFixed(2)
				}
				fmt.Fprintln(tw, row)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "PBX PLAN\tPER USER")
			for _, plan := range pricing.PBXPlans() {
				fmt.Fprintf(tw, "%s\t%s\n", plan, pricing.PBXPlanUnitPrice(plan).StringFixed(2))
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "HANDSET\tPRICE\tCAPPED")
			for _, h := range pricing.HandsetModels() {
				fmt.Fprintf(tw, "%s\t%s\t%t\n", h.Model, h.UnitPrice.StringFixed(2), h.Limited)
			}
			return tw.Flush()
		},
	}
}
