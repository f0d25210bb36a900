package main

import (
	"fmt"
	"os"

	"github.com/benithors/resellerkit/internal/pricing"
	"github.com/benithors/resellerkit/internal/tldkey"
	"github.com/spf13/cobra"
)

func newPriceCmd(cfg *cliConfig) *cobra.Command {
	var noPromo bool
	var strict bool

	cmd := &cobra.Command{
		Use:   "price [tld...]",
		Short: "One-year registration price per TLD, with promotions applied",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readArgsAndStdin(args, os.Stdin)
			if err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to read TLDs: %w", err))
			}
			tlds := splitCommaList(input)
			if len(tlds) == 0 {
				return &cliError{Code: 2, ShowUsage: true, Cmd: cmd}
			}
			if err := cfg.services(cmd); err != nil {
				return err
			}

			prices, err := cfg.pricing.TLDPricing(cmd.Context(), tlds, cfg.env.PromoPricing && !noPromo)
			if err != nil {
				return runtimeErr(cmd, err)
			}

			// Input order; unpriced TLDs are left out.
			rows := make([]pricing.Resolved, 0, len(prices))
			var missing []string
			seen := map[string]struct{}{}
			for _, t := range tlds {
				t = tldkey.Canonical(t)
				if _, ok := seen[t]; ok {
					continue
				}
				seen[t] = struct{}{}
				r, ok := prices[t]
				if !ok {
					missing = append(missing, t)
					continue
				}
				rows = append(rows, r)
			}

			if err := writePrices(os.Stdout, cfg.outFormat, rows); err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to write output: %w", err))
			}
			if len(missing) > 0 {
				cfg.log.Sugar().Warnw("no registration price", "tlds", missing)
				if strict {
					return &cliError{Code: 1}
				}
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	cmd.Flags().BoolVar(&noPromo, "no-promo", false, "Show base prices even when promotions are active")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero if any TLD has no price")

	return cmd
}
