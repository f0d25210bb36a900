package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/benithors/resellerkit/internal/pricing"
	"github.com/spf13/cobra"
)

func newQuoteCmd(cfg *cliConfig) *cobra.Command {
	var op string
	var years int
	var all bool

	cmd := &cobra.Command{
		Use:   "quote <tld>",
		Short: "Customer price for an operation and duration (register|renew|transfer)",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operation, err := pricing.ParseOperation(op)
			if err != nil {
				return usageErr(cmd, err)
			}
			if years < 1 {
				return usageErr(cmd, fmt.Errorf("invalid --years %d (must be at least 1)", years))
			}
			if err := cfg.services(cmd); err != nil {
				return err
			}

			var rows []pricing.Quote
			if all {
				rows, err = cfg.pricing.PriceList(cmd.Context(), args[0])
				if err != nil {
					return runtimeErr(cmd, err)
				}
				if len(rows) == 0 {
					return runtimeErr(cmd, fmt.Errorf("no prices for %q", args[0]))
				}
			} else {
				q, err := cfg.pricing.OperationPrice(cmd.Context(), args[0], operation, years)
				switch {
				case errors.Is(err, pricing.ErrInvalidYears), errors.Is(err, pricing.ErrUnknownOperation):
					return usageErr(cmd, err)
				case err != nil:
					return runtimeErr(cmd, err)
				case q == nil:
					return runtimeErr(cmd, fmt.Errorf("no %s price for %q over %d year(s)", operation, args[0], years))
				}
				rows = []pricing.Quote{*q}
			}

			if err := writeQuotes(os.Stdout, cfg.outFormat, rows); err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to write output: %w", err))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	cmd.Flags().StringVar(&op, "op", "register", "Operation: register|renew|transfer")
	cmd.Flags().IntVar(&years, "years", 1, "Duration in years")
	cmd.Flags().BoolVar(&all, "all", false, "List every priced operation and duration")

	return cmd
}
