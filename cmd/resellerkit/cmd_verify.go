package main

import (
	"fmt"
	"os"

	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/benithors/resellerkit/internal/verify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newVerifyCmd(cfg *cliConfig) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "verify [domain...]",
		Short: "Re-check availability to confirm registrations went through (args and/or stdin)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := readArgsAndStdin(args, os.Stdin)
			if err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to read domains: %w", err))
			}
			if len(names) == 0 {
				return &cliError{Code: 2, ShowUsage: true, Cmd: cmd}
			}
			if err := cfg.services(cmd); err != nil {
				return err
			}

			results := cfg.verifier.VerifyMany(cmd.Context(), names)
			if err := writeResults(os.Stdout, cfg.outFormat, results); err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to write output: %w", err))
			}

			s := verify.Summarize(results)
			cfg.log.Info("verification finished",
				zap.Int("total", s.Total),
				zap.Int("success", s.Success),
				zap.Int("pending", s.Pending),
				zap.Int("failed", s.Failed),
			)
			if strict && s.NeedsFollowUp() {
				return errFollowUp
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit 3 if any domain is pending or failed")

	return cmd
}

func newRegisterCmd(cfg *cliConfig) *cobra.Command {
	var req registrar.RegisterRequest
	var contact int64

	cmd := &cobra.Command{
		Use:   "register <domain>",
		Short: "Register a domain, then verify the outcome against live availability",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.CustomerID <= 0 {
				return usageErr(cmd, fmt.Errorf("--customer-id is required"))
			}
			if contact <= 0 {
				return usageErr(cmd, fmt.Errorf("--contact is required"))
			}
			if req.Years < 1 {
				return usageErr(cmd, fmt.Errorf("invalid --years %d (must be at least 1)", req.Years))
			}
			if err := cfg.services(cmd); err != nil {
				return err
			}

			req.Domain = args[0]
			req.Contacts = registrar.Contacts{Registrant: contact, Admin: contact, Tech: contact, Billing: contact}

			ack, result := cfg.verifier.Register(cmd.Context(), cfg.client, req)
			cfg.log.Info("register acknowledged",
				zap.String("domain", req.Domain),
				zap.String("entity_id", ack.EntityID),
				zap.String("action_status", ack.ActionStatus),
			)

			if err := writeResults(os.Stdout, cfg.outFormat, []verify.Result{result}); err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to write output: %w", err))
			}
			if result.Status != verify.StatusSuccess {
				return errFollowUp
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	f := cmd.Flags()
	f.IntVar(&req.Years, "years", 1, "Registration term in years")
	f.Int64Var(&req.CustomerID, "customer-id", 0, "Registrar customer id")
	f.Int64Var(&contact, "contact", 0, "Contact id used for registrant, admin, tech and billing")
	f.StringSliceVar(&req.NameServers, "ns", nil, "Name servers (repeat or comma-separate)")
	f.StringVar(&req.InvoiceOption, "invoice", "NoInvoice", "Invoice option: NoInvoice|PayInvoice|KeepInvoice")
	f.BoolVar(&req.Privacy, "privacy", false, "Enable privacy protection")

	return cmd
}
