package main

import (
	"fmt"
	"os"

	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Renew and transfer only report the registrar's acknowledgment. Neither
// changes availability, so there is nothing to verify afterwards.

func newRenewCmd(cfg *cliConfig) *cobra.Command {
	var req registrar.RenewRequest

	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Renew an existing domain order",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.OrderID <= 0 {
				return usageErr(cmd, fmt.Errorf("--order-id is required"))
			}
			if req.ExpiresAt <= 0 {
				return usageErr(cmd, fmt.Errorf("--expires-at is required (epoch seconds of the current expiry)"))
			}
			if req.Years < 1 {
				return usageErr(cmd, fmt.Errorf("invalid --years %d (must be at least 1)", req.Years))
			}
			if err := cfg.services(cmd); err != nil {
				return err
			}

			ack, err := cfg.client.Renew(cmd.Context(), req)
			if err != nil {
				return runtimeErr(cmd, fmt.Errorf("renew order %d: %w", req.OrderID, err))
			}
			cfg.log.Info("renew acknowledged",
				zap.Int64("order_id", req.OrderID),
				zap.String("entity_id", ack.EntityID),
				zap.String("action_status", ack.ActionStatus),
			)
			if err := writeAcks(os.Stdout, cfg.outFormat, []registrar.Ack{ack}); err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to write output: %w", err))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	f := cmd.Flags()
	f.Int64Var(&req.OrderID, "order-id", 0, "Registrar order id of the domain")
	f.IntVar(&req.Years, "years", 1, "Renewal term in years")
	f.Int64Var(&req.ExpiresAt, "expires-at", 0, "Current expiry as epoch seconds")
	f.StringVar(&req.InvoiceOption, "invoice", "NoInvoice", "Invoice option: NoInvoice|PayInvoice|KeepInvoice")

	return cmd
}

func newTransferCmd(cfg *cliConfig) *cobra.Command {
	var req registrar.TransferRequest
	var contact int64

	cmd := &cobra.Command{
		Use:   "transfer <domain>",
		Short: "Transfer a domain in from another registrar",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.CustomerID <= 0 {
				return usageErr(cmd, fmt.Errorf("--customer-id is required"))
			}
			if contact <= 0 {
				return usageErr(cmd, fmt.Errorf("--contact is required"))
			}
			if err := cfg.services(cmd); err != nil {
				return err
			}

			req.Domain = args[0]
			req.Contacts = registrar.Contacts{Registrant: contact, Admin: contact, Tech: contact, Billing: contact}

			ack, err := cfg.client.Transfer(cmd.Context(), req)
			if err != nil {
				return runtimeErr(cmd, fmt.Errorf("transfer %s: %w", req.Domain, err))
			}
			cfg.log.Info("transfer acknowledged",
				zap.String("domain", req.Domain),
				zap.String("entity_id", ack.EntityID),
				zap.String("action_status", ack.ActionStatus),
			)
			if err := writeAcks(os.Stdout, cfg.outFormat, []registrar.Ack{ack}); err != nil {
				return runtimeErr(cmd, fmt.Errorf("failed to write output: %w", err))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(usageErr)
	f := cmd.Flags()
	f.StringVar(&req.AuthCode, "auth-code", "", "Transfer authorization code from the losing registrar")
	f.Int64Var(&req.CustomerID, "customer-id", 0, "Registrar customer id")
	f.Int64Var(&contact, "contact", 0, "Contact id used for registrant, admin, tech and billing")
	f.StringSliceVar(&req.NameServers, "ns", nil, "Name servers (repeat or comma-separate)")
	f.StringVar(&req.InvoiceOption, "invoice", "NoInvoice", "Invoice option: NoInvoice|PayInvoice|KeepInvoice")

	return cmd
}
