package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benithors/resellerkit/internal/domain"
	"github.com/benithors/resellerkit/internal/pricing"
	"github.com/benithors/resellerkit/internal/registrar"
	"github.com/benithors/resellerkit/internal/verify"
	"golang.org/x/term"
)

type outputFormat int

const (
	formatTable outputFormat = iota
	formatNDJSON
	formatJSON
	formatPlain
)

func resolveFormat(flagVal string, stdout *os.File) outputFormat {
	switch strings.ToLower(strings.TrimSpace(flagVal)) {
	case "table":
		return formatTable
	case "ndjson":
		return formatNDJSON
	case "json":
		return formatJSON
	case "plain":
		return formatPlain
	case "auto", "":
	default:
		// Unknown format: fall back to auto.
	}

	if term.IsTerminal(int(stdout.Fd())) {
		return formatTable
	}
	return formatNDJSON
}

// writeJSONRows handles the two machine formats shared by every command.
func writeJSONRows[T any](w io.Writer, format outputFormat, rows []T) (bool, error) {
	switch format {
	case formatNDJSON:
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return true, err
			}
		}
		return true, nil
	case formatJSON:
		if rows == nil {
			rows = []T{}
		}
		return true, json.NewEncoder(w).Encode(rows)
	}
	return false, nil
}

func writePrices(w io.Writer, format outputFormat, rows []pricing.Resolved) error {
	if done, err := writeJSONRows(w, format, rows); done {
		return err
	}
	if format == formatPlain {
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
				r.TLD, r.Price.StringFixed(2), r.OriginalPrice.StringFixed(2), r.Currency, r.IsPromotional); err != nil {
				return err
			}
		}
		return nil
	}

	tw := domain.NewTabWriter(w)
	fmt.Fprintln(tw, "TLD\tPRICE\tREGULAR\tCURRENCY\tPROMOTION\tENDS")
	for _, r := range rows {
		promo, ends := "", ""
		if r.Promotion != nil {
			promo = fmt.Sprintf("%s (-%s)", r.Promotion.PromotionID, r.Promotion.Discount.StringFixed(2))
			ends = r.Promotion.EndsAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TLD, r.Price.StringFixed(2), r.OriginalPrice.StringFixed(2), r.Currency, promo, ends)
	}
	return tw.Flush()
}

func writeQuotes(w io.Writer, format outputFormat, rows []pricing.Quote) error {
	if done, err := writeJSONRows(w, format, rows); done {
		return err
	}
	if format == formatPlain {
		for _, q := range rows {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				q.TLD, q.Operation, q.Years, q.Price.StringFixed(2), q.Currency); err != nil {
				return err
			}
		}
		return nil
	}

	tw := domain.NewTabWriter(w)
	fmt.Fprintln(tw, "TLD\tOPERATION\tYEARS\tPRICE\tCURRENCY")
	for _, q := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", q.TLD, q.Operation, q.Years, q.Price.StringFixed(2), q.Currency)
	}
	return tw.Flush()
}

func writeResults(w io.Writer, format outputFormat, results []verify.Result) error {
	if done, err := writeJSONRows(w, format, results); done {
		return err
	}
	if format == formatPlain {
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.Domain, r.Status, r.Available, r.Reason); err != nil {
				return err
			}
		}
		return nil
	}

	tw := domain.NewTabWriter(w)
	fmt.Fprintln(tw, "DOMAIN\tSTATUS\tAVAILABLE\tREASON")
	for _, r := range results {
		avail := "no"
		if r.Available {
			avail = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Domain, r.Status, avail, r.Reason)
	}
	return tw.Flush()
}

func writeAcks(w io.Writer, format outputFormat, acks []registrar.Ack) error {
	if done, err := writeJSONRows(w, format, acks); done {
		return err
	}
	if format == formatPlain {
		for _, a := range acks {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.EntityID, a.ActionType, a.ActionStatus, a.Description); err != nil {
				return err
			}
		}
		return nil
	}

	tw := domain.NewTabWriter(w)
	fmt.Fprintln(tw, "ENTITY\tACTION\tSTATUS\tDESCRIPTION")
	for _, a := range acks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.EntityID, a.ActionType, a.ActionStatus, a.Description)
	}
	return tw.Flush()
}
