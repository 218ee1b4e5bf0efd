package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/plan-configurator/internal/contract"
	"github.com/noah-isme/plan-configurator/internal/pricing"
)

func newComposeCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "compose [file]",
		Short: "Print the line items and total for a selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := readSelection(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			q := pricing.Compose(pricing.Normalize(sel))
			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), q)
			case "table", "":
				return writeTable(cmd.OutOrStdout(), q)
			default:
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json)")
	return cmd
}

func newPayloadCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "payload [file]",
		Short: "Print the flattened contract payload slots for a selection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != contract.KindResidential && kind != contract.KindBusiness {
				return fmt.Errorf("unknown kind %q (want residential or business)", kind)
			}
			sel, err := readSelection(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			if sel.PBX != nil && kind != contract.KindBusiness {
				return errors.New("pbx is only available on business contracts")
			}
			q := pricing.Compose(pricing.Normalize(sel))
			payload := contract.BuildPayload(kind, contract.SubmitInput{}, q, time.Now())
			return writeJSON(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", contract.KindResidential, "contract kind (residential, business)")
	return cmd
}

// readSelection decodes the file named in args, or stdin when no file is given.
func readSelection(stdin io.Reader, args []string) (pricing.Selection, error) {
	var sel pricing.Selection
	src := stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return sel, fmt.Errorf("open selection: %w", err)
		}
		defer f.Close()
		src = f
	}
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sel); err != nil {
		return sel, fmt.Errorf("decode selection: %w", err)
	}
	return sel, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, q pricing.Quote) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tITEM\tQTY\tUNIT\tSUBTOTAL")
	for i, item := range q.Items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", i+1, item.Label, item.Quantity, item.UnitPrice.StringFixed(2), item.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(tw, "\tTOTAL\t\t\t%s\n", q.Total.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warning := range q.Warnings {
		fmt.Fprintln(w, "warning:", warning)
	}
	return nil
}
