package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcpy/dhcpy/internal/capture"
	"github.com/dhcpy/dhcpy/internal/config"
	"github.com/dhcpy/dhcpy/internal/dhcp"
)

func newCapturesCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Inspect the capture journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultCapturePath, "Path to the capture database")

	cmd.AddCommand(newCapturesListCommand(&dbPath))
	cmd.AddCommand(newCapturesShowCommand(&dbPath))
	return cmd
}

func newCapturesListCommand(dbPath *string) *cobra.Command {
	var (
		limit  int
		chaddr string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := capture.Open(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var recs []capture.Record
			if chaddr != "" {
				recs, err = store.ListByCHAddr(chaddr, limit)
			} else {
				recs, err = store.List(limit)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tRECEIVED\tTYPE\tXID\tCHADDR\tSRC\tINTERFACE\tFINGERPRINT")
			for _, r := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%#08x\t%s\t%s\t%s\t%s\n",
					r.ID, r.ReceivedAt.Format(time.RFC3339), r.MsgType, r.XID, r.CHAddr, r.Src, r.Interface, r.Fingerprint)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to show (0 for all)")
	cmd.Flags().StringVar(&chaddr, "chaddr", "", "Only show records from this hardware address (hex)")
	return cmd
}

func newCapturesShowCommand(dbPath *string) *cobra.Command {
	var keepUnknown bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Decode one captured message to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid capture ID %q: %w", args[0], err)
			}

			store, err := capture.Open(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(id)
			if err != nil {
				return err
			}
			m, err := rec.Decode(&dhcp.Decoder{KeepUnknown: keepUnknown})
			if err != nil {
				return fmt.Errorf("decoding capture %d: %w", id, err)
			}

			b, err := json.MarshalIndent(struct {
				ID         uint64        `json:"id"`
				ReceivedAt time.Time     `json:"received_at"`
				Src        string        `json:"src"`
				Interface  string        `json:"interface,omitempty"`
				Message    *dhcp.Message `json:"message"`
			}{rec.ID, rec.ReceivedAt, rec.Src, rec.Interface, m}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshalling capture %d: %w", id, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), b)
		},
	}

	cmd.Flags().BoolVar(&keepUnknown, "keep-unknown", false, "Keep options with no decoder as raw hex")
	return cmd
}
