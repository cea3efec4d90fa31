package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/dhcpy/dhcpy/internal/dhcp"
)

func newDecodeCommand() *cobra.Command {
	var keepUnknown bool

	cmd := &cobra.Command{
		Use:   "decode [HEX...]",
		Short: "Decode hex-encoded DHCP messages to JSON",
		Long: "Decode each argument as one hex-encoded DHCP message. With no arguments,\n" +
			"each non-empty line of stdin is one message. Separators (spaces, colons) are ignored.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := &dhcp.Decoder{KeepUnknown: keepUnknown, Logger: slog.Default()}
			return forEachMessage(cmd.InOrStdin(), args, func(raw []byte) error {
				m, err := d.Decode(raw)
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(m, "", "  ")
				if err != nil {
					return fmt.Errorf("marshalling message: %w", err)
				}
				return writeJSONLine(cmd.OutOrStdout(), b)
			})
		},
	}

	cmd.Flags().BoolVar(&keepUnknown, "keep-unknown", false, "Keep options with no decoder as raw hex")
	return cmd
}

func newEncodeCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode-check [HEX...]",
		Short: "Decode, re-encode and compare DHCP messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := &dhcp.Decoder{Logger: slog.Default()}
			out := cmd.OutOrStdout()
			return forEachMessage(cmd.InOrStdin(), args, func(raw []byte) error {
				m, err := d.Decode(raw)
				if err != nil {
					return err
				}
				encoded, err := m.Encode()
				if err != nil {
					return fmt.Errorf("re-encoding: %w", err)
				}
				again, err := d.Decode(encoded)
				if err != nil {
					return fmt.Errorf("decoding re-encoded message: %w", err)
				}
				preserved := cmp.Equal(m, again)
				fmt.Fprintf(out, "xid=%#08x in=%d out=%d preserved=%t\n", m.XID, len(raw), len(encoded), preserved)
				fmt.Fprintln(out, hex.EncodeToString(encoded))
				if !preserved {
					return fmt.Errorf("xid %#08x: message changed across re-encoding", m.XID)
				}
				return nil
			})
		},
	}
	return cmd
}

// forEachMessage runs fn on every hex message from args, or from the lines
// of in when args is empty.
func forEachMessage(in io.Reader, args []string, fn func([]byte) error) error {
	inputs := args
	if len(inputs) == 0 {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	for i, s := range inputs {
		raw, err := parseHex(s)
		if err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
		if err := fn(raw); err != nil {
			return fmt.Errorf("message %d: %w", i+1, err)
		}
	}
	return nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' || r == '-' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}
