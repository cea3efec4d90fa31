// dhcpy decodes and inspects DHCPv4 traffic.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhcpy/dhcpy/internal/logging"
	"github.com/dhcpy/dhcpy/internal/metrics"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "dhcpy",
		Short:         "DHCPv4 wire codec, listener and capture journal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// listen reconfigures logging from its config file.
			logging.Setup(logLevel, "text", cmd.ErrOrStderr())
			metrics.ServerInfo.WithLabelValues(version).Set(1)
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level for one-shot commands (debug, info, warn, error)")

	cmd.AddCommand(newListenCommand())
	cmd.AddCommand(newDecodeCommand())
	cmd.AddCommand(newEncodeCheckCommand())
	cmd.AddCommand(newCapturesCommand())
	return cmd
}

// writeJSONLine writes pre-marshalled JSON followed by a newline.
func writeJSONLine(w io.Writer, b []byte) error {
	_, err := fmt.Fprintf(w, "%s\n", b)
	return err
}
