package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dhcpy/dhcpy/internal/capture"
	"github.com/dhcpy/dhcpy/internal/config"
	"github.com/dhcpy/dhcpy/internal/dhcp"
	"github.com/dhcpy/dhcpy/internal/fingerprint"
	"github.com/dhcpy/dhcpy/internal/logging"
)

func newListenCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen for DHCP client traffic, log it and optionally journal it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			logger := logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stdout)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runListener(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (defaults apply when omitted)")
	return cmd
}

// runListener serves until ctx is cancelled.
func runListener(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	decoder := &dhcp.Decoder{KeepUnknown: cfg.Codec.KeepUnknownOptions}
	if cfg.Codec.LogUnknownOptions {
		decoder.Logger = logger
	}

	handlers := []dhcp.Handler{logRequests(logger)}

	if cfg.Capture.Enabled {
		store, err := capture.Open(cfg.Capture.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		var limiter *dhcp.RateLimiter
		if rl := cfg.Capture.RateLimit; rl.Enabled {
			limiter = dhcp.NewRateLimiter(true, rl.MaxPerSecond, rl.MaxPerMACPerSecond)
		}
		handlers = append(handlers, capture.NewRecorder(store, limiter, cfg.Capture.MaxRecords, logger))
		logger.Info("capture journal enabled",
			"path", cfg.Capture.Path,
			"max_records", cfg.Capture.MaxRecords)
	}

	if cfg.Metrics.Enabled {
		srv := &nethttp.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics endpoint started", "listen", cfg.Metrics.Listen)
	}

	server := dhcp.NewServer(dhcp.Chain(handlers...), decoder, cfg.Server.Interface, cfg.Server.BindAddress, logger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	server.Stop()
	return nil
}

func metricsMux() *nethttp.ServeMux {
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// logRequests logs one line per decoded request.
func logRequests(logger *slog.Logger) dhcp.Handler {
	return dhcp.HandlerFunc(func(ctx context.Context, req *dhcp.Request) error {
		m := req.Message
		mt, _ := m.MessageType()
		attrs := []any{
			"msg_type", mt.String(),
			"xid", fmt.Sprintf("%#08x", m.XID),
			"chaddr", m.CHAddr,
			"src", req.Src.String(),
			"interface", req.Interface,
		}
		if h := m.Hostname(); h != "" {
			attrs = append(attrs, "hostname", h)
		}
		if ip := m.RequestedIP(); ip != nil {
			attrs = append(attrs, "requested_ip", ip.String())
		}
		if m.IsRelayed() {
			attrs = append(attrs, "giaddr", m.GIAddr.String())
		}
		if ri, ok := m.RelayInfo(); ok {
			attrs = append(attrs, "relay_agent", ri.String())
		}
		if fp := fingerprint.FromMessage(m); fp.Hash() != "" {
			c := fingerprint.Classify(fp)
			attrs = append(attrs, "fingerprint", fp.Hash(), "device_type", c.DeviceType)
			if c.OS != "" {
				attrs = append(attrs, "os", c.OS)
			}
		}
		logger.Info("DHCP request", attrs...)
		return nil
	})
}
