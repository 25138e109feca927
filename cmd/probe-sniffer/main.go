package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/EternisAI/probe-relay/internal/capture"
	"github.com/EternisAI/probe-relay/internal/cert"
	"github.com/EternisAI/probe-relay/internal/envstore"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/relay"
	"github.com/spf13/cobra"
)

var AppVersion string

var errUsage = errors.New("missing capture interface")

type options struct {
	readFile string
	dryRun   bool
	envFile  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "probe-sniffer <interface>",
		Short:         "Capture 802.11 probe requests and forward them as telemetry events",
		Version:       AppVersion,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("%w: expected one interface, got %d arguments", errUsage, len(args))
			}
			if len(args) == 0 && opts.readFile == "" {
				return errUsage
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			iface := ""
			if len(args) == 1 {
				iface = args[0]
			}
			return run(cmd.Context(), iface, opts)
		},
	}

	cmd.Flags().StringVar(&opts.readFile, "read", "", "replay a pcap or pcapng file instead of capturing live")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log payloads instead of sending them")
	cmd.Flags().StringVar(&opts.envFile, "env", envstore.DefaultPath, "config store holding the device connection string")
	return cmd
}

func run(ctx context.Context, iface string, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := InitConfig(opts.envFile); err != nil {
		return err
	}

	slog.Info("Probe Sniffer", "version", AppVersion)

	var sender relay.Sender
	if !opts.dryRun {
		client, err := newDeviceClient(config.Device)
		if err != nil {
			return err
		}
		defer client.Close()
		sender = client
		slog.Info("Telemetry client ready", "device_id", client.DeviceID())
	}

	handle, err := openSource(iface, opts.readFile)
	if err != nil {
		return err
	}
	defer handle.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sniffer := capture.NewSniffer(relay.New(sender, opts.dryRun).HandleFrame)
	sniffer.Run(ctx, handle.Packets())

	stats := sniffer.Stats()
	slog.Info("Capture stopped",
		"seen", stats.Seen,
		"matched", stats.Matched,
		"forwarded", stats.Forwarded,
		"failed", stats.Failed)
	return nil
}

func newDeviceClient(cfg DeviceConfig) (*iothub.DeviceClient, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("%s is not set, run probe-provision first", envstore.KeyDeviceConnectionString)
	}
	conn, err := iothub.ParseConnectionString(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	var clientOpts []iothub.Option
	if cfg.InsecureHTTP {
		clientOpts = append(clientOpts, iothub.WithScheme("http"))
	}
	if cfg.CAFile != "" {
		pool, err := cert.LoadCertPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, iothub.WithRootCAs(pool))
	}
	return iothub.NewDeviceClient(conn, clientOpts...)
}

func openSource(iface, readFile string) (*capture.Handle, error) {
	if readFile != "" {
		return capture.OpenFile(readFile)
	}
	return capture.OpenLive(iface, config.Capture)
}
