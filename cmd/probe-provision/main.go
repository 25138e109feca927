package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/EternisAI/probe-relay/internal/cert"
	"github.com/EternisAI/probe-relay/internal/credentials"
	"github.com/EternisAI/probe-relay/internal/envstore"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/provisioning"
	"github.com/spf13/cobra"
)

var AppVersion string

type options struct {
	envFile      string
	prefix       string
	insecureHTTP bool
	caFile       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "probe-provision",
		Short:         "Register this device with the telemetry hub and save its identity",
		Version:       AppVersion,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if err := InitConfig(opts.envFile); err != nil {
				return err
			}
			slog.Info("Probe Provision", "version", AppVersion)

			hub := config.Hub
			if cmd.Flags().Changed("prefix") {
				hub.DevicePrefix = opts.prefix
			}
			if opts.insecureHTTP {
				hub.InsecureHTTP = true
			}
			if opts.caFile != "" {
				hub.CAFile = opts.caFile
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return provision(ctx, cmd.OutOrStdout(), envstore.New(opts.envFile), hub)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env", envstore.DefaultPath, "config store to read and update")
	cmd.Flags().StringVar(&opts.prefix, "prefix", credentials.DefaultDevicePrefix, "device id prefix")
	cmd.Flags().BoolVar(&opts.insecureHTTP, "insecure-http", false, "talk plain HTTP to a local hub")
	cmd.Flags().StringVar(&opts.caFile, "ca-file", "", "PEM bundle of CAs to trust for the hub")
	return cmd
}

func provision(ctx context.Context, out io.Writer, store *envstore.Store, hub HubConfig) error {
	values, err := store.ReadAll()
	if err != nil {
		return err
	}

	// Hub credentials are only needed for a store without any identity keys.
	// Complete and partial identities are reported by the service.
	var registrar provisioning.Registrar
	var hostName string
	if !hasAnyIdentityKey(values) {
		if hub.ConnectionString == "" {
			return fmt.Errorf("%s is not set", envstore.KeyHubConnectionString)
		}
		conn, err := iothub.ParseConnectionString(hub.ConnectionString)
		if err != nil {
			return err
		}
		var clientOpts []iothub.Option
		if hub.InsecureHTTP {
			clientOpts = append(clientOpts, iothub.WithScheme("http"))
		}
		if hub.CAFile != "" {
			pool, err := cert.LoadCertPool(hub.CAFile)
			if err != nil {
				return err
			}
			clientOpts = append(clientOpts, iothub.WithRootCAs(pool))
		}
		client, err := iothub.NewRegistryClient(conn, clientOpts...)
		if err != nil {
			return err
		}
		registrar = client
		hostName = client.HostName()
	}

	svc := provisioning.NewService(store, registrar, credentials.Generator{}, provisioning.Config{
		HostName:     hostName,
		DevicePrefix: hub.DevicePrefix,
	})
	result, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case result.AlreadyRegistered:
		fmt.Fprintf(out, "Device %s is already registered\n", result.DeviceID)
	case result.Skipped:
		fmt.Fprintf(out, "Device %s already exists in the hub, nothing written\n", result.DeviceID)
	default:
		fmt.Fprintf(out, "Device %s registered, identity saved to %s\n", result.DeviceID, store.Path())
		if result.HubSecretScrubbed {
			fmt.Fprintf(out, "Removed %s from %s\n", envstore.KeyHubConnectionString, store.Path())
		}
	}
	return nil
}

func hasAnyIdentityKey(values map[string]string) bool {
	for _, key := range envstore.IdentityKeys {
		if _, ok := values[key]; ok {
			return true
		}
	}
	return false
}
