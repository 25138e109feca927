package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EternisAI/probe-relay/internal/capture"
	"github.com/EternisAI/probe-relay/internal/probe"
)

// Sender delivers one opaque payload. Delivery is best-effort.
type Sender interface {
	SendEvent(ctx context.Context, payload string) error
}

// Relay turns matching frames into telemetry events.
type Relay struct {
	sender Sender
	dryRun bool
}

func New(sender Sender, dryRun bool) *Relay {
	return &Relay{sender: sender, dryRun: dryRun}
}

// HandleFrame is a capture.Handler.
func (r *Relay) HandleFrame(ctx context.Context, f capture.Frame) error {
	payload, err := probe.CreatePayload(f.SourceMAC.String(), string(f.SSID))
	if err != nil {
		return fmt.Errorf("failed to build payload: %w", err)
	}

	if r.dryRun || r.sender == nil {
		slog.Info("Probe request", "payload", payload, "rssi", f.RSSI)
		return nil
	}

	slog.Debug("Sending probe request event", "payload", payload)
	if err := r.sender.SendEvent(ctx, payload); err != nil {
		return err
	}
	slog.Info("Sent probe request event", "mac_address", f.SourceMAC.String())
	return nil
}
