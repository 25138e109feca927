package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/gopacket"
)

// Handler is invoked once per matching frame. A returned error is logged and
// the capture continues.
type Handler func(ctx context.Context, f Frame) error

type Stats struct {
	Seen      uint64
	Matched   uint64
	Forwarded uint64
	Failed    uint64
}

// Sniffer feeds matching frames to a handler, one at a time, in arrival order.
type Sniffer struct {
	handler Handler

	seen      atomic.Uint64
	matched   atomic.Uint64
	forwarded atomic.Uint64
	failed    atomic.Uint64
}

func NewSniffer(handler Handler) *Sniffer {
	return &Sniffer{handler: handler}
}

// Run blocks until ctx is cancelled or packets is closed.
func (s *Sniffer) Run(ctx context.Context, packets <-chan gopacket.Packet) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Capture stopped", "reason", ctx.Err())
			return
		case packet, ok := <-packets:
			if !ok {
				slog.Info("Packet source exhausted")
				return
			}
			s.handlePacket(ctx, packet)
		}
	}
}

func (s *Sniffer) handlePacket(ctx context.Context, packet gopacket.Packet) {
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			slog.Error("Recovered from panic while handling frame", "panic", fmt.Sprint(r))
		}
	}()

	s.seen.Add(1)
	if failure := packet.ErrorLayer(); failure != nil {
		slog.Debug("Partially decoded packet", "error", failure.Error())
	}

	frame := FrameFromPacket(packet)
	if !Matches(frame) {
		return
	}
	s.matched.Add(1)

	if err := s.handler(ctx, frame); err != nil {
		s.failed.Add(1)
		slog.Error("Failed to handle probe request", "mac_address", frame.SourceMAC.String(), "error", err)
		return
	}
	s.forwarded.Add(1)
}

func (s *Sniffer) Stats() Stats {
	return Stats{
		Seen:      s.seen.Load(),
		Matched:   s.matched.Load(),
		Forwarded: s.forwarded.Load(),
		Failed:    s.failed.Load(),
	}
}
