package capture

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/google/gopacket/pcapgo"
)

const ProbeRequestFilter = "type mgt subtype probe-req"

type Config struct {
	SnapLen     int           `mapstructure:"snap_len"`
	Promiscuous bool          `mapstructure:"promiscuous"`
	Monitor     bool          `mapstructure:"monitor"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Filter      string        `mapstructure:"filter"`
}

func DefaultConfig() Config {
	return Config{
		SnapLen:     2048,
		Promiscuous: true,
		Monitor:     false,
		Timeout:     pcap.BlockForever,
		Filter:      ProbeRequestFilter,
	}
}

// Handle owns a packet source and whatever must be closed with it.
type Handle struct {
	source *gopacket.PacketSource
	close  func()
}

// OpenLive opens iface for capture and installs the BPF filter from cfg.
func OpenLive(iface string, cfg Config) (*Handle, error) {
	inactive, err := pcap.NewInactiveHandle(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", iface, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(cfg.SnapLen); err != nil {
		return nil, fmt.Errorf("failed to set snap length: %w", err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, fmt.Errorf("failed to set promiscuous mode: %w", err)
	}
	if err := inactive.SetTimeout(cfg.Timeout); err != nil {
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	if cfg.Monitor {
		if err := inactive.SetRFMon(true); err != nil {
			return nil, fmt.Errorf("failed to enable monitor mode: %w", err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("failed to activate capture on %s: %w", iface, err)
	}

	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", cfg.Filter, err)
		}
	}

	slog.Info("Capture started", "interface", iface, "link_type", handle.LinkType(), "filter", cfg.Filter)
	return &Handle{
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
		close:  handle.Close,
	}, nil
}

// OpenFile replays a pcap or pcapng capture file.
func OpenFile(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file header: %w", err)
	}

	var source *gopacket.PacketSource
	// pcapng files start with a section header block.
	if magic[0] == 0x0a && magic[1] == 0x0d && magic[2] == 0x0d && magic[3] == 0x0a {
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read pcapng file: %w", err)
		}
		source = gopacket.NewPacketSource(r, r.LinkType())
	} else {
		r, err := pcapgo.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read pcap file: %w", err)
		}
		source = gopacket.NewPacketSource(r, r.LinkType())
	}

	slog.Info("Replaying capture file", "path", path)
	return &Handle{
		source: source,
		close:  func() { f.Close() },
	}, nil
}

func (h *Handle) Packets() <-chan gopacket.Packet {
	return h.source.Packets()
}

func (h *Handle) Close() {
	h.close()
}
