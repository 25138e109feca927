package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrames(t *testing.T) [][]byte {
	t.Helper()
	return [][]byte{
		rawMgmtFrame(subtypeProbeReq, mustMAC(t, "02:1a:2b:3c:4d:5e"), probeRequestBody([]byte("Home"))),
		rawMgmtFrame(subtypeProbeReq, mustMAC(t, "00:1a:2b:3c:4d:5e"), probeRequestBody([]byte{})),
		rawMgmtFrame(subtypeBeacon, mustMAC(t, "00:1a:2b:3c:4d:5f"), append(make([]byte, 12), probeRequestBody([]byte("AP"))...)),
		rawMgmtFrame(subtypeProbeReq, mustMAC(t, "00:1a:2b:3c:4d:60"), probeRequestBody([]byte("Office"))),
	}
}

func packetChan(frames [][]byte) <-chan gopacket.Packet {
	ch := make(chan gopacket.Packet, len(frames))
	for _, data := range frames {
		ch <- decode(data)
	}
	close(ch)
	return ch
}

func TestSnifferRun(t *testing.T) {
	var handled []string
	s := NewSniffer(func(ctx context.Context, f Frame) error {
		handled = append(handled, f.SourceMAC.String()+"/"+string(f.SSID))
		return nil
	})

	s.Run(context.Background(), packetChan(testFrames(t)))

	assert.Equal(t, []string{"02:1a:2b:3c:4d:5e/Home", "00:1a:2b:3c:4d:60/Office"}, handled)
	assert.Equal(t, Stats{Seen: 4, Matched: 2, Forwarded: 2}, s.Stats())
}

func TestSnifferContinuesAfterHandlerError(t *testing.T) {
	calls := 0
	s := NewSniffer(func(ctx context.Context, f Frame) error {
		calls++
		if calls == 1 {
			return errors.New("telemetry down")
		}
		return nil
	})

	s.Run(context.Background(), packetChan(testFrames(t)))

	assert.Equal(t, 2, calls)
	assert.Equal(t, Stats{Seen: 4, Matched: 2, Forwarded: 1, Failed: 1}, s.Stats())
}

func TestSnifferRecoversFromPanic(t *testing.T) {
	calls := 0
	s := NewSniffer(func(ctx context.Context, f Frame) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil
	})

	s.Run(context.Background(), packetChan(testFrames(t)))

	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(1), s.Stats().Failed)
}

func TestSnifferStopsOnCancel(t *testing.T) {
	s := NewSniffer(func(ctx context.Context, f Frame) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	packets := make(chan gopacket.Packet)

	done := make(chan struct{})
	go func() {
		s.Run(ctx, packets)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sniffer did not stop after cancel")
	}
}

func TestOpenFileReplaysPcap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeIEEE802_11))
	for _, data := range testFrames(t) {
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	require.NoError(t, f.Close())

	h, err := OpenFile(path)
	require.NoError(t, err)
	defer h.Close()

	var ssids []string
	s := NewSniffer(func(ctx context.Context, f Frame) error {
		ssids = append(ssids, string(f.SSID))
		return nil
	})
	s.Run(context.Background(), h.Packets())

	assert.Equal(t, []string{"Home", "Office"}, ssids)
	assert.Equal(t, uint64(4), s.Stats().Seen)
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)
}

func TestOpenFileGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a capture"), 0644))

	_, err := OpenFile(path)
	assert.Error(t, err)
}
