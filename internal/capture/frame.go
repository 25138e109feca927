package capture

import (
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Frame is the part of a captured 802.11 frame the relay cares about.
type Frame struct {
	ProbeRequest bool
	SourceMAC    net.HardwareAddr
	// SSID is nil when the frame carries no SSID element.
	SSID      []byte
	RSSI      int8
	Timestamp time.Time
}

// Matches reports whether f is a probe request naming a specific network.
func Matches(f Frame) bool {
	return f.ProbeRequest && len(f.SSID) > 0
}

// FrameFromPacket extracts a Frame from a decoded packet. Packets without an
// 802.11 layer yield a zero Frame that never matches.
func FrameFromPacket(packet gopacket.Packet) Frame {
	f := Frame{Timestamp: packet.Metadata().Timestamp}

	dot11, ok := packet.Layer(layers.LayerTypeDot11).(*layers.Dot11)
	if !ok {
		return f
	}
	f.ProbeRequest = dot11.Type == layers.Dot11TypeMgmtProbeReq
	f.SourceMAC = append(net.HardwareAddr(nil), dot11.Address2...)

	if radioTap, ok := packet.Layer(layers.LayerTypeRadioTap).(*layers.RadioTap); ok {
		f.RSSI = radioTap.DBMAntennaSignal
	}

	for _, layer := range packet.Layers() {
		ie, ok := layer.(*layers.Dot11InformationElement)
		if !ok || ie.ID != layers.Dot11InformationElementIDSSID {
			continue
		}
		f.SSID = append([]byte{}, ie.Info...)
		return f
	}

	// Probe request bodies are not always decoded into element layers.
	if probe := packet.Layer(layers.LayerTypeDot11MgmtProbeReq); probe != nil {
		body := probe.LayerContents()
		if len(body) == 0 {
			body = probe.LayerPayload()
		}
		f.SSID = ssidElement(body)
	}
	return f
}

func ssidElement(body []byte) []byte {
	for len(body) >= 2 {
		id, n := layers.Dot11InformationElementID(body[0]), int(body[1])
		if len(body) < 2+n {
			return nil
		}
		if id == layers.Dot11InformationElementIDSSID {
			return append([]byte{}, body[2:2+n]...)
		}
		body = body[2+n:]
	}
	return nil
}
