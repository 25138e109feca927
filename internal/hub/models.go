package hub

import (
	"time"

	"github.com/EternisAI/probe-relay/internal/iothub"
)

type Device struct {
	ID           string
	PrimaryKey   string
	SecondaryKey string
	Status       iothub.DeviceStatus
	CreatedAt    time.Time
	LastSeenAt   *time.Time
}

// Enabled reports whether the device may send telemetry.
func (d *Device) Enabled() bool {
	return d.Status == "" || d.Status == iothub.StatusEnabled
}

type Event struct {
	ID         int64
	DeviceID   string
	MACAddress string
	SSID       string
	RandomMAC  bool
	ReceivedAt time.Time
}

type Stats struct {
	Devices      int64
	Events       int64
	RandomEvents int64
}

// RandomShare is the fraction of events sent from randomized MACs.
func (s Stats) RandomShare() float64 {
	if s.Events == 0 {
		return 0
	}
	return float64(s.RandomEvents) / float64(s.Events)
}
