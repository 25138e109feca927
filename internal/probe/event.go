package probe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidEvent = errors.New("invalid probe event")

// Event is the normalized observation of one probe request. Field order is
// the wire order.
type Event struct {
	MACAddress string `json:"mac_address"`
	SSID       string `json:"ssid"`
	RandomMAC  int    `json:"random_mac"`
}

// NewEvent classifies mac and sanitizes ssid. Invalid UTF-8 in the SSID is
// replaced with U+FFFD since SSIDs are attacker-controlled bytes.
func NewEvent(mac, ssid string) (Event, error) {
	random, err := IsRandomMAC(mac)
	if err != nil {
		return Event{}, err
	}

	ev := Event{
		MACAddress: mac,
		SSID:       strings.ToValidUTF8(ssid, "\uFFFD"),
	}
	if random {
		ev.RandomMAC = 1
	}
	return ev, nil
}

// Random reports whether the event was classified as a randomized MAC.
func (e Event) Random() bool {
	return e.RandomMAC == 1
}

// Payload renders the event as compact JSON without HTML escaping.
func (e Event) Payload() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// CreatePayload builds the telemetry payload for one observation.
func CreatePayload(mac, ssid string) (string, error) {
	ev, err := NewEvent(mac, ssid)
	if err != nil {
		return "", err
	}
	return ev.Payload()
}

// ParseEvent decodes a payload produced by CreatePayload and checks that it
// is self-consistent.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Event{}, fmt.Errorf("%w: trailing data after event", ErrInvalidEvent)
	}

	random, err := IsRandomMAC(ev.MACAddress)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.RandomMAC != 0 && ev.RandomMAC != 1 {
		return Event{}, fmt.Errorf("%w: random_mac must be 0 or 1, got %d", ErrInvalidEvent, ev.RandomMAC)
	}
	if random != ev.Random() {
		return Event{}, fmt.Errorf("%w: random_mac does not match %s", ErrInvalidEvent, ev.MACAddress)
	}
	return ev, nil
}
