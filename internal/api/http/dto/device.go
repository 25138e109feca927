package dto

import "time"

type DeviceResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

type ListDevicesResponse struct {
	Devices []DeviceResponse `json:"devices"`
	Count   int              `json:"count"`
}

type EventResponse struct {
	ID         int64     `json:"id"`
	MACAddress string    `json:"mac_address"`
	SSID       string    `json:"ssid"`
	RandomMAC  bool      `json:"random_mac"`
	ReceivedAt time.Time `json:"received_at"`
}

type ListEventsResponse struct {
	DeviceID string          `json:"device_id"`
	Events   []EventResponse `json:"events"`
	Count    int             `json:"count"`
}

type StatsResponse struct {
	Devices      int64   `json:"devices"`
	Events       int64   `json:"events"`
	RandomEvents int64   `json:"random_events"`
	RandomShare  float64 `json:"random_share"`
}
