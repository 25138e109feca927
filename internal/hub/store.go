package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultEventLimit = 100
	MaxEventLimit     = 1000

	maxDeviceIDLength = 128
	deviceIDSpecials  = "-.%_*?!(),:=@$'"
)

var (
	ErrDeviceExists   = errors.New("device already exists")
	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidDevice  = errors.New("invalid device")
)

// Store persists devices and their telemetry.
type Store interface {
	CreateDevice(ctx context.Context, device Device) (*Device, error)
	GetDevice(ctx context.Context, id string) (*Device, error)
	ListDevices(ctx context.Context) ([]Device, error)
	InsertEvent(ctx context.Context, event Event) (*Event, error)
	// ListEvents returns the newest events first.
	ListEvents(ctx context.Context, deviceID string, limit int) ([]Event, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

// ValidateDeviceID accepts up to 128 ASCII letters, digits and the
// characters -.%_*?!(),:=@$'.
func ValidateDeviceID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidDevice)
	}
	if len(id) > maxDeviceIDLength {
		return fmt.Errorf("%w: device id longer than %d characters", ErrInvalidDevice, maxDeviceIDLength)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(deviceIDSpecials, r):
		default:
			return fmt.Errorf("%w: device id contains %q", ErrInvalidDevice, r)
		}
	}
	return nil
}

// ClampLimit maps a requested page size onto [1, MaxEventLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	if limit > MaxEventLimit {
		return MaxEventLimit
	}
	return limit
}
