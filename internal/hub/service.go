package hub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/probe"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrDeviceDisabled = errors.New("device is disabled")
)

type Config struct {
	// HostName, when set, must match the host in every SAS resource.
	HostName   string `mapstructure:"host_name"`
	PolicyName string `mapstructure:"policy_name"`
	PolicyKey  string `mapstructure:"policy_key" json:"-"`
}

// Service implements the registry and telemetry endpoints on top of a Store.
type Service struct {
	store  Store
	config Config
	now    func() time.Time
}

func NewService(store Store, config Config) *Service {
	return &Service{
		store:  store,
		config: config,
		now:    time.Now,
	}
}

// Healthy reports whether the store answers.
func (s *Service) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AuthorizeRegistry checks a hub-scope SAS token signed with the
// configured policy key.
func (s *Service) AuthorizeRegistry(authorization string) error {
	if s.config.PolicyKey == "" {
		return fmt.Errorf("%w: registry policy is not configured", ErrUnauthorized)
	}

	token, err := iothub.ParseSASToken(authorization)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if token.KeyName != s.config.PolicyName {
		return fmt.Errorf("%w: unknown policy %q", ErrUnauthorized, token.KeyName)
	}
	if !s.hostMatches(token.Resource) {
		return fmt.Errorf("%w: resource %q is not this hub", ErrUnauthorized, token.Resource)
	}
	if err := token.Verify(s.config.PolicyKey, s.now()); err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return nil
}

// AuthorizeDevice checks a device-scope SAS token against either of the
// device's keys and returns the device.
func (s *Service) AuthorizeDevice(ctx context.Context, deviceID, authorization string) (*Device, error) {
	token, err := iothub.ParseSASToken(authorization)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	resource := strings.ToLower(token.Resource)
	if !strings.HasSuffix(resource, "/devices/"+strings.ToLower(deviceID)) {
		return nil, fmt.Errorf("%w: token is not scoped to device %q", ErrUnauthorized, deviceID)
	}
	if !s.hostMatches(token.Resource) {
		return nil, fmt.Errorf("%w: resource %q is not this hub", ErrUnauthorized, token.Resource)
	}

	device, err := s.store.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return nil, err
	}

	now := s.now()
	if err := token.Verify(device.PrimaryKey, now); err != nil {
		if errors.Is(err, iothub.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		if err := token.Verify(device.SecondaryKey, now); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}

	if !device.Enabled() {
		return nil, ErrDeviceDisabled
	}
	return device, nil
}

// RegisterDevice creates a device with symmetric-key authentication. An
// existing id yields ErrDeviceExists and leaves the stored device untouched.
func (s *Service) RegisterDevice(ctx context.Context, req iothub.Device) (*Device, error) {
	if err := ValidateDeviceID(req.DeviceID); err != nil {
		return nil, err
	}
	if req.Authentication.Type != "" && req.Authentication.Type != iothub.AuthTypeSAS {
		return nil, fmt.Errorf("%w: unsupported authentication type %q", ErrInvalidDevice, req.Authentication.Type)
	}
	keys := req.Authentication.SymmetricKey
	if keys == nil {
		return nil, fmt.Errorf("%w: symmetric keys are required", ErrInvalidDevice)
	}
	if err := validateKey("primaryKey", keys.PrimaryKey); err != nil {
		return nil, err
	}
	if err := validateKey("secondaryKey", keys.SecondaryKey); err != nil {
		return nil, err
	}

	status := req.Status
	switch status {
	case "":
		status = iothub.StatusEnabled
	case iothub.StatusEnabled, iothub.StatusDisabled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidDevice, status)
	}

	device, err := s.store.CreateDevice(ctx, Device{
		ID:           req.DeviceID,
		PrimaryKey:   keys.PrimaryKey,
		SecondaryKey: keys.SecondaryKey,
		Status:       status,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Device registered", "device_id", device.ID, "status", device.Status)
	return device, nil
}

// RecordEvent validates a telemetry payload and stores it for deviceID.
func (s *Service) RecordEvent(ctx context.Context, deviceID string, payload []byte) (*Event, error) {
	ev, err := probe.ParseEvent(payload)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.InsertEvent(ctx, Event{
		DeviceID:   deviceID,
		MACAddress: ev.MACAddress,
		SSID:       ev.SSID,
		RandomMAC:  ev.Random(),
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Probe event stored", "device_id", deviceID, "event_id", stored.ID)
	return stored, nil
}

func (s *Service) ListDevices(ctx context.Context) ([]Device, error) {
	return s.store.ListDevices(ctx)
}

func (s *Service) ListEvents(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	return s.store.ListEvents(ctx, deviceID, ClampLimit(limit))
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) hostMatches(resource string) bool {
	if s.config.HostName == "" {
		return true
	}
	host, _, _ := strings.Cut(resource, "/")
	return strings.EqualFold(host, s.config.HostName)
}

func validateKey(name, key string) error {
	if key == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidDevice, name)
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return fmt.Errorf("%w: %s is not base64", ErrInvalidDevice, name)
	}
	if len(raw) < 16 || len(raw) > 64 {
		return fmt.Errorf("%w: %s must decode to 16-64 bytes", ErrInvalidDevice, name)
	}
	return nil
}
