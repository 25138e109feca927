package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/EternisAI/probe-relay/internal/envstore"
	"github.com/EternisAI/probe-relay/internal/iothub"
)

var (
	ErrRegistration    = errors.New("provisioning failed")
	ErrPartialIdentity = errors.New("config store holds a partial device identity")
	ErrInvalidIdentity = errors.New("generated device identity is not storable")
)

// Registrar creates device identities in the telemetry hub.
type Registrar interface {
	CreateDevice(ctx context.Context, deviceID, primaryKey, secondaryKey string, status iothub.DeviceStatus) (*iothub.Device, error)
}

// Generator produces device ids and symmetric keys.
type Generator interface {
	GenerateKey() (string, error)
	GenerateDeviceID(prefix string) (string, error)
}

type Config struct {
	// HostName of the hub, used in the device connection string.
	HostName     string
	DevicePrefix string
}

type Service struct {
	store     *envstore.Store
	registrar Registrar
	generator Generator
	config    Config
	state     State
}

func NewService(store *envstore.Store, registrar Registrar, generator Generator, config Config) *Service {
	return &Service{
		store:     store,
		registrar: registrar,
		generator: generator,
		config:    config,
		state:     StateUnregistered,
	}
}

func (s *Service) State() State {
	return s.state
}

// Run provisions at most one device identity for the store. A store with a
// complete identity is left untouched. A registry "already exists" answer is
// not an error and is never retried with a new id.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	values, err := s.store.ReadAll()
	if err != nil {
		return s.fail(err)
	}

	var present []string
	for _, key := range envstore.IdentityKeys {
		if _, ok := values[key]; ok {
			present = append(present, key)
		}
	}

	if len(present) == len(envstore.IdentityKeys) {
		s.state = StateRegistered
		slog.Info("Device already registered", "device_id", values[envstore.KeyDeviceID])
		return &Result{
			State:             s.state,
			DeviceID:          values[envstore.KeyDeviceID],
			AlreadyRegistered: true,
		}, nil
	}
	if len(present) > 0 {
		return s.fail(fmt.Errorf("%w: found %v in %s, remove them to register a new device", ErrPartialIdentity, present, s.store.Path()))
	}

	slog.Info("Device not registered, registering now")
	s.state = StateRegistering

	deviceID, err := s.generator.GenerateDeviceID(s.config.DevicePrefix)
	if err != nil {
		return s.fail(err)
	}
	primaryKey, err := s.generator.GenerateKey()
	if err != nil {
		return s.fail(err)
	}
	secondaryKey, err := s.generator.GenerateKey()
	if err != nil {
		return s.fail(err)
	}

	identity := []envstore.KeyValue{
		{Key: envstore.KeyDeviceID, Value: deviceID},
		{Key: envstore.KeyPrimaryKey, Value: primaryKey},
		{Key: envstore.KeySecondaryKey, Value: secondaryKey},
		{Key: envstore.KeyDeviceConnectionString, Value: iothub.DeviceConnectionString(s.config.HostName, deviceID, primaryKey)},
	}
	// A device the store cannot record must never reach the registry.
	if err := envstore.Validate(identity...); err != nil {
		return s.fail(fmt.Errorf("%w: device %q cannot be saved: %w", ErrInvalidIdentity, deviceID, err))
	}

	if _, err := s.registrar.CreateDevice(ctx, deviceID, primaryKey, secondaryKey, iothub.StatusEnabled); err != nil {
		if iothub.IsAlreadyExists(err) {
			s.state = StateUnregistered
			slog.Warn("Device already exists in hub, skipping", "device_id", deviceID)
			return &Result{State: s.state, DeviceID: deviceID, Skipped: true}, nil
		}
		return s.fail(fmt.Errorf("%w: failed to create device %q: %w", ErrRegistration, deviceID, err))
	}
	slog.Info("Created device", "device_id", deviceID)

	written, err := s.store.SetAllIfAbsent(identity...)
	if err != nil {
		return s.fail(fmt.Errorf("device %q was created but its identity could not be saved: %w", deviceID, err))
	}

	s.state = StateRegistered
	result := &Result{State: s.state, DeviceID: deviceID, Written: written}

	scrubbed, err := s.store.RemoveKey(envstore.KeyHubConnectionString)
	if err != nil {
		slog.Warn("Failed to remove hub connection string", "key", envstore.KeyHubConnectionString, "error", err)
	} else {
		result.HubSecretScrubbed = scrubbed
	}

	return result, nil
}

func (s *Service) fail(err error) (*Result, error) {
	s.state = StateFailed
	return &Result{State: s.state}, err
}
