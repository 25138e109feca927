package provisioning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/EternisAI/probe-relay/internal/credentials"
	"github.com/EternisAI/probe-relay/internal/envstore"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const hubLine = `IOT_HUB_CONNECTION_STRING="HostName=hub.example.net;SharedAccessKeyName=owner;SharedAccessKey=c2VjcmV0"` + "\n"

type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) CreateDevice(ctx context.Context, deviceID, primaryKey, secondaryKey string, status iothub.DeviceStatus) (*iothub.Device, error) {
	args := m.Called(deviceID, primaryKey, secondaryKey, status)
	device, _ := args.Get(0).(*iothub.Device)
	return device, args.Error(1)
}

type fixedGenerator struct {
	ids  []string
	keys []string
	err  error
}

func (g *fixedGenerator) GenerateKey() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	key := g.keys[0]
	g.keys = g.keys[1:]
	return key, nil
}

func (g *fixedGenerator) GenerateDeviceID(prefix string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	id := prefix + "-" + g.ids[0]
	g.ids = g.ids[1:]
	return id, nil
}

func newStore(t *testing.T, content string) *envstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	return envstore.New(path)
}

func fileContent(t *testing.T, store *envstore.Store) string {
	t.Helper()
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	return string(data)
}

var testConfig = Config{HostName: "hub.example.net", DevicePrefix: "device"}

func TestRunRegistersDevice(t *testing.T) {
	store := newStore(t, hubLine)
	registrar := &MockRegistrar{}
	registrar.On("CreateDevice", "device-1", "cHJpbWFyeQ==", "c2Vjb25kYXJ5", iothub.StatusEnabled).
		Return(&iothub.Device{DeviceID: "device-1"}, nil).Once()
	gen := &fixedGenerator{ids: []string{"1"}, keys: []string{"cHJpbWFyeQ==", "c2Vjb25kYXJ5"}}

	svc := NewService(store, registrar, gen, testConfig)
	result, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateRegistered, result.State)
	assert.Equal(t, StateRegistered, svc.State())
	assert.Equal(t, "device-1", result.DeviceID)
	assert.True(t, result.HubSecretScrubbed)
	assert.Equal(t, envstore.IdentityKeys, result.Written)

	values, err := store.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		envstore.KeyDeviceID:               "device-1",
		envstore.KeyPrimaryKey:             "cHJpbWFyeQ==",
		envstore.KeySecondaryKey:           "c2Vjb25kYXJ5",
		envstore.KeyDeviceConnectionString: "HostName=hub.example.net;DeviceId=device-1;SharedAccessKey=cHJpbWFyeQ==",
	}, values)
	registrar.AssertExpectations(t)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	store := newStore(t, hubLine)
	registrar := &MockRegistrar{}
	registrar.On("CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&iothub.Device{}, nil).Once()

	svc := NewService(store, registrar, credentials.Generator{}, testConfig)
	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	before := fileContent(t, store)

	second, err := NewService(store, registrar, credentials.Generator{}, testConfig).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, second.AlreadyRegistered)
	assert.Equal(t, StateRegistered, second.State)
	assert.Equal(t, first.DeviceID, second.DeviceID)
	assert.Equal(t, before, fileContent(t, store))
	registrar.AssertNumberOfCalls(t, "CreateDevice", 1)
}

func TestRunAlreadyExistsIsNotFatal(t *testing.T) {
	store := newStore(t, hubLine)
	registrar := &MockRegistrar{}
	registrar.On("CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &iothub.RegistrationError{StatusCode: 409, Message: iothub.AlreadyExistsMessage("device-1")}).Once()
	gen := &fixedGenerator{ids: []string{"1", "2"}, keys: []string{"a2V5MQ==", "a2V5Mg==", "a2V5Mw==", "a2V5NA=="}}

	result, err := NewService(store, registrar, gen, testConfig).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Equal(t, StateUnregistered, result.State)
	assert.Equal(t, hubLine, fileContent(t, store))
	registrar.AssertNumberOfCalls(t, "CreateDevice", 1)
}

func TestRunRegistryFailureLeavesStoreUnchanged(t *testing.T) {
	store := newStore(t, hubLine)
	registrar := &MockRegistrar{}
	registrar.On("CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &iothub.RegistrationError{StatusCode: 401, Code: "IotHubUnauthorizedAccess", Message: "Unauthorized"}).Once()

	svc := NewService(store, registrar, credentials.Generator{}, testConfig)
	result, err := svc.Run(context.Background())

	assert.ErrorIs(t, err, ErrRegistration)
	assert.ErrorIs(t, err, iothub.ErrRegistration)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StateFailed, svc.State())
	assert.Equal(t, hubLine, fileContent(t, store))
	registrar.AssertNumberOfCalls(t, "CreateDevice", 1)
}

func TestRunGenerationFailure(t *testing.T) {
	store := newStore(t, hubLine)
	registrar := &MockRegistrar{}
	gen := &fixedGenerator{err: credentials.ErrGeneration}

	result, err := NewService(store, registrar, gen, testConfig).Run(context.Background())

	assert.ErrorIs(t, err, credentials.ErrGeneration)
	assert.Equal(t, StateFailed, result.State)
	registrar.AssertNotCalled(t, "CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, hubLine, fileContent(t, store))
}

func TestRunPartialIdentity(t *testing.T) {
	content := hubLine + `DEVICE_ID="device-old"` + "\n"
	store := newStore(t, content)
	registrar := &MockRegistrar{}

	_, err := NewService(store, registrar, credentials.Generator{}, testConfig).Run(context.Background())

	assert.ErrorIs(t, err, ErrPartialIdentity)
	registrar.AssertNotCalled(t, "CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, content, fileContent(t, store))
}

func TestRunUnreadableStore(t *testing.T) {
	store := envstore.New(t.TempDir())
	registrar := &MockRegistrar{}

	_, err := NewService(store, registrar, credentials.Generator{}, testConfig).Run(context.Background())

	assert.ErrorIs(t, err, envstore.ErrStore)
	registrar.AssertNotCalled(t, "CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunWithoutHubSecretInStore(t *testing.T) {
	store := newStore(t, "")
	registrar := &MockRegistrar{}
	registrar.On("CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&iothub.Device{}, nil).Once()

	result, err := NewService(store, registrar, credentials.Generator{}, testConfig).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateRegistered, result.State)
	assert.False(t, result.HubSecretScrubbed)

	complete, err := store.HasCompleteIdentity()
	require.NoError(t, err)
	assert.True(t, complete)
}

func TestRunPropagatesContextErrors(t *testing.T) {
	store := newStore(t, hubLine)
	registrar := &MockRegistrar{}
	registrar.On("CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.Join(iothub.ErrRegistration, context.Canceled)).Once()

	_, err := NewService(store, registrar, credentials.Generator{}, testConfig).Run(context.Background())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, hubLine, fileContent(t, store))
}

func TestRunRejectsUnstorableDeviceID(t *testing.T) {
	for _, prefix := range []string{"site$1", `site"1`, `site\1`} {
		t.Run(prefix, func(t *testing.T) {
			store := newStore(t, hubLine)
			registrar := &MockRegistrar{}

			svc := NewService(store, registrar, credentials.Generator{}, Config{HostName: "hub.example.net", DevicePrefix: prefix})
			for i := 0; i < 2; i++ {
				result, err := svc.Run(context.Background())
				require.ErrorIs(t, err, ErrInvalidIdentity)
				assert.ErrorIs(t, err, envstore.ErrInvalidValue)
				assert.Equal(t, StateFailed, result.State)
			}

			registrar.AssertNotCalled(t, "CreateDevice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Equal(t, hubLine, fileContent(t, store))
		})
	}
}
