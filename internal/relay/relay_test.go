package relay

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/EternisAI/probe-relay/internal/capture"
	"github.com/EternisAI/probe-relay/internal/iothub"
	"github.com/EternisAI/probe-relay/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendEvent(ctx context.Context, payload string) error {
	args := m.Called(payload)
	return args.Error(0)
}

func testFrame(t *testing.T, mac, ssid string) capture.Frame {
	t.Helper()
	hw, err := net.ParseMAC(mac)
	require.NoError(t, err)
	return capture.Frame{ProbeRequest: true, SourceMAC: hw, SSID: []byte(ssid)}
}

func TestHandleFrame(t *testing.T) {
	sender := &MockSender{}
	sender.On("SendEvent", `{"mac_address":"aa:bb:cc:dd:ee:ff","ssid":"MyNetwork","random_mac":0}`).Return(nil)

	r := New(sender, false)
	require.NoError(t, r.HandleFrame(context.Background(), testFrame(t, "AA:BB:CC:DD:EE:FF", "MyNetwork")))

	sender.AssertExpectations(t)
}

func TestHandleFrameRandomMAC(t *testing.T) {
	sender := &MockSender{}
	sender.On("SendEvent", mock.MatchedBy(func(payload string) bool {
		ev, err := probe.ParseEvent([]byte(payload))
		return err == nil && ev.Random() && ev.SSID == "Cafe"
	})).Return(nil)

	r := New(sender, false)
	require.NoError(t, r.HandleFrame(context.Background(), testFrame(t, "5e:00:00:00:00:01", "Cafe")))

	sender.AssertExpectations(t)
}

func TestHandleFrameTransportError(t *testing.T) {
	sender := &MockSender{}
	sender.On("SendEvent", mock.Anything).Return(errors.Join(iothub.ErrTransport, errors.New("HTTP 503")))

	r := New(sender, false)
	err := r.HandleFrame(context.Background(), testFrame(t, "00:00:00:00:00:01", "Cafe"))
	assert.ErrorIs(t, err, iothub.ErrTransport)
}

func TestHandleFrameInvalidMAC(t *testing.T) {
	sender := &MockSender{}

	r := New(sender, false)
	err := r.HandleFrame(context.Background(), capture.Frame{ProbeRequest: true, SSID: []byte("x")})
	assert.ErrorIs(t, err, probe.ErrInvalidMAC)
	sender.AssertNotCalled(t, "SendEvent", mock.Anything)
}

func TestHandleFrameDryRun(t *testing.T) {
	sender := &MockSender{}

	r := New(sender, true)
	require.NoError(t, r.HandleFrame(context.Background(), testFrame(t, "00:00:00:00:00:01", "Cafe")))
	sender.AssertNotCalled(t, "SendEvent", mock.Anything)
}
