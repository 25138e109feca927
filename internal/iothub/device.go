package iothub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var ErrTransport = errors.New("telemetry delivery failed")

// DeviceClient sends device-to-cloud messages. Create one per process and
// Close it at shutdown.
type DeviceClient struct {
	conn ConnectionString
	opts options

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewDeviceClient needs a device-scope connection string.
func NewDeviceClient(conn ConnectionString, opts ...Option) (*DeviceClient, error) {
	if err := conn.requireDevice(); err != nil {
		return nil, err
	}
	return &DeviceClient{conn: conn, opts: buildOptions(opts)}, nil
}

func (c *DeviceClient) DeviceID() string {
	return c.conn.DeviceID
}

// SendEvent posts payload as one telemetry message. There is no retry.
func (c *DeviceClient) SendEvent(ctx context.Context, payload string) error {
	token, err := c.sasToken()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	endpoint := fmt.Sprintf("%s://%s/devices/%s/messages/events?api-version=%s",
		c.opts.scheme, c.conn.HostName, url.PathEscape(c.conn.DeviceID), telemetryAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", token)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	slog.Debug("Telemetry delivered", "device_id", c.conn.DeviceID, "status", resp.StatusCode)
	return nil
}

func (c *DeviceClient) sasToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	if c.token != "" && now.Add(tokenRenewBefore).Before(c.tokenExpiry) {
		return c.token, nil
	}

	expiry := now.Add(c.opts.tokenTTL)
	token, err := NewSASToken(DeviceResource(c.conn.HostName, c.conn.DeviceID), c.conn.SharedAccessKey, "", expiry)
	if err != nil {
		return "", err
	}
	c.token = token
	c.tokenExpiry = expiry
	return token, nil
}

// Close releases idle connections held by the client.
func (c *DeviceClient) Close() error {
	c.opts.httpClient.CloseIdleConnections()
	slog.Debug("Device client closed", "device_id", c.conn.DeviceID)
	return nil
}
