package iothub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const alreadyExistsCode = "DeviceAlreadyExists"

var (
	ErrRegistration        = errors.New("device registration failed")
	ErrDeviceAlreadyExists = errors.New("device already exists")
)

// RegistrationError is returned when the registry rejects a device.
type RegistrationError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RegistrationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry returned HTTP %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("registry returned HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RegistrationError) Unwrap() []error {
	if strings.Contains(e.Code, alreadyExistsCode) || strings.Contains(e.Message, alreadyExistsCode) {
		return []error{ErrRegistration, ErrDeviceAlreadyExists}
	}
	return []error{ErrRegistration}
}

// IsAlreadyExists reports whether err means the device id is taken.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrDeviceAlreadyExists)
}

// ErrorResponse is the body the registry sends with non-2xx responses.
type ErrorResponse struct {
	Message          string `json:"Message"`
	ExceptionMessage string `json:"ExceptionMessage,omitempty"`
}

// AlreadyExistsMessage renders the registry's duplicate-device message.
func AlreadyExistsMessage(deviceID string) string {
	return fmt.Sprintf("ErrorCode:%s;A device with ID '%s' is already registered.", alreadyExistsCode, deviceID)
}

type RegistryClient struct {
	conn ConnectionString
	opts options
}

// NewRegistryClient needs a hub-scope connection string.
func NewRegistryClient(conn ConnectionString, opts ...Option) (*RegistryClient, error) {
	if err := conn.requireHub(); err != nil {
		return nil, err
	}
	return &RegistryClient{conn: conn, opts: buildOptions(opts)}, nil
}

func (c *RegistryClient) HostName() string {
	return c.conn.HostName
}

// CreateDevice registers a device with symmetric-key authentication.
func (c *RegistryClient) CreateDevice(ctx context.Context, deviceID, primaryKey, secondaryKey string, status DeviceStatus) (*Device, error) {
	reqDevice := Device{
		DeviceID: deviceID,
		Status:   status,
		Authentication: Authentication{
			Type: AuthTypeSAS,
			SymmetricKey: &SymmetricKey{
				PrimaryKey:   primaryKey,
				SecondaryKey: secondaryKey,
			},
		},
	}
	body, err := json.Marshal(reqDevice)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrRegistration, err)
	}

	token, err := NewSASToken(c.conn.HostName, c.conn.SharedAccessKey, c.conn.SharedAccessKeyName, c.opts.now().Add(c.opts.tokenTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistration, err)
	}

	endpoint := fmt.Sprintf("%s://%s/devices/%s?api-version=%s",
		c.opts.scheme, c.conn.HostName, url.PathEscape(deviceID), registryAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrRegistration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", token)

	slog.Debug("Creating device", "device_id", deviceID, "host", c.conn.HostName)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to registry: %v", ErrRegistration, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*16))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrRegistration, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newRegistrationError(resp, respBody)
	}

	var created Device
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrRegistration, err)
	}
	return &created, nil
}

func newRegistrationError(resp *http.Response, body []byte) *RegistrationError {
	regErr := &RegistrationError{
		StatusCode: resp.StatusCode,
		Code:       resp.Header.Get("iothub-errorcode"),
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		regErr.Message = errResp.Message
	} else {
		regErr.Message = strings.TrimSpace(string(truncate(body, maxErrorBody)))
	}

	if regErr.Code == "" {
		regErr.Code = errorCode(regErr.Message)
	}
	return regErr
}

// errorCode extracts X from messages shaped "ErrorCode:X;...".
func errorCode(message string) string {
	rest, ok := strings.CutPrefix(message, "ErrorCode:")
	if !ok {
		return ""
	}
	code, _, _ := strings.Cut(rest, ";")
	return code
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
