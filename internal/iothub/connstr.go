package iothub

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidConnectionString = errors.New("invalid connection string")

// ConnectionString is either a hub-scope string (SharedAccessKeyName set) or
// a device-scope string (DeviceID set).
type ConnectionString struct {
	HostName            string
	DeviceID            string
	SharedAccessKeyName string
	SharedAccessKey     string
}

// ParseConnectionString parses "Key=Value;Key=Value" pairs. Values are split
// on the first "=" so base64 padding survives.
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(strings.TrimSpace(s), ";") {
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return ConnectionString{}, fmt.Errorf("%w: segment %q has no value", ErrInvalidConnectionString, key)
		}
		switch key {
		case "HostName":
			cs.HostName = value
		case "DeviceId":
			cs.DeviceID = value
		case "SharedAccessKeyName":
			cs.SharedAccessKeyName = value
		case "SharedAccessKey":
			cs.SharedAccessKey = value
		}
	}

	if cs.HostName == "" {
		return ConnectionString{}, fmt.Errorf("%w: HostName not found", ErrInvalidConnectionString)
	}
	return cs, nil
}

// DeviceConnectionString composes the string a device uses to authenticate.
func DeviceConnectionString(hostName, deviceID, key string) string {
	return ConnectionString{HostName: hostName, DeviceID: deviceID, SharedAccessKey: key}.String()
}

func (cs ConnectionString) String() string {
	parts := []string{"HostName=" + cs.HostName}
	if cs.DeviceID != "" {
		parts = append(parts, "DeviceId="+cs.DeviceID)
	}
	if cs.SharedAccessKeyName != "" {
		parts = append(parts, "SharedAccessKeyName="+cs.SharedAccessKeyName)
	}
	if cs.SharedAccessKey != "" {
		parts = append(parts, "SharedAccessKey="+cs.SharedAccessKey)
	}
	return strings.Join(parts, ";")
}

func (cs ConnectionString) requireHub() error {
	if cs.SharedAccessKeyName == "" || cs.SharedAccessKey == "" {
		return fmt.Errorf("%w: hub connection string needs SharedAccessKeyName and SharedAccessKey", ErrInvalidConnectionString)
	}
	return nil
}

func (cs ConnectionString) requireDevice() error {
	if cs.DeviceID == "" || cs.SharedAccessKey == "" {
		return fmt.Errorf("%w: device connection string needs DeviceId and SharedAccessKey", ErrInvalidConnectionString)
	}
	return nil
}
