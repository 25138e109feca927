package iothub

type DeviceStatus string

const (
	StatusEnabled  DeviceStatus = "enabled"
	StatusDisabled DeviceStatus = "disabled"

	AuthTypeSAS = "sas"
)

// Device is the registry representation of a device identity.
type Device struct {
	DeviceID       string         `json:"deviceId"`
	Status         DeviceStatus   `json:"status"`
	Authentication Authentication `json:"authentication"`
	GenerationID   string         `json:"generationId,omitempty"`
	ETag           string         `json:"etag,omitempty"`
}

type Authentication struct {
	Type         string        `json:"type"`
	SymmetricKey *SymmetricKey `json:"symmetricKey,omitempty"`
}

type SymmetricKey struct {
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey"`
}
