package provisioning

// State is the provisioning state of one config store.
type State string

const (
	StateUnregistered State = "UNREGISTERED"
	StateRegistering  State = "REGISTERING"
	StateRegistered   State = "REGISTERED"
	StateFailed       State = "FAILED"
)

// Result describes how a provisioning run ended.
type Result struct {
	State    State
	DeviceID string
	// AlreadyRegistered is set when the store held a complete identity and
	// nothing was done.
	AlreadyRegistered bool
	// Skipped is set when the registry reported the device as existing.
	Skipped           bool
	HubSecretScrubbed bool
	Written           []string
}
