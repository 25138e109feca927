package dto

import "github.com/EternisAI/probe-relay/internal/iothub"

const (
	HubErrorCodeHeader = "iothub-errorcode"

	ErrorCodeUnauthorized  = "IotHubUnauthorizedAccess"
	ErrorCodeDeviceExists  = "DeviceAlreadyExists"
	ErrorCodeDeviceMissing = "DeviceNotFound"
	ErrorCodeDisabled      = "DeviceDisabled"
	ErrorCodeArgument      = "ArgumentInvalid"
	ErrorCodeMessage       = "MessageInvalid"
	ErrorCodeTooLarge      = "MessageTooLarge"
	ErrorCodeServer        = "ServerError"
)

// HubError is the body of every non-2xx response on the device-facing routes.
func HubError(code, message string) iothub.ErrorResponse {
	return iothub.ErrorResponse{
		Message:          "ErrorCode:" + code + ";" + message,
		ExceptionMessage: message,
	}
}
