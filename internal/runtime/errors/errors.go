package errors

import sterrors "errors"

var (
	ErrSocketExists      = sterrors.New("socketbus: socket already exists")
	ErrSocketNotFound    = sterrors.New("socketbus: socket not found")
	ErrOutOfResources    = sterrors.New("socketbus: out of socket resources")
	ErrInvalidSocketName = sterrors.New("socketbus: invalid socket name")
	ErrSocketHasPending  = sterrors.New("socketbus: socket has pending messages")
	ErrSocketsOpen       = sterrors.New("socketbus: sockets still open")
	ErrRegistryClosed    = sterrors.New("socketbus: registry is shut down")
	ErrPayloadTooLarge   = sterrors.New("socketbus: payload exceeds maximum size")
	ErrCallbackRequired  = sterrors.New("socketbus: dispatch callback is required")
	ErrRegistryRequired  = sterrors.New("socketbus: registry is required")
	ErrConfigRequired    = sterrors.New("socketbus: configuration is required")
	ErrLoggerRequired    = sterrors.New("socketbus: logger is required")
	ErrPublisherRequired = sterrors.New("socketbus: publisher is required")
	ErrTopicRequired     = sterrors.New("socketbus: topic is required")
	ErrUnknownTransport  = sterrors.New("socketbus: unknown transport")

	ErrSubscriberRequired = sterrors.New("socketbus: subscriber is required")
	ErrDescriptorMismatch = sterrors.New("socketbus: message descriptor does not match target")
	ErrUnknownDescriptor  = sterrors.New("socketbus: unknown descriptor")
	ErrMalformedPayload   = sterrors.New("socketbus: malformed payload")
)

// ConfigValidationError wraps the joined validation failures of a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "socketbus: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
