package msg

import "errors"

// Error taxonomy for the messaging substrate. Each kind is a sentinel
// that concrete errors wrap with fmt.Errorf("...: %w", KindX) so
// callers can dispatch with errors.Is without string matching.
var (
	// ErrInvalidArgument marks a construction-time validation failure:
	// a topic built with "*" domain, nil metadata, or a port outside
	// the valid range.
	ErrInvalidArgument = errors.New("msg: invalid argument")

	// ErrConnectionError marks a failed control handshake after all
	// connect retries were exhausted.
	ErrConnectionError = errors.New("msg: connection error")

	// ErrTimeout marks a sync publish or registrar request that
	// exceeded its deadline.
	ErrTimeout = errors.New("msg: timeout")

	// ErrProtocolViolation marks a wire message with the wrong number
	// of frames, or a registrar response whose status was not "success".
	ErrProtocolViolation = errors.New("msg: protocol violation")

	// ErrTransportTerminated marks an expected error produced by
	// tearing down the shared transport during shutdown. Callers
	// should suppress this from error reporting.
	ErrTransportTerminated = errors.New("msg: transport terminated")

	// ErrSerializationError marks a metadata or payload encode/decode
	// failure.
	ErrSerializationError = errors.New("msg: serialization error")
)
