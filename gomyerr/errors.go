// Package gomyerr defines the error taxonomy shared across the wire
// protocol and the connection pool.
package gomyerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error without tying callers to a concrete type.
type Kind int

const (
	// KindUnknown is the zero value; never returned intentionally.
	KindUnknown Kind = iota
	// KindSdkClient covers local misconfiguration (bad DSN, invalid option).
	KindSdkClient
	// KindProtocolFrame covers packet framing or sequence-id violations.
	KindProtocolFrame
	// KindAuthInvalid covers credential, TLS, or plugin-negotiation failures.
	KindAuthInvalid
	// KindServer wraps an ERR_Packet forwarded verbatim from the server.
	KindServer
	// KindNetwork covers socket and TLS transport failures.
	KindNetwork
	// KindTimeout covers acquisition, validation, and read/write deadlines.
	KindTimeout
	// KindPoolClosed is returned by a pool that has been shut down.
	KindPoolClosed
	// KindCircuitOpen is returned when the creation circuit breaker is open.
	KindCircuitOpen
	// KindFeatureUnsupported covers optional protocol features the peer lacks.
	KindFeatureUnsupported
	// KindDataConversion covers row/parameter decoding mismatches.
	KindDataConversion
	// KindResourceLeak is informational, emitted by the leak detector.
	KindResourceLeak
)

func (k Kind) String() string {
	switch k {
	case KindSdkClient:
		return "sdk_client"
	case KindProtocolFrame:
		return "protocol_frame"
	case KindAuthInvalid:
		return "auth_invalid"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindPoolClosed:
		return "pool_closed"
	case KindCircuitOpen:
		return "circuit_open"
	case KindFeatureUnsupported:
		return "feature_unsupported"
	case KindDataConversion:
		return "data_conversion"
	case KindResourceLeak:
		return "resource_leak"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced across package boundaries.
// Server errors additionally carry the SQLSTATE and vendor error code
// forwarded verbatim from an ERR_Packet.
type Error struct {
	Kind       Kind
	Message    string
	SQLState   string
	VendorCode uint16
	Cause      error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindServer && e.SQLState != "":
		return fmt.Sprintf("gomy: %s (%d, %s): %s", e.Kind, e.VendorCode, e.SQLState, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("gomy: %s: %s: %v", e.Kind, e.Message, e.Cause)
	default:
		return fmt.Sprintf("gomy: %s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, gomyerr.New(gomyerr.KindTimeout, "")) style
// matching against a Kind wrapped in a bare *Error produced by New
// without a cause chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Server builds the error forwarded from a server ERR_Packet.
func Server(vendorCode uint16, sqlState, message string) *Error {
	return &Error{Kind: KindServer, VendorCode: vendorCode, SQLState: sqlState, Message: message}
}

// KindOf reports the Kind of err if it (or something it wraps) is a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}

// fatalSQLStates mark a server error as connection-invalidating.
var fatalSQLStates = map[string]bool{
	"08S01": true, // communication link failure
	"08004": true, // server rejected connection
	"HY000": false,
}

// IsFatal reports whether a server error (by SQLSTATE) should mark the
// owning connection Removed rather than leaving it usable.
func IsFatal(sqlState string) bool {
	return fatalSQLStates[sqlState]
}
