package dhcpv4

import "errors"

// Error kinds returned (wrapped) by the codec. Test with errors.Is.
var (
	// ErrTruncatedMessage means the buffer is shorter than the fixed header.
	ErrTruncatedMessage = errors.New("truncated message")
	// ErrTruncatedOption means an option declares more payload than remains.
	ErrTruncatedOption = errors.New("truncated option")
	// ErrMalformedField means a field or option payload violates its format.
	ErrMalformedField = errors.New("malformed field")
	// ErrUnknownOptionType is reported for unregistered codes. It never aborts a decode.
	ErrUnknownOptionType = errors.New("unknown option type")
	// ErrUnsupportedHardwareType means no hardware address encoder is configured.
	ErrUnsupportedHardwareType = errors.New("unsupported hardware address type")
)

// ErrorKind maps a codec error to a short label suitable for metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTruncatedMessage):
		return "truncated_message"
	case errors.Is(err, ErrTruncatedOption):
		return "truncated_option"
	case errors.Is(err, ErrMalformedField):
		return "malformed_field"
	case errors.Is(err, ErrUnknownOptionType):
		return "unknown_option_type"
	case errors.Is(err, ErrUnsupportedHardwareType):
		return "unsupported_hardware_type"
	default:
		return "other"
	}
}
