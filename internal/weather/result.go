package weather

import (
	"context"
	"errors"
	"net"
	"os"
)

// Sentinel errors for fetch/parse failures. Sources and parsers wrap these
// with fmt.Errorf("...: %w", ...) so callers can classify outcomes.
var (
	ErrInvalidFormat  = errors.New("invalid format")
	ErrBufferOverflow = errors.New("buffer overflow")
	ErrMemoryFull     = errors.New("memory full")
	ErrNetworkTimeout = errors.New("network timeout")
	ErrUnknownFormat  = errors.New("unknown format")
)

// ParseStatus is the discrete outcome of a single fetch-and-parse attempt.
type ParseStatus int

const (
	ParseOK ParseStatus = iota
	ParseInvalidFormat
	ParseBufferOverflow
	ParseMemoryFull
	ParseNetworkTimeout
	ParseUnknownFormat
)

func (s ParseStatus) String() string {
	switch s {
	case ParseOK:
		return "ok"
	case ParseInvalidFormat:
		return "invalid_format"
	case ParseBufferOverflow:
		return "buffer_overflow"
	case ParseMemoryFull:
		return "memory_full"
	case ParseNetworkTimeout:
		return "network_timeout"
	case ParseUnknownFormat:
		return "unknown_format"
	default:
		return "invalid_format"
	}
}

// Classify maps an error from a fetch/parse attempt to exactly one ParseStatus.
// A nil error is ParseOK. Errors that do not match a sentinel and are not
// timeouts fall back to ParseInvalidFormat.
func Classify(err error) ParseStatus {
	if err == nil {
		return ParseOK
	}
	switch {
	case errors.Is(err, ErrBufferOverflow):
		return ParseBufferOverflow
	case errors.Is(err, ErrMemoryFull):
		return ParseMemoryFull
	case errors.Is(err, ErrUnknownFormat):
		return ParseUnknownFormat
	case errors.Is(err, ErrNetworkTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded):
		return ParseNetworkTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ParseNetworkTimeout
	}

	return ParseInvalidFormat
}
