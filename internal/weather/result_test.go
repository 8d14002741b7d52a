package weather

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

// TestClassify verifies every error maps to exactly one status.
func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ParseStatus
	}{
		{"nil", nil, ParseOK},
		{"invalid format", ErrInvalidFormat, ParseInvalidFormat},
		{"buffer overflow", ErrBufferOverflow, ParseBufferOverflow},
		{"memory full", ErrMemoryFull, ParseMemoryFull},
		{"network timeout", ErrNetworkTimeout, ParseNetworkTimeout},
		{"unknown format", ErrUnknownFormat, ParseUnknownFormat},
		{"wrapped overflow", fmt.Errorf("body: %w", ErrBufferOverflow), ParseBufferOverflow},
		{"double wrapped", fmt.Errorf("fetch: %w", fmt.Errorf("parse: %w", ErrMemoryFull)), ParseMemoryFull},
		{"context deadline", context.DeadlineExceeded, ParseNetworkTimeout},
		{"os deadline", os.ErrDeadlineExceeded, ParseNetworkTimeout},
		{"net timeout", timeoutErr{}, ParseNetworkTimeout},
		{"wrapped net timeout", fmt.Errorf("get: %w", timeoutErr{}), ParseNetworkTimeout},
		{"plain error", errors.New("boom"), ParseInvalidFormat},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("%s: Classify = %s, want %s", tc.name, got, tc.want)
		}
	}
}

// TestParseStatusString verifies status labels are stable; they appear in
// console replies and API payloads.
func TestParseStatusString(t *testing.T) {
	cases := map[ParseStatus]string{
		ParseOK:             "ok",
		ParseInvalidFormat:  "invalid_format",
		ParseBufferOverflow: "buffer_overflow",
		ParseMemoryFull:     "memory_full",
		ParseNetworkTimeout: "network_timeout",
		ParseUnknownFormat:  "unknown_format",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", status, got, want)
		}
	}
}
