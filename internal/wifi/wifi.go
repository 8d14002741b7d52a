// Package wifi tracks the station's wireless uplink: scanning, connecting
// with persisted credentials, and watching the link while it is up. The
// radio itself is behind the Backend interface.
package wifi

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Stored-credential limits, matching the persisted-storage record layout.
const (
	MaxSSIDLen     = 32
	MaxPasswordLen = 64
)

// MaxScanNetworks caps how many access points one scan reports.
const MaxScanNetworks = 20

// State is the discrete phase of the connection/scan lifecycle.
// Exactly one state is active at a time.
type State int

const (
	StateDisconnected State = iota
	StateScanning
	StateScanComplete
	StateConnecting
	StateConnected
	StateConnectionFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateScanning:
		return "scanning"
	case StateScanComplete:
		return "scan_complete"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateConnectionFailed:
		return "connection_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Security classifies an access point's authentication mode.
type Security int

const (
	SecurityUnknown Security = iota
	SecurityOpen
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPA3
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityWEP:
		return "wep"
	case SecurityWPA:
		return "wpa"
	case SecurityWPA2:
		return "wpa2"
	case SecurityWPA3:
		return "wpa3"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the security mode as its label.
func (s Security) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Network describes one access point discovered by a scan.
type Network struct {
	SSID     string   `json:"ssid"`
	RSSI     int      `json:"rssi"` // dBm, negative
	Security Security `json:"security"`
	Channel  int      `json:"channel"`
	Hidden   bool     `json:"hidden"`
}

// Credentials is the persisted SSID/password pair. Configured marks whether a
// network has been saved at all; the zero value means "never configured".
type Credentials struct {
	SSID       string `json:"ssid" validate:"required"`
	Password   string `json:"password,omitempty"`
	Configured bool   `json:"configured"`
}

var (
	ErrSSIDEmpty    = errors.New("ssid must not be empty")
	ErrSSIDTooLong  = fmt.Errorf("ssid exceeds %d bytes", MaxSSIDLen)
	ErrPassTooLong  = fmt.Errorf("password exceeds %d bytes", MaxPasswordLen)
	ErrNotUTF8      = errors.New("credentials must be valid utf-8")
	ErrNoCredential = errors.New("no credentials configured")
)

// Validate enforces the stored-record limits. Lengths are byte lengths: the
// persisted layout reserves 32/64 byte buffers, not rune counts.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return ErrSSIDEmpty
	}
	if len(c.SSID) > MaxSSIDLen {
		return ErrSSIDTooLong
	}
	if len(c.Password) > MaxPasswordLen {
		return ErrPassTooLong
	}
	if !utf8.ValidString(c.SSID) || !utf8.ValidString(c.Password) {
		return ErrNotUTF8
	}
	return nil
}

// CredentialStore persists one credentials record across restarts.
type CredentialStore interface {
	// Load returns the stored credentials. A never-configured store returns
	// ErrNoCredential.
	Load() (Credentials, error)
	Save(Credentials) error
	Clear() error
}
