package store

import (
	"errors"
	"fmt"

	"github.com/solentwx/weather-station/internal/wifi"
)

// Settings namespace and keys for the stored network credential record.
const (
	credNamespace = "weather"
	keySSID       = "ssid"
	keyPassword   = "password"
	keyConfigured = "configured"
)

// CredentialStore persists one wifi credential record in the SQLite settings
// table under the "weather" namespace.
type CredentialStore struct {
	db *SQLiteStore
}

func NewCredentialStore(db *SQLiteStore) *CredentialStore {
	return &CredentialStore{db: db}
}

// Load restores the stored record. Credentials written by Save come back
// byte-identical.
func (c *CredentialStore) Load() (wifi.Credentials, error) {
	configured, err := c.db.GetSetting(credNamespace, keyConfigured)
	if errors.Is(err, ErrNoSetting) {
		return wifi.Credentials{}, wifi.ErrNoCredential
	}
	if err != nil {
		return wifi.Credentials{}, err
	}

	ssid, err := c.db.GetSetting(credNamespace, keySSID)
	if err != nil {
		return wifi.Credentials{}, err
	}
	password, err := c.db.GetSetting(credNamespace, keyPassword)
	if err != nil && !errors.Is(err, ErrNoSetting) {
		return wifi.Credentials{}, err
	}

	return wifi.Credentials{
		SSID:       ssid,
		Password:   password,
		Configured: configured == "true",
	}, nil
}

// Save validates and writes the record.
func (c *CredentialStore) Save(creds wifi.Credentials) error {
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("refusing to persist credentials: %w", err)
	}
	if err := c.db.SetSetting(credNamespace, keySSID, creds.SSID); err != nil {
		return err
	}
	if err := c.db.SetSetting(credNamespace, keyPassword, creds.Password); err != nil {
		return err
	}
	configured := "false"
	if creds.Configured {
		configured = "true"
	}
	return c.db.SetSetting(credNamespace, keyConfigured, configured)
}

// Clear erases the whole namespace.
func (c *CredentialStore) Clear() error {
	return c.db.ClearNamespace(credNamespace)
}
