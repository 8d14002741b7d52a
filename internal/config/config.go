package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/solentwx/weather-station/internal/parse"
)

// AppConfig carries every tunable of the service. Defaults mirror the
// station's stock configuration.
type AppConfig struct {
	// Location is the logical area the stations report on.
	Location string

	// Outbound HTTP.
	HTTPTimeout  time.Duration
	MaxRedirects int
	UserAgent    string

	// Parsing limits.
	Parse parse.Limits

	// Fetch scheduling.
	FetchInterval time.Duration

	// In-memory store retention.
	StoreMaxHistory int
	StoreMaxAge     time.Duration

	// SQLite persistence ("" disables it).
	SQLitePath string

	// HTTP API.
	Port string

	// Command console.
	ConsoleAddr        string
	ConsoleReadTimeout time.Duration
	CommandBufferSize  int

	// Network link management. Backend "sim" drives the in-process backend
	// configured from WIFI_SIM_NETWORKS; "off" disables the manager.
	WiFiBackend            string
	WiFiSimNetworks        string
	WiFiConnectTimeout     time.Duration
	WiFiScanTimeout        time.Duration
	WiFiReconnectInterval  time.Duration
	WiFiStatusPollInterval time.Duration
	WiFiMaxScanNetworks    int

	// Station endpoints.
	WeatherLinkPageID string
	WeatherFileLocID  string
	NavisIMEI         string
	NavisViewID       string
	NavisWindow       time.Duration
	CustomSourceName  string
	CustomSourceURL   string

	// Optional MQTT publishing ("" broker disables it).
	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string
}

// Load reads configuration from environment with stock defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.Location = getenvDefault("STATION_LOCATION", "Solent")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	cfg.MaxRedirects = getenvInt("HTTP_MAX_REDIRECTS", 3)
	cfg.UserAgent = getenvDefault("HTTP_USER_AGENT", "XIAO-Weather-Parser/1.0")

	cfg.Parse = parse.Limits{
		MaxBytes:           getenvInt("WEATHER_BUFFER_SIZE", 8192),
		MaxStructuredBytes: getenvInt("STRUCTURED_BUFFER_SIZE", 4096),
		MaxColumns:         getenvInt("CSV_MAX_COLUMNS", 20),
		MaxDepth:           getenvInt("XML_MAX_DEPTH", 10),
		MaxFields:          getenvInt("MAX_WEATHER_FIELDS", 15),
	}

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 96) // roughly 24h at 15-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "weather-station.db")

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.ConsoleAddr = getenvDefault("CONSOLE_ADDR", ":5760")
	if cfg.ConsoleReadTimeout, err = getenvDuration("CONSOLE_READ_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	cfg.CommandBufferSize = getenvInt("COMMAND_BUFFER_SIZE", 512)

	cfg.WiFiBackend = getenvDefault("WIFI_BACKEND", "sim")
	cfg.WiFiSimNetworks = os.Getenv("WIFI_SIM_NETWORKS")
	if cfg.WiFiConnectTimeout, err = getenvDuration("WIFI_CONNECT_TIMEOUT", 40*time.Second); err != nil {
		return nil, err
	}
	if cfg.WiFiScanTimeout, err = getenvDuration("WIFI_SCAN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WiFiReconnectInterval, err = getenvDuration("WIFI_RECONNECT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.WiFiStatusPollInterval, err = getenvDuration("WIFI_STATUS_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	cfg.WiFiMaxScanNetworks = getenvInt("WIFI_MAX_SCAN_NETWORKS", 20)

	cfg.WeatherLinkPageID = getenvDefault("WEATHERLINK_PAGE_ID", "0d117f9a7c7e425a8cc88e870f0e76fb")
	cfg.WeatherFileLocID = getenvDefault("WEATHERFILE_LOC_ID", "GBR00001")
	cfg.NavisIMEI = getenvDefault("NAVIS_IMEI", "083af23b9b89_15_1")
	cfg.NavisViewID = getenvDefault("NAVIS_VIEW_ID", "36371")
	if cfg.NavisWindow, err = getenvDuration("NAVIS_WINDOW", time.Hour); err != nil {
		return nil, err
	}
	cfg.CustomSourceName = getenvDefault("CUSTOM_SOURCE_NAME", "custom")
	cfg.CustomSourceURL = os.Getenv("CUSTOM_SOURCE_URL")

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	cfg.MQTTClientID = getenvDefault("MQTT_CLIENT_ID", "weather-station")
	cfg.MQTTTopic = getenvDefault("MQTT_TOPIC", "weather/solent/snapshot")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	for name, d := range map[string]time.Duration{
		"HTTP_TIMEOUT":              c.HTTPTimeout,
		"FETCH_INTERVAL":            c.FetchInterval,
		"CONSOLE_READ_TIMEOUT":      c.ConsoleReadTimeout,
		"WIFI_CONNECT_TIMEOUT":      c.WiFiConnectTimeout,
		"WIFI_SCAN_TIMEOUT":         c.WiFiScanTimeout,
		"WIFI_RECONNECT_INTERVAL":   c.WiFiReconnectInterval,
		"WIFI_STATUS_POLL_INTERVAL": c.WiFiStatusPollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}

	if c.WiFiScanTimeout > c.WiFiConnectTimeout {
		return fmt.Errorf("WIFI_SCAN_TIMEOUT %s must not exceed WIFI_CONNECT_TIMEOUT %s",
			c.WiFiScanTimeout, c.WiFiConnectTimeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("HTTP_MAX_REDIRECTS must not be negative")
	}
	if c.CommandBufferSize <= 0 {
		return fmt.Errorf("COMMAND_BUFFER_SIZE must be positive")
	}
	switch c.WiFiBackend {
	case "sim", "off":
	default:
		return fmt.Errorf("invalid WIFI_BACKEND %q (allowed: sim, off)", c.WiFiBackend)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
