package wifi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config bounds the manager's lifecycle operations.
type Config struct {
	ConnectTimeout     time.Duration
	ScanTimeout        time.Duration
	ReconnectInterval  time.Duration
	StatusPollInterval time.Duration
	MaxNetworks        int
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 40 * time.Second
	}
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = 10 * time.Second
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 30 * time.Second
	}
	if c.StatusPollInterval <= 0 {
		c.StatusPollInterval = 5 * time.Second
	}
	if c.MaxNetworks <= 0 {
		c.MaxNetworks = MaxScanNetworks
	}
	return c
}

// ScanResult is one completed scan.
type ScanResult struct {
	ID        string    `json:"id"`
	Networks  []Network `json:"networks"`
	Completed time.Time `json:"completed"`
}

// ErrBusy is returned when a scan or connect is requested while another
// lifecycle operation is in flight.
var ErrBusy = errors.New("wifi manager busy")

// Manager runs the connection state machine: it connects with stored
// credentials at startup, polls the link while connected, and retries after
// loss on the reconnect interval.
type Manager struct {
	cfg     Config
	backend Backend
	creds   CredentialStore // may be nil

	mu          sync.Mutex
	state       State
	link        LinkStatus
	current     Credentials
	lastScan    *ScanResult
	lastAttempt time.Time

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a Manager. credStore may be nil, in which case nothing
// is persisted and no automatic connect happens at startup.
func NewManager(cfg Config, backend Backend, credStore CredentialStore) *Manager {
	return &Manager{
		cfg:     cfg.withDefaults(),
		backend: backend,
		creds:   credStore,
		state:   StateDisconnected,
	}
}

// Start loads persisted credentials, attempts the initial connect when a
// network is configured, and launches the poll/reconnect loop.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	if m.creds != nil {
		stored, err := m.creds.Load()
		switch {
		case errors.Is(err, ErrNoCredential):
			// first boot, wait for configuration
		case err != nil:
			cancel()
			return fmt.Errorf("load credentials: %w", err)
		case stored.Configured:
			m.mu.Lock()
			m.current = stored
			m.mu.Unlock()
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				if err := m.connect(runCtx, stored); err != nil {
					log.Printf("wifi: initial connect to %q failed: %v", stored.SSID, err)
				}
			}()
		}
	}

	go m.run(runCtx)
	return nil
}

// Stop cancels the loop and waits for it and any startup connect to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.StatusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	m.mu.Lock()
	state := m.state
	creds := m.current
	last := m.lastAttempt
	m.mu.Unlock()

	switch state {
	case StateConnected:
		pollCtx, cancel := context.WithTimeout(ctx, m.cfg.StatusPollInterval)
		st, err := m.backend.Status(pollCtx)
		cancel()

		m.mu.Lock()
		if m.state != StateConnected {
			// A scan or connect took over while the poll was in flight.
			m.mu.Unlock()
			return
		}
		if err != nil || !st.Connected {
			m.state = StateDisconnected
			m.link = LinkStatus{}
			m.mu.Unlock()
			log.Printf("wifi: link to %q lost", creds.SSID)
			return
		}
		m.link = st
		m.mu.Unlock()

	case StateDisconnected, StateConnectionFailed:
		if !creds.Configured {
			return
		}
		if time.Since(last) < m.cfg.ReconnectInterval {
			return
		}
		log.Printf("wifi: reconnecting to %q", creds.SSID)
		if err := m.connect(ctx, creds); err != nil {
			log.Printf("wifi: reconnect to %q failed: %v", creds.SSID, err)
		}
	}
}

// Connect validates and applies new credentials, persisting them on success.
func (m *Manager) Connect(ctx context.Context, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	if err := m.connect(ctx, creds); err != nil {
		return err
	}

	if m.creds != nil {
		m.mu.Lock()
		stored := m.current
		m.mu.Unlock()
		if err := m.creds.Save(stored); err != nil {
			return fmt.Errorf("connected but persisting credentials failed: %w", err)
		}
	}
	return nil
}

func (m *Manager) connect(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateScanning {
		m.mu.Unlock()
		return ErrBusy
	}
	m.state = StateConnecting
	m.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	err := m.backend.Connect(cctx, creds)
	cancel()

	m.mu.Lock()
	m.lastAttempt = time.Now()
	if err != nil {
		m.state = StateConnectionFailed
		m.mu.Unlock()
		return fmt.Errorf("connect to %q: %w", creds.SSID, err)
	}
	creds.Configured = true
	m.current = creds
	m.state = StateConnected
	m.mu.Unlock()

	stCtx, cancel := context.WithTimeout(ctx, m.cfg.StatusPollInterval)
	st, stErr := m.backend.Status(stCtx)
	cancel()
	if stErr == nil {
		m.mu.Lock()
		m.link = st
		m.mu.Unlock()
	}

	log.Printf("wifi: connected to %q", creds.SSID)
	return nil
}

// Scan enumerates nearby access points, capped at the configured maximum.
// While connected the link stays up and the state returns to Connected after
// the scan; otherwise it lands in ScanComplete.
func (m *Manager) Scan(ctx context.Context) (ScanResult, error) {
	m.mu.Lock()
	if m.state == StateScanning || m.state == StateConnecting {
		m.mu.Unlock()
		return ScanResult{}, ErrBusy
	}
	prev := m.state
	m.state = StateScanning
	m.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, m.cfg.ScanTimeout)
	nets, err := m.backend.Scan(sctx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.state = prev
		return ScanResult{}, fmt.Errorf("scan: %w", err)
	}

	filtered := make([]Network, 0, len(nets))
	for _, n := range nets {
		if len(n.SSID) > MaxSSIDLen {
			continue
		}
		filtered = append(filtered, n)
		if len(filtered) >= m.cfg.MaxNetworks {
			break
		}
	}

	res := ScanResult{
		ID:        uuid.NewString(),
		Networks:  filtered,
		Completed: time.Now().UTC(),
	}
	m.lastScan = &res

	if prev == StateConnected {
		m.state = StateConnected
	} else {
		m.state = StateScanComplete
	}
	return res, nil
}

// Disconnect drops the link and suspends automatic reconnects until the next
// Connect (persisted credentials are kept).
func (m *Manager) Disconnect(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.StatusPollInterval)
	err := m.backend.Disconnect(dctx)
	cancel()

	m.mu.Lock()
	m.state = StateDisconnected
	m.link = LinkStatus{}
	m.current.Configured = false
	m.mu.Unlock()
	return err
}

// Forget drops the link and erases persisted credentials.
func (m *Manager) Forget(ctx context.Context) error {
	if err := m.Disconnect(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = Credentials{}
	m.mu.Unlock()

	if m.creds != nil {
		return m.creds.Clear()
	}
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Link returns the last observed link status.
func (m *Manager) Link() LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link
}

// Credentials returns the active credentials record.
func (m *Manager) Credentials() Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastScan returns the most recent scan result, or false if none happened yet.
func (m *Manager) LastScan() (ScanResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastScan == nil {
		return ScanResult{}, false
	}
	return *m.lastScan, true
}
