package wifi

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// LinkStatus is the backend's view of the current association.
type LinkStatus struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid,omitempty"`
	RSSI      int    `json:"rssi,omitempty"`
	Channel   int    `json:"channel,omitempty"`
}

// Backend is the radio abstraction the Manager drives. Implementations must
// honor context cancellation on every call and be safe for concurrent use.
type Backend interface {
	Scan(ctx context.Context) ([]Network, error)
	Connect(ctx context.Context, creds Credentials) error
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (LinkStatus, error)
}

// SimBackend is an in-process Backend over a fixed set of access points.
// It backs dev runs and tests; joining succeeds when the SSID is known and
// the password matches (any password joins an open network).
type SimBackend struct {
	mu        sync.Mutex
	networks  []Network
	passwords map[string]string
	joined    string
	down      bool
}

// NewSimBackend creates a backend advertising the given networks.
// passwords maps SSID to the accepted password; SSIDs absent from the map
// are treated as open.
func NewSimBackend(networks []Network, passwords map[string]string) *SimBackend {
	if passwords == nil {
		passwords = make(map[string]string)
	}
	return &SimBackend{networks: networks, passwords: passwords}
}

// Scan returns the advertised networks sorted by descending signal strength.
func (b *SimBackend) Scan(ctx context.Context) ([]Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Network, len(b.networks))
	copy(out, b.networks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSSI > out[j].RSSI })
	return out, nil
}

func (b *SimBackend) Connect(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.networks {
		if n.SSID != creds.SSID {
			continue
		}
		if want, ok := b.passwords[n.SSID]; ok && want != creds.Password {
			return fmt.Errorf("authentication failed for %q", creds.SSID)
		}
		b.joined = n.SSID
		b.down = false
		return nil
	}
	return fmt.Errorf("network %q not found", creds.SSID)
}

func (b *SimBackend) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.joined = ""
	return nil
}

func (b *SimBackend) Status(ctx context.Context) (LinkStatus, error) {
	if err := ctx.Err(); err != nil {
		return LinkStatus{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.joined == "" || b.down {
		return LinkStatus{}, nil
	}
	for _, n := range b.networks {
		if n.SSID == b.joined {
			return LinkStatus{Connected: true, SSID: n.SSID, RSSI: n.RSSI, Channel: n.Channel}, nil
		}
	}
	return LinkStatus{Connected: true, SSID: b.joined}, nil
}

// DropLink simulates losing the association without an explicit disconnect.
func (b *SimBackend) DropLink() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = true
}

// ParseSimSpec parses a comma-separated network list of the form
// "ssid:rssi:channel[:password]" into the networks and password map a
// SimBackend takes. An empty spec yields an empty backend.
func ParseSimSpec(spec string) ([]Network, map[string]string, error) {
	var networks []Network
	passwords := make(map[string]string)

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, nil, fmt.Errorf("invalid network spec %q (want ssid:rssi:channel[:password])", entry)
		}

		rssi, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid rssi in %q: %w", entry, err)
		}
		channel, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid channel in %q: %w", entry, err)
		}

		n := Network{SSID: parts[0], RSSI: rssi, Channel: channel, Security: SecurityOpen}
		if len(parts) == 4 {
			n.Security = SecurityWPA2
			passwords[n.SSID] = parts[3]
		}
		networks = append(networks, n)
	}
	return networks, passwords, nil
}
