// Package console exposes the line-oriented command channel: a small TCP
// listener speaking one command per line.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/solentwx/weather-station/internal/parse"
	"github.com/solentwx/weather-station/internal/weather"
	"github.com/solentwx/weather-station/internal/wifi"
)

// Config bounds the command channel.
type Config struct {
	Addr          string
	ReadTimeout   time.Duration // max gap between bytes of a partial command
	MaxCommandLen int           // command buffer size in bytes
	FetchTimeout  time.Duration // per on-demand fetch
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = time.Second
	}
	if c.MaxCommandLen <= 0 {
		c.MaxCommandLen = 512
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	return c
}

var (
	errCommandTooLong  = errors.New("command exceeds buffer")
	errCommandTimedOut = errors.New("command read timed out")
)

// Console accepts connections and serves commands until closed.
type Console struct {
	cfg    Config
	svc    *weather.Service
	mgr    *wifi.Manager // may be nil
	limits parse.Limits

	ln net.Listener
	wg sync.WaitGroup
}

func New(cfg Config, svc *weather.Service, mgr *wifi.Manager, limits parse.Limits) *Console {
	return &Console{cfg: cfg.withDefaults(), svc: svc, mgr: mgr, limits: limits}
}

// Start begins listening and accepting sessions.
func (c *Console) Start() error {
	ln, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		return fmt.Errorf("console listen on %s: %w", c.cfg.Addr, err)
	}
	c.ln = ln
	log.Printf("console listening on %s", ln.Addr())

	c.wg.Add(1)
	go c.acceptLoop()
	return nil
}

// Addr returns the bound address.
func (c *Console) Addr() net.Addr {
	return c.ln.Addr()
}

// Stop closes the listener and waits for live sessions to finish.
func (c *Console) Stop() {
	if c.ln != nil {
		c.ln.Close()
	}
	c.wg.Wait()
}

func (c *Console) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer conn.Close()
			c.session(conn)
		}()
	}
}

func (c *Console) session(conn net.Conn) {
	fmt.Fprintf(conn, "weather-station console; type 'help' for commands\n")

	for {
		line, err := c.readCommand(conn)
		if errors.Is(err, errCommandTooLong) {
			fmt.Fprintf(conn, "ERR command exceeds %d byte buffer\n", c.cfg.MaxCommandLen)
			continue
		}
		if errors.Is(err, errCommandTimedOut) {
			fmt.Fprintf(conn, "ERR command read timed out\n")
			continue
		}
		if err != nil {
			return
		}

		if !c.dispatch(conn, line) {
			return
		}
	}
}

// readCommand reads one newline-terminated command. Waiting for the first
// byte is unbounded; once a command has started, each further byte must
// arrive within ReadTimeout. Oversized
// commands are drained to the next newline and reported.
func (c *Console) readCommand(conn net.Conn) (string, error) {
	buf := make([]byte, 0, c.cfg.MaxCommandLen)
	one := make([]byte, 1)
	overflow := false

	for {
		if len(buf) == 0 && !overflow {
			conn.SetReadDeadline(time.Time{})
		} else {
			conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}

		n, err := conn.Read(one)
		if err != nil {
			if overflow || len(buf) > 0 {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					// Stalled partial command; discard it.
					return "", errCommandTimedOut
				}
			}
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		if n == 0 {
			continue
		}

		b := one[0]
		if b == '\n' {
			if overflow {
				return "", errCommandTooLong
			}
			return strings.TrimSuffix(string(buf), "\r"), nil
		}
		if overflow {
			continue
		}
		if len(buf) >= c.cfg.MaxCommandLen {
			overflow = true
			continue
		}
		buf = append(buf, b)
	}
}

// dispatch runs one command, returning false when the session should end.
func (c *Console) dispatch(conn net.Conn, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "help":
		c.cmdHelp(conn)
	case "status":
		c.cmdStatus(conn)
	case "sources":
		for _, name := range c.svc.SourceNames() {
			fmt.Fprintf(conn, "%s\n", name)
		}
	case "fetch":
		c.cmdFetch(conn, fields[1:])
	case "last":
		c.cmdLast(conn)
	case "parse":
		c.cmdParse(conn, line)
	case "wifi":
		c.cmdWiFi(conn, fields[1:])
	case "quit", "exit":
		fmt.Fprintf(conn, "bye\n")
		return false
	default:
		fmt.Fprintf(conn, "ERR unknown command %q; try 'help'\n", fields[0])
	}
	return true
}

func (c *Console) cmdHelp(conn net.Conn) {
	fmt.Fprint(conn, `commands:
  status                         last fetch outcome per station and link state
  sources                        list configured stations
  fetch <source>                 fetch one station now
  last                           show the latest aggregated snapshot
  parse <payload>                run the generic parser over an inline payload
  wifi status|scan|disconnect|forget
  wifi connect <ssid> [password]
  quit
`)
}

func (c *Console) cmdStatus(conn net.Conn) {
	statuses := c.svc.Statuses()
	if len(statuses) == 0 {
		fmt.Fprintf(conn, "no fetches yet\n")
	}
	for _, st := range statuses {
		if st.Error != "" {
			fmt.Fprintf(conn, "%-16s %-16s %s (%s)\n", st.Source, st.StatusText, st.LastAttempt.Format(time.RFC3339), st.Error)
		} else {
			fmt.Fprintf(conn, "%-16s %-16s %s in %s\n", st.Source, st.StatusText, st.LastAttempt.Format(time.RFC3339), st.ParseTime.Round(time.Millisecond))
		}
	}
	if c.mgr != nil {
		link := c.mgr.Link()
		if link.Connected {
			fmt.Fprintf(conn, "wifi: %s (ssid %q, rssi %d)\n", c.mgr.State(), link.SSID, link.RSSI)
		} else {
			fmt.Fprintf(conn, "wifi: %s\n", c.mgr.State())
		}
	}
}

func (c *Console) cmdFetch(conn net.Conn, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(conn, "ERR usage: fetch <source>\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
	defer cancel()

	r, err := c.svc.FetchOne(ctx, args[0])
	if err != nil {
		fmt.Fprintf(conn, "ERR %s: %v\n", weather.Classify(err), err)
		return
	}
	writeReading(conn, r)
}

func (c *Console) cmdLast(conn net.Conn) {
	snap, err := c.svc.GetLatest()
	if err != nil {
		fmt.Fprintf(conn, "ERR no snapshot yet\n")
		return
	}
	fmt.Fprintf(conn, "%s @ %s\n", snap.Location, snap.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(conn, "  temp %.1fC  humidity %.0f%%  pressure %.1fhPa\n", snap.Temperature, snap.Humidity, snap.Pressure)
	fmt.Fprintf(conn, "  wind %.1fm/s gust %.1fm/s dir %d\n", snap.WindSpeed, snap.WindGust, snap.WindDirection)
	for _, src := range snap.Sources {
		fmt.Fprintf(conn, "  source %s (%s)\n", src.Source, src.ParseDuration.Round(time.Millisecond))
	}
}

func (c *Console) cmdParse(conn net.Conn, line string) {
	payload := strings.TrimSpace(strings.TrimPrefix(line, "parse"))
	if payload == "" {
		fmt.Fprintf(conn, "ERR usage: parse <payload>\n")
		return
	}

	r, err := parse.Parse([]byte(payload), c.limits)
	if err != nil {
		fmt.Fprintf(conn, "ERR %s: %v\n", weather.Classify(err), err)
		return
	}
	fmt.Fprintf(conn, "format %s\n", parse.Detect([]byte(payload)))
	writeReading(conn, r)
}

func (c *Console) cmdWiFi(conn net.Conn, args []string) {
	if c.mgr == nil {
		fmt.Fprintf(conn, "ERR wifi manager not enabled\n")
		return
	}
	if len(args) == 0 {
		fmt.Fprintf(conn, "ERR usage: wifi status|scan|connect|disconnect|forget\n")
		return
	}

	// The manager bounds each lifecycle operation with its own configured
	// timeouts; a FetchTimeout deadline here would cut a long join short.
	ctx := context.Background()

	switch args[0] {
	case "status":
		link := c.mgr.Link()
		creds := c.mgr.Credentials()
		fmt.Fprintf(conn, "state %s\n", c.mgr.State())
		if link.Connected {
			fmt.Fprintf(conn, "ssid %q rssi %d channel %d\n", link.SSID, link.RSSI, link.Channel)
		}
		fmt.Fprintf(conn, "configured %t\n", creds.Configured)
	case "scan":
		res, err := c.mgr.Scan(ctx)
		if err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(conn, "scan %s: %d networks\n", res.ID, len(res.Networks))
		for _, n := range res.Networks {
			hidden := ""
			if n.Hidden {
				hidden = " hidden"
			}
			fmt.Fprintf(conn, "  %-32s rssi %-4d ch %-3d %s%s\n", n.SSID, n.RSSI, n.Channel, n.Security, hidden)
		}
	case "connect":
		if len(args) < 2 || len(args) > 3 {
			fmt.Fprintf(conn, "ERR usage: wifi connect <ssid> [password]\n")
			return
		}
		creds := wifi.Credentials{SSID: args[1]}
		if len(args) == 3 {
			creds.Password = args[2]
		}
		if err := c.mgr.Connect(ctx, creds); err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(conn, "OK connected to %q\n", creds.SSID)
	case "disconnect":
		if err := c.mgr.Disconnect(ctx); err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(conn, "OK\n")
	case "forget":
		if err := c.mgr.Forget(ctx); err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(conn, "OK credentials cleared\n")
	default:
		fmt.Fprintf(conn, "ERR unknown wifi subcommand %q\n", args[0])
	}
}

func writeReading(conn net.Conn, r weather.Reading) {
	fmt.Fprintf(conn, "%s %s @ %s\n", r.Station, r.Location, r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(conn, "  temp %.1fC humidity %.0f%% pressure %.1fhPa\n", r.Temperature, r.Humidity, r.Pressure)
	fmt.Fprintf(conn, "  wind %.1fm/s gust %.1fm/s dir %d vis %.1fkm uv %.1f precip %.1fmm\n",
		r.WindSpeed, r.WindGust, r.WindDirection, r.Visibility, r.UVIndex, r.Precipitation)
	if r.Conditions != "" {
		fmt.Fprintf(conn, "  conditions %s\n", r.Conditions)
	}
	fmt.Fprintf(conn, "  parsed in %s\n", r.ParseDuration.Round(time.Millisecond))
}
