package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/solentwx/weather-station/internal/weather"
)

// NavisSource reads the Seaview anemometer from navis-livedata.com. A page
// view establishes the session cookie, then the query endpoint returns
// pipe-delimited "interval:hexdata" records whose hex payload bit-packs
// temperature, wind speed, direction and RSSI. The reading averages the
// requested window and reports the peak as the gust.
type NavisSource struct {
	name    string
	baseURL string
	imei    string
	viewID  string
	window  time.Duration
	now     func() time.Time
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewNavisSource(cfg HTTPClientConfig, imei, viewID string, window time.Duration) *NavisSource {
	cfg.Backoff = defaultBackoff()
	if window <= 0 {
		window = time.Hour
	}
	return &NavisSource{
		name:    "navis",
		baseURL: "https://www.navis-livedata.com",
		imei:    imei,
		viewID:  viewID,
		window:  window,
		now:     time.Now,
		httpCfg: cfg,
		circuit: newCircuit("navis"),
	}
}

func (s *NavisSource) Name() string {
	return s.name
}

func (s *NavisSource) Fetch(ctx context.Context) (weather.Reading, error) {
	sessionURL := fmt.Sprintf("%s/view.php?u=%s", s.baseURL, url.QueryEscape(s.viewID))

	// Establish the session first; the query endpoint rejects cookie-less calls.
	buildSession := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, sessionURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html,*/*")
		return req, nil
	}
	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildSession)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("navis session: %w", err)
	}
	if _, err := readBody(resp, s.httpCfg.MaxBody); err != nil {
		return weather.Reading{}, fmt.Errorf("navis session: %w", err)
	}

	now := s.now().UTC()
	from := now.Add(-s.window)

	buildQuery := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/query.php?imei=%s&type=data&from=%d&to=%d",
			s.baseURL, url.QueryEscape(s.imei), from.Unix(), now.Unix())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "*/*")
		req.Header.Set("Referer", sessionURL)
		return req, nil
	}
	resp, err = doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildQuery)
	if err != nil {
		return weather.Reading{}, err
	}

	body, err := readBody(resp, s.httpCfg.MaxBody)
	if err != nil {
		return weather.Reading{}, err
	}

	points, err := parseNavisData(string(body))
	if err != nil {
		return weather.Reading{}, err
	}
	return summarizeNavis(points, now), nil
}

// navisPoint is one decoded telemetry sample.
type navisPoint struct {
	speedMS float64
	dirDeg  int
	tempC   float64
	rssi    int
}

// decodeNavisHex unpacks one hex record. The transmitter packs the sample
// into (up to) 12 hex chars: everything before the final 8 chars is the MSB
// word carrying temperature, the final 8 chars are the LSB word carrying
// speed, direction and RSSI.
func decodeNavisHex(h string) (navisPoint, error) {
	h = strings.TrimSpace(h)
	if len(h) < 8 {
		return navisPoint{}, fmt.Errorf("hex record %q too short: %w", h, weather.ErrInvalidFormat)
	}

	var msb uint64
	if len(h) > 8 {
		v, err := strconv.ParseUint(h[:len(h)-8], 16, 64)
		if err != nil {
			return navisPoint{}, fmt.Errorf("hex record %q: %w", h, weather.ErrInvalidFormat)
		}
		msb = v
	}
	lsb, err := strconv.ParseUint(h[len(h)-8:], 16, 64)
	if err != nil {
		return navisPoint{}, fmt.Errorf("hex record %q: %w", h, weather.ErrInvalidFormat)
	}

	tempRaw := msb & 0x7FF
	speedRaw := lsb >> 16
	dirRaw := (lsb >> 7) & 0x1FF
	rssi := lsb & 0x7F

	return navisPoint{
		speedMS: float64(speedRaw) / 10.0,
		dirDeg:  int(dirRaw),
		tempC:   (float64(tempRaw) - 400) / 10.0,
		rssi:    int(rssi),
	}, nil
}

// parseNavisData splits the pipe-delimited history payload. Records arrive
// as "interval:hexdata" or "timestamp,interval:hexdata"; undecodable records
// are skipped, an empty or "error" payload is a format error.
func parseNavisData(raw string) ([]navisPoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "error" {
		return nil, fmt.Errorf("navis returned no data: %w", weather.ErrInvalidFormat)
	}

	var points []navisPoint
	for _, rec := range strings.Split(raw, "|") {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		if i := strings.IndexByte(rec, ','); i >= 0 {
			rec = rec[i+1:]
		}
		i := strings.IndexByte(rec, ':')
		if i < 0 {
			continue
		}
		p, err := decodeNavisHex(rec[i+1:])
		if err != nil {
			continue
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("no decodable navis records: %w", weather.ErrInvalidFormat)
	}
	return points, nil
}

// summarizeNavis averages the window and takes the peak speed as gust.
// Samples outside physical bounds are excluded per series, matching how the
// station's own charting treats glitched packets.
func summarizeNavis(points []navisPoint, ts time.Time) weather.Reading {
	var (
		sumSpeed  float64
		nSpeed    int
		peakSpeed float64
		sumDir    float64
		nDir      int
		sumTemp   float64
		nTemp     int
	)

	for _, p := range points {
		if p.speedMS >= 0 {
			sumSpeed += p.speedMS
			nSpeed++
			if p.speedMS > peakSpeed {
				peakSpeed = p.speedMS
			}
		}
		if p.dirDeg >= 0 && p.dirDeg <= 360 {
			sumDir += float64(p.dirDeg)
			nDir++
		}
		if p.tempC >= -20 && p.tempC <= 50 {
			sumTemp += p.tempC
			nTemp++
		}
	}

	r := weather.Reading{
		Location:  "Seaview",
		Timestamp: ts,
	}
	if nSpeed > 0 {
		r.WindSpeed = sumSpeed / float64(nSpeed)
		r.WindGust = peakSpeed
		r.Fields |= weather.FieldWindSpeed | weather.FieldWindGust
		r.Valid = true
	}
	if nDir > 0 {
		r.WindDirection = int(sumDir/float64(nDir)) % 360
		r.Fields |= weather.FieldWindDirection
	}
	if nTemp > 0 {
		r.Temperature = sumTemp / float64(nTemp)
		r.Fields |= weather.FieldTemperature
		r.Valid = true
	}
	return r
}
