package sources

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solentwx/weather-station/internal/weather"
)

// TestDecodeNavisHex verifies bit extraction against a hand-packed sample:
// temp raw 550 (15.0 C), speed raw 100 (10.0 m/s), direction 180, RSSI 60.
func TestDecodeNavisHex(t *testing.T) {
	p, err := decodeNavisHex("22600645A3C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.tempC != 15.0 {
		t.Fatalf("temp = %v, want 15.0", p.tempC)
	}
	if p.speedMS != 10.0 {
		t.Fatalf("speed = %v, want 10.0", p.speedMS)
	}
	if p.dirDeg != 180 {
		t.Fatalf("direction = %d, want 180", p.dirDeg)
	}
	if p.rssi != 60 {
		t.Fatalf("rssi = %d, want 60", p.rssi)
	}
}

// TestDecodeNavisHexShortRecord verifies records without a full LSB word are
// rejected.
func TestDecodeNavisHexShortRecord(t *testing.T) {
	_, err := decodeNavisHex("645A3C")
	if !errors.Is(err, weather.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestDecodeNavisHexGarbage(t *testing.T) {
	_, err := decodeNavisHex("zzzzzzzzzzz")
	if !errors.Is(err, weather.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

// TestParseNavisData covers the pipe-delimited record formats, including the
// optional leading timestamp and undecodable records being skipped.
func TestParseNavisData(t *testing.T) {
	raw := "600:22600645A3C|1772366400,600:22600645A3C|600:not-hex|600"
	points, err := parseNavisData(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2 decodable records", len(points))
	}
	for _, p := range points {
		if p.speedMS != 10.0 || p.dirDeg != 180 {
			t.Fatalf("point = %+v, want 10.0 m/s at 180", p)
		}
	}
}

func TestParseNavisDataErrorPayloads(t *testing.T) {
	for _, raw := range []string{"", "  ", "error", "600:zz|601:zz"} {
		if _, err := parseNavisData(raw); !errors.Is(err, weather.ErrInvalidFormat) {
			t.Fatalf("payload %q: expected ErrInvalidFormat, got %v", raw, err)
		}
	}
}

// TestSummarizeNavis verifies averaging, peak gust selection and the
// physical-bounds filtering of glitched samples.
func TestSummarizeNavis(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	points := []navisPoint{
		{speedMS: 8, dirDeg: 170, tempC: 14},
		{speedMS: 12, dirDeg: 190, tempC: 16},
		{speedMS: 10, dirDeg: 400, tempC: 99}, // direction and temp out of bounds
	}

	r := summarizeNavis(points, ts)
	if !r.Valid {
		t.Fatal("expected a valid reading")
	}
	if r.WindSpeed != 10 {
		t.Fatalf("wind speed = %v, want mean 10", r.WindSpeed)
	}
	if r.WindGust != 12 {
		t.Fatalf("gust = %v, want peak 12", r.WindGust)
	}
	if r.WindDirection != 180 {
		t.Fatalf("direction = %d, want mean of in-bounds samples 180", r.WindDirection)
	}
	if r.Temperature != 15 {
		t.Fatalf("temperature = %v, want mean of in-bounds samples 15", r.Temperature)
	}
	if r.Location != "Seaview" {
		t.Fatalf("location = %q, want Seaview", r.Location)
	}
	if !r.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", r.Timestamp, ts)
	}
}

// TestNavisSourceFetch runs the session-then-query flow against a stub server.
func TestNavisSourceFetch(t *testing.T) {
	var sessionHits, queryHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/view.php":
			sessionHits++
			if r.URL.Query().Get("u") != "36371" {
				t.Errorf("session view id = %q, want 36371", r.URL.Query().Get("u"))
			}
			w.Write([]byte("<html>ok</html>"))
		case "/query.php":
			queryHits++
			q := r.URL.Query()
			if q.Get("imei") != "083af23b9b89_15_1" || q.Get("type") != "data" {
				t.Errorf("unexpected query params: %v", q)
			}
			w.Write([]byte("600:22600645A3C|600:22600645A3C"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewNavisSource(HTTPClientConfig{Client: srv.Client()}, "083af23b9b89_15_1", "36371", time.Hour)
	src.baseURL = srv.URL
	src.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	r, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionHits != 1 || queryHits != 1 {
		t.Fatalf("hits = %d/%d, want one session and one query", sessionHits, queryHits)
	}
	if math.Abs(r.WindSpeed-10.0) > 1e-9 || r.WindDirection != 180 {
		t.Fatalf("reading = %+v, want 10.0 m/s at 180", r)
	}
	if r.Temperature != 15.0 {
		t.Fatalf("temperature = %v, want 15.0", r.Temperature)
	}
}

// TestNavisSourceFetchErrorBody verifies the station's literal "error" reply
// classifies as a format error.
func TestNavisSourceFetchErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/view.php" {
			w.Write([]byte("ok"))
			return
		}
		w.Write([]byte("error"))
	}))
	defer srv.Close()

	src := NewNavisSource(HTTPClientConfig{Client: srv.Client()}, "imei", "view", time.Hour)
	src.baseURL = srv.URL

	_, err := src.Fetch(context.Background())
	if got := weather.Classify(err); got != weather.ParseInvalidFormat {
		t.Fatalf("Classify = %s (%v), want invalid_format", got, err)
	}
}
