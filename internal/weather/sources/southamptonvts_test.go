package sources

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solentwx/weather-station/internal/weather"
)

const brambleFragment = `
<table class="met">
  <tr><td>Bramble Bank</td></tr>
  <tr><td>Wind Speed</td><td>18.5 kts</td></tr>
  <tr><td>Max Gust</td><td>24.0 kts</td></tr>
  <tr><td>Wind Direction</td><td>210 deg</td></tr>
  <tr><td>Air Temperature</td><td>7.2 C</td></tr>
  <tr><td>Pressure</td><td>1004.8 hPa</td></tr>
  <tr><td>Visibility</td><td>9.3 nm</td></tr>
</table>`

// TestSouthamptonVTSSourceFetch verifies field extraction from the
// transformed Bramble HTML fragment.
func TestSouthamptonVTSSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(brambleFragment))
	}))
	defer srv.Close()

	src := NewSouthamptonVTSSource(HTTPClientConfig{Client: srv.Client()})
	src.url = srv.URL

	r, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(r.WindSpeed-18.5*knotsToMS) > 1e-9 {
		t.Fatalf("wind speed = %v, want 18.5 kts in m/s", r.WindSpeed)
	}
	if math.Abs(r.WindGust-24.0*knotsToMS) > 1e-9 {
		t.Fatalf("gust = %v, want 24 kts in m/s", r.WindGust)
	}
	if r.WindDirection != 210 {
		t.Fatalf("direction = %d, want 210", r.WindDirection)
	}
	if r.Temperature != 7.2 {
		t.Fatalf("temperature = %v, want 7.2", r.Temperature)
	}
	if r.Pressure != 1004.8 {
		t.Fatalf("pressure = %v, want 1004.8", r.Pressure)
	}
	if r.Visibility != 9.3 {
		t.Fatalf("visibility = %v, want 9.3", r.Visibility)
	}
	if r.Location != "Bramble Bank" {
		t.Fatalf("location = %q, want Bramble Bank", r.Location)
	}
}

// TestSouthamptonVTSSourceFetchWrongPage verifies a response that is not the
// Bramble table is a format error.
func TestSouthamptonVTSSourceFetchWrongPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>tide tables</body></html>"))
	}))
	defer srv.Close()

	src := NewSouthamptonVTSSource(HTTPClientConfig{Client: srv.Client()})
	src.url = srv.URL

	_, err := src.Fetch(context.Background())
	if got := weather.Classify(err); got != weather.ParseInvalidFormat {
		t.Fatalf("Classify = %s (%v), want invalid_format", got, err)
	}
}

// TestSouthamptonVTSSourceFetchNoRows verifies a Bramble page with no wind or
// temperature rows is rejected.
func TestSouthamptonVTSSourceFetchNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<table><tr><td>Bramble Bank</td></tr></table>"))
	}))
	defer srv.Close()

	src := NewSouthamptonVTSSource(HTTPClientConfig{Client: srv.Client()})
	src.url = srv.URL

	_, err := src.Fetch(context.Background())
	if got := weather.Classify(err); got != weather.ParseInvalidFormat {
		t.Fatalf("Classify = %s (%v), want invalid_format", got, err)
	}
}
