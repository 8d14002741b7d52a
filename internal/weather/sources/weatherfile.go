package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/solentwx/weather-station/internal/weather"
)

// WeatherFileSource reads the Lymington Starting Platform from the public
// weatherfile.com V03 API. The endpoint wants an empty POST carrying the
// public token header and answers a flat data object with abbreviated keys.
type WeatherFileSource struct {
	name    string
	baseURL string
	locID   string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherFileSource(cfg HTTPClientConfig, locID string) *WeatherFileSource {
	cfg.Backoff = defaultBackoff()
	return &WeatherFileSource{
		name:    "weatherfile",
		baseURL: "https://weatherfile.com/V03/loc",
		locID:   locID,
		httpCfg: cfg,
		circuit: newCircuit("weatherfile"),
	}
}

func (s *WeatherFileSource) Name() string {
	return s.name
}

func (s *WeatherFileSource) Fetch(ctx context.Context) (weather.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%s/latest.json", s.baseURL, s.locID)
		req, err := http.NewRequest(http.MethodPost, u, strings.NewReader(""))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "*/*")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.Header.Set("wf-tkn", "PUBLIC")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}

	body, err := readBody(resp, s.httpCfg.MaxBody)
	if err != nil {
		return weather.Reading{}, err
	}

	var payload struct {
		Status string `json:"status"`
		Data   struct {
			TS   string   `json:"ts"`
			WSC  *float64 `json:"wsc"` // current wind speed, knots
			WSH  *float64 `json:"wsh"` // recent high (gust), knots
			WDC  *float64 `json:"wdc"` // current direction, degrees
			AT   *float64 `json:"at"`  // air temperature, celsius
			RH   *float64 `json:"rh"`
			Pres *float64 `json:"pres"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Reading{}, fmt.Errorf("weatherfile payload: %w", weather.ErrInvalidFormat)
	}
	if !strings.EqualFold(payload.Status, "ok") {
		return weather.Reading{}, fmt.Errorf("weatherfile status %q: %w", payload.Status, weather.ErrInvalidFormat)
	}

	r := weather.Reading{Location: "Lymington"}
	if payload.Data.WSC != nil {
		r.WindSpeed = *payload.Data.WSC * knotsToMS
		r.Fields |= weather.FieldWindSpeed
		r.Valid = true
	}
	if payload.Data.WSH != nil {
		r.WindGust = *payload.Data.WSH * knotsToMS
		r.Fields |= weather.FieldWindGust
		r.Valid = true
	}
	if payload.Data.WDC != nil {
		r.WindDirection = int(*payload.Data.WDC) % 360
		r.Fields |= weather.FieldWindDirection
	}
	if payload.Data.AT != nil {
		r.Temperature = *payload.Data.AT
		r.Fields |= weather.FieldTemperature
		r.Valid = true
	}
	if payload.Data.RH != nil {
		r.Humidity = *payload.Data.RH
		r.Fields |= weather.FieldHumidity
	}
	if payload.Data.Pres != nil {
		r.Pressure = *payload.Data.Pres
		r.Fields |= weather.FieldPressure
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", payload.Data.TS); err == nil {
		r.Timestamp = ts.UTC()
	}

	if !r.Valid {
		return weather.Reading{}, fmt.Errorf("weatherfile data carries no readings: %w", weather.ErrInvalidFormat)
	}
	return r, nil
}
