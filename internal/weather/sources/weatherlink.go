package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/solentwx/weather-station/internal/common"
	"github.com/solentwx/weather-station/internal/weather"
)

const knotsToMS = 1.0 / 1.94384449

// WeatherLinkSource reads the Seaview station's WeatherLink embeddable
// summary page, a JSON document listing current condition values by sensor
// display name.
type WeatherLinkSource struct {
	name    string
	baseURL string
	pageID  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherLinkSource(cfg HTTPClientConfig, pageID string) *WeatherLinkSource {
	cfg.Backoff = defaultBackoff()
	return &WeatherLinkSource{
		name:    "weatherlink",
		baseURL: "https://www.weatherlink.com/embeddablePage/summaryData",
		pageID:  pageID,
		httpCfg: cfg,
		circuit: newCircuit("weatherlink"),
	}
}

func (s *WeatherLinkSource) Name() string {
	return s.name
}

func (s *WeatherLinkSource) Fetch(ctx context.Context) (weather.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/%s", s.baseURL, s.pageID)
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json,*/*")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
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

	type conditionValue struct {
		DisplayName    string   `json:"displayName"`
		ConvertedValue *float64 `json:"convertedValue"`
		Value          *float64 `json:"value"`
		UnitLabel      string   `json:"unitLabel"`
	}
	type page struct {
		CurrConditionValues []conditionValue `json:"currConditionValues"`
		LastReceived        int64            `json:"lastReceived"` // millis
	}

	// The endpoint returns either a single page object or a one-element list.
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		var list []page
		if err2 := json.Unmarshal(body, &list); err2 != nil || len(list) == 0 {
			return weather.Reading{}, fmt.Errorf("weatherlink payload: %w", weather.ErrInvalidFormat)
		}
		p = list[0]
	}
	if len(p.CurrConditionValues) == 0 {
		return weather.Reading{}, fmt.Errorf("weatherlink payload has no currConditionValues: %w", weather.ErrInvalidFormat)
	}

	r := weather.Reading{Location: "Seaview"}
	for _, cv := range p.CurrConditionValues {
		val := cv.ConvertedValue
		if val == nil {
			val = cv.Value
		}
		if val == nil {
			continue
		}
		v := *val

		name := common.NormalizeKey(cv.DisplayName)
		switch {
		case strings.Contains(name, "gust") || strings.Contains(name, "high_wind"):
			r.WindGust = windToMS(v, cv.UnitLabel)
			r.Fields |= weather.FieldWindGust
			r.Valid = true
		case strings.Contains(name, "wind_speed"):
			r.WindSpeed = windToMS(v, cv.UnitLabel)
			r.Fields |= weather.FieldWindSpeed
			r.Valid = true
		case strings.Contains(name, "wind_direction"):
			r.WindDirection = int(v) % 360
			r.Fields |= weather.FieldWindDirection
		case strings.Contains(name, "temp"):
			r.Temperature = tempToC(v, cv.UnitLabel)
			r.Fields |= weather.FieldTemperature
			r.Valid = true
		case strings.Contains(name, "hum"):
			r.Humidity = v
			r.Fields |= weather.FieldHumidity
			r.Valid = true
		case strings.Contains(name, "barometer") || strings.Contains(name, "pressure"):
			r.Pressure = pressureToHpa(v, cv.UnitLabel)
			r.Fields |= weather.FieldPressure
			r.Valid = true
		case strings.Contains(name, "uv"):
			r.UVIndex = v
			r.Fields |= weather.FieldUVIndex
		case strings.Contains(name, "rain"):
			r.Precipitation = v
			r.Fields |= weather.FieldPrecipitation
		}
	}

	if p.LastReceived > 0 {
		r.Timestamp = time.UnixMilli(p.LastReceived).UTC()
	}
	if !r.Valid {
		return weather.Reading{}, fmt.Errorf("weatherlink payload has no usable conditions: %w", weather.ErrInvalidFormat)
	}
	return r, nil
}

func windToMS(v float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "mph":
		return v * 0.44704
	case "kph", "km/h":
		return v / 3.6
	case "kts", "knots":
		return v * knotsToMS
	default:
		return v
	}
}

func tempToC(v float64, unit string) float64 {
	if strings.Contains(unit, "F") {
		return (v - 32) * 5 / 9
	}
	return v
}

func pressureToHpa(v float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "inhg", "in hg":
		return v / 0.02953
	default:
		return v
	}
}
