package sources

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/solentwx/weather-station/internal/common"
	"github.com/solentwx/weather-station/internal/weather"
)

// SouthamptonVTSSource reads the Brambles Bank met snapshot from the
// Southampton VTS site. The endpoint runs an XSL transform server-side and
// returns an HTML fragment, so fields are pulled out with row patterns
// instead of a document parser.
type SouthamptonVTSSource struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

const brambleURL = "https://www.southamptonvts.co.uk/BackgroundSite/Ajax/LoadXmlFileWithTransform" +
	"?xmlFilePath=D%3A%5Cftp%5Csouthampton%5CBramble.xml" +
	"&xslFilePath=D%3A%5Cwwwroot%5CCMS_Southampton%5Ccontent%5Cfiles%5Cassets%5CSotonSnapshotmetBramble.xsl&w=51"

// Row patterns for the transformed Bramble table. Values are labelled with a
// unit suffix in the cell following the field name.
var (
	reWindSpeed  = regexp.MustCompile(`(?i)Wind\s*Speed[^0-9-]*(-?\d+(?:\.\d+)?)`)
	reWindGust   = regexp.MustCompile(`(?i)(?:Max\s*)?Gust[^0-9-]*(-?\d+(?:\.\d+)?)`)
	reWindDir    = regexp.MustCompile(`(?i)Wind\s*Direction[^0-9-]*(\d+)`)
	reAirTemp    = regexp.MustCompile(`(?i)Air\s*Temp(?:erature)?[^0-9-]*(-?\d+(?:\.\d+)?)`)
	rePressure   = regexp.MustCompile(`(?i)(?:Pressure|Barometer)[^0-9-]*(\d+(?:\.\d+)?)`)
	reVisibility = regexp.MustCompile(`(?i)Visibility[^0-9-]*(\d+(?:\.\d+)?)`)
)

func NewSouthamptonVTSSource(cfg HTTPClientConfig) *SouthamptonVTSSource {
	cfg.Backoff = defaultBackoff()
	return &SouthamptonVTSSource{
		name:    "southamptonvts",
		url:     brambleURL,
		httpCfg: cfg,
		circuit: newCircuit("southamptonvts"),
	}
}

func (s *SouthamptonVTSSource) Name() string {
	return s.name
}

func (s *SouthamptonVTSSource) Fetch(ctx context.Context) (weather.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, s.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/html,*/*")
		req.Header.Set("Referer", "https://www.southamptonvts.co.uk/Live_Information/Tides_and_Weather/")
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

	content := string(body)
	if !common.HasAny(content, "Bramble", "Wind Speed") {
		return weather.Reading{}, fmt.Errorf("response is not the Bramble met table: %w", weather.ErrInvalidFormat)
	}

	r := weather.Reading{Location: "Bramble Bank"}

	if v, ok := matchFloat(reWindSpeed, content); ok {
		r.WindSpeed = v * knotsToMS
		r.Fields |= weather.FieldWindSpeed
		r.Valid = true
	}
	if v, ok := matchFloat(reWindGust, content); ok {
		r.WindGust = v * knotsToMS
		r.Fields |= weather.FieldWindGust
	}
	if v, ok := matchFloat(reWindDir, content); ok {
		r.WindDirection = int(v) % 360
		r.Fields |= weather.FieldWindDirection
	}
	if v, ok := matchFloat(reAirTemp, content); ok {
		r.Temperature = v
		r.Fields |= weather.FieldTemperature
		r.Valid = true
	}
	if v, ok := matchFloat(rePressure, content); ok {
		r.Pressure = v
		r.Fields |= weather.FieldPressure
	}
	if v, ok := matchFloat(reVisibility, content); ok {
		r.Visibility = v
		r.Fields |= weather.FieldVisibility
	}

	if !r.Valid {
		return weather.Reading{}, fmt.Errorf("no wind or temperature rows in Bramble table: %w", weather.ErrInvalidFormat)
	}
	return r, nil
}

func matchFloat(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
