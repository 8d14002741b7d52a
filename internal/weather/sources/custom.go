package sources

import (
	"context"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/solentwx/weather-station/internal/parse"
	"github.com/solentwx/weather-station/internal/weather"
)

// CustomSource fetches an arbitrary configured URL and runs the generic
// format auto-detection over the payload. It is how ad-hoc stations are
// added without writing a dedicated client.
type CustomSource struct {
	name    string
	url     string
	limits  parse.Limits
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewCustomSource(cfg HTTPClientConfig, name, url string, limits parse.Limits) *CustomSource {
	cfg.Backoff = defaultBackoff()
	return &CustomSource{
		name:    name,
		url:     url,
		limits:  limits,
		httpCfg: cfg,
		circuit: newCircuit(name),
	}
}

func (s *CustomSource) Name() string {
	return s.name
}

func (s *CustomSource) Fetch(ctx context.Context) (weather.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, s.url, nil)
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}

	body, err := readBody(resp, s.httpCfg.MaxBody)
	if err != nil {
		return weather.Reading{}, err
	}

	return parse.Parse(body, s.limits)
}
