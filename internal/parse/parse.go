// Package parse extracts normalized weather readings from structured payloads
// whose exact shape is not known in advance. It is used by the custom-station
// source and the console's parse command; the dedicated station clients in
// internal/weather/sources have their own fixed schemas.
package parse

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/solentwx/weather-station/internal/common"
	"github.com/solentwx/weather-station/internal/weather"
)

// Limits bounds how much input the parser accepts.
type Limits struct {
	MaxBytes           int // total payload cap
	MaxStructuredBytes int // cap for JSON/XML documents
	MaxColumns         int // tabular column cap
	MaxDepth           int // nesting depth cap
	MaxFields          int // named weather fields extracted per document
}

// DefaultLimits returns the stock parsing limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:           8192,
		MaxStructuredBytes: 4096,
		MaxColumns:         20,
		MaxDepth:           10,
		MaxFields:          15,
	}
}

// maxNodes caps how many values a structured document may expand to.
const maxNodes = 4096

// Format identifies a detected payload format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatCSV
	FormatXML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatXML:
		return "xml"
	default:
		return "unknown"
	}
}

// Detect guesses the payload format from its leading bytes.
func Detect(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatUnknown
	}
	switch trimmed[0] {
	case '{', '[':
		return FormatJSON
	case '<':
		return FormatXML
	}

	line := trimmed
	if i := bytes.IndexByte(trimmed, '\n'); i >= 0 {
		line = trimmed[:i]
	}
	if bytes.IndexByte(line, ',') >= 0 {
		return FormatCSV
	}
	return FormatUnknown
}

// Parse detects the payload format and extracts a reading from it.
func Parse(data []byte, lim Limits) (weather.Reading, error) {
	if lim.MaxBytes > 0 && len(data) > lim.MaxBytes {
		return weather.Reading{}, fmt.Errorf("payload %d bytes exceeds %d byte cap: %w",
			len(data), lim.MaxBytes, weather.ErrBufferOverflow)
	}

	switch Detect(data) {
	case FormatJSON:
		return ParseJSON(data, lim)
	case FormatCSV:
		return ParseCSV(data, lim)
	case FormatXML:
		return ParseXML(data, lim)
	}
	return weather.Reading{}, fmt.Errorf("cannot detect payload format: %w", weather.ErrUnknownFormat)
}

// ParseJSON walks a JSON document in order and extracts known weather fields
// from its leaf values.
func ParseJSON(data []byte, lim Limits) (weather.Reading, error) {
	if lim.MaxStructuredBytes > 0 && len(data) > lim.MaxStructuredBytes {
		return weather.Reading{}, fmt.Errorf("json payload %d bytes exceeds %d byte cap: %w",
			len(data), lim.MaxStructuredBytes, weather.ErrBufferOverflow)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	ex := newExtractor(lim)
	if err := walkJSONValue(dec, "", 0, lim, ex); err != nil {
		return weather.Reading{}, err
	}
	return ex.finish()
}

func walkJSONValue(dec *json.Decoder, key string, depth int, lim Limits, ex *extractor) error {
	if lim.MaxDepth > 0 && depth > lim.MaxDepth {
		return fmt.Errorf("json nesting exceeds depth %d: %w", lim.MaxDepth, weather.ErrInvalidFormat)
	}

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("malformed json: %w", weather.ErrInvalidFormat)
	}

	if err := ex.countNode(); err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return fmt.Errorf("malformed json object: %w", weather.ErrInvalidFormat)
				}
				name, _ := keyTok.(string)
				if err := walkJSONValue(dec, name, depth+1, lim, ex); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return fmt.Errorf("malformed json object: %w", weather.ErrInvalidFormat)
			}
		case '[':
			for dec.More() {
				if err := walkJSONValue(dec, key, depth+1, lim, ex); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return fmt.Errorf("malformed json array: %w", weather.ErrInvalidFormat)
			}
		}
	case json.Number:
		ex.apply(key, t.String())
	case string:
		ex.apply(key, t)
	case bool:
		ex.apply(key, strconv.FormatBool(t))
	case nil:
		// skip nulls
	}
	return nil
}

// ParseCSV parses a header row plus one data row into a reading.
func ParseCSV(data []byte, lim Limits) (weather.Reading, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return weather.Reading{}, fmt.Errorf("csv header: %w", weather.ErrInvalidFormat)
	}
	if lim.MaxColumns > 0 && len(header) > lim.MaxColumns {
		return weather.Reading{}, fmt.Errorf("csv has %d columns, cap is %d: %w",
			len(header), lim.MaxColumns, weather.ErrInvalidFormat)
	}

	row, err := r.Read()
	if err == io.EOF {
		return weather.Reading{}, fmt.Errorf("csv has no data row: %w", weather.ErrInvalidFormat)
	}
	if err != nil {
		return weather.Reading{}, fmt.Errorf("csv data row: %w", weather.ErrInvalidFormat)
	}

	ex := newExtractor(lim)
	for i, name := range header {
		if i >= len(row) {
			break
		}
		ex.apply(name, row[i])
	}
	return ex.finish()
}

// ParseXML walks an XML document and extracts known weather fields from
// element character data, bounding nesting depth.
func ParseXML(data []byte, lim Limits) (weather.Reading, error) {
	if lim.MaxStructuredBytes > 0 && len(data) > lim.MaxStructuredBytes {
		return weather.Reading{}, fmt.Errorf("xml payload %d bytes exceeds %d byte cap: %w",
			len(data), lim.MaxStructuredBytes, weather.ErrBufferOverflow)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	ex := newExtractor(lim)

	var stack []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return weather.Reading{}, fmt.Errorf("malformed xml: %w", weather.ErrInvalidFormat)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			if lim.MaxDepth > 0 && len(stack) > lim.MaxDepth {
				return weather.Reading{}, fmt.Errorf("xml nesting exceeds depth %d: %w",
					lim.MaxDepth, weather.ErrInvalidFormat)
			}
			if err := ex.countNode(); err != nil {
				return weather.Reading{}, err
			}
			for _, attr := range t.Attr {
				ex.apply(attr.Name.Local, attr.Value)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text != "" {
				ex.apply(stack[len(stack)-1], text)
			}
		}
	}
	return ex.finish()
}

// extractor accumulates recognized weather fields up to the configured cap.
type extractor struct {
	lim     Limits
	reading weather.Reading
	fields  int
	nodes   int
	core    bool // at least one measurement field was set
}

func newExtractor(lim Limits) *extractor {
	return &extractor{lim: lim}
}

func (ex *extractor) countNode() error {
	ex.nodes++
	if ex.nodes > maxNodes {
		return fmt.Errorf("document expands past %d values: %w", maxNodes, weather.ErrMemoryFull)
	}
	return nil
}

// apply consumes one key/value pair if the key names a known weather field.
// The first occurrence of each field wins; extraction stops silently at the
// field cap.
func (ex *extractor) apply(key, value string) {
	if ex.lim.MaxFields > 0 && ex.fields >= ex.lim.MaxFields {
		return
	}
	r := &ex.reading

	switch common.NormalizeKey(key) {
	case "temperature", "temp", "temp_c", "air_temperature", "at":
		ex.setFloat(&r.Temperature, value, true, weather.FieldTemperature)
	case "humidity", "humidity_pct", "rh":
		ex.setFloat(&r.Humidity, value, true, weather.FieldHumidity)
	case "pressure", "pressure_hpa", "baro", "barometer", "pres":
		ex.setFloat(&r.Pressure, value, true, weather.FieldPressure)
	case "wind_speed", "windspeed", "wind", "wsc":
		ex.setFloat(&r.WindSpeed, value, true, weather.FieldWindSpeed)
	case "wind_gust", "windgust", "gust", "max_gust", "wsh":
		ex.setFloat(&r.WindGust, value, true, weather.FieldWindGust)
	case "wind_direction", "winddir", "wind_dir", "direction", "wdc":
		if !r.Fields.Has(weather.FieldWindDirection) {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				r.WindDirection = int(f) % 360
				r.Fields |= weather.FieldWindDirection
				ex.fields++
				ex.core = true
			}
		}
	case "visibility", "vis":
		ex.setFloat(&r.Visibility, value, false, weather.FieldVisibility)
	case "uv", "uv_index", "uvindex":
		ex.setFloat(&r.UVIndex, value, false, weather.FieldUVIndex)
	case "precipitation", "precip", "precip_mm", "rain", "rainfall":
		ex.setFloat(&r.Precipitation, value, false, weather.FieldPrecipitation)
	case "conditions", "condition", "summary", "description":
		if r.Conditions == "" {
			r.Conditions = value
			ex.fields++
		}
	case "timestamp", "time", "ts", "datetime", "observed":
		if r.Timestamp.IsZero() {
			if ts, ok := parseTimestamp(value); ok {
				r.Timestamp = ts
				ex.fields++
			}
		}
	case "location", "station", "site":
		if r.Location == "" {
			r.Location = value
			ex.fields++
		}
	}
}

func (ex *extractor) setFloat(dst *float64, value string, core bool, field weather.FieldSet) {
	if ex.reading.Fields.Has(field) {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return
	}
	*dst = f
	ex.reading.Fields |= field
	ex.fields++
	if core {
		ex.core = true
	}
}

func (ex *extractor) finish() (weather.Reading, error) {
	if !ex.core {
		return weather.Reading{}, fmt.Errorf("no recognizable weather fields: %w", weather.ErrInvalidFormat)
	}
	ex.reading.Valid = true
	if ex.reading.Timestamp.IsZero() {
		ex.reading.Timestamp = time.Now().UTC()
	}
	return ex.reading, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), true
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC(), true
	}
	return time.Time{}, false
}
