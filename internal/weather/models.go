package weather

import (
	"time"
)

// FieldSet records which measurement fields a reading actually carries.
// Stations report disjoint subsets (an anemometer has no humidity), so a
// zero value in an unmarked field means absent, not measured-as-zero.
type FieldSet uint16

const (
	FieldTemperature FieldSet = 1 << iota
	FieldHumidity
	FieldPressure
	FieldWindSpeed
	FieldWindGust
	FieldWindDirection
	FieldVisibility
	FieldUVIndex
	FieldPrecipitation
)

// Has reports whether every field in mask is present.
func (f FieldSet) Has(mask FieldSet) bool { return f&mask == mask }

// Reading is a single normalized reading from one weather station.
// Numeric fields are only meaningful when Valid is true and the matching
// Fields bit is set; sources that fail to extract a usable record return a
// zero Reading with Valid unset.
type Reading struct {
	Station       string        `json:"station"`
	Location      string        `json:"location"`
	Timestamp     time.Time     `json:"timestamp"` // always UTC
	Temperature   float64       `json:"temperatureC"`
	Humidity      float64       `json:"humidityPercent"`
	Pressure      float64       `json:"pressureHpa"`
	WindSpeed     float64       `json:"windSpeedMs"`
	WindGust      float64       `json:"windGustMs"`
	WindDirection int           `json:"windDirectionDeg"` // 0-359
	Visibility    float64       `json:"visibilityKm"`
	UVIndex       float64       `json:"uvIndex"`
	Precipitation float64       `json:"precipMm"`
	Conditions    string        `json:"conditions,omitempty"`
	Fields        FieldSet      `json:"-"`
	Valid         bool          `json:"valid"`
	ParseDuration time.Duration `json:"parseDuration"`
}

// Snapshot is the aggregated weather view across all stations at a point in time.
type Snapshot struct {
	ID            string    `json:"id"`
	Location      string    `json:"location"`
	Timestamp     time.Time `json:"timestamp"` // always UTC
	Temperature   float64   `json:"temperatureC"`
	Humidity      float64   `json:"humidityPercent"`
	Pressure      float64   `json:"pressureHpa"`
	WindSpeed     float64   `json:"windSpeedMs"`
	WindGust      float64   `json:"windGustMs"`
	WindDirection int       `json:"windDirectionDeg"`
	Visibility    float64   `json:"visibilityKm"`
	UVIndex       float64   `json:"uvIndex"`
	Precipitation float64   `json:"precipMm"`
	Conditions    string    `json:"conditions,omitempty"`

	// Sources contributing to this snapshot.
	Sources []SourceContribution `json:"sources,omitempty"`
}

// SourceContribution describes data coming from a single station used in aggregation.
type SourceContribution struct {
	Source        string        `json:"source"`
	Timestamp     time.Time     `json:"timestamp"`
	ParseDuration time.Duration `json:"parseDuration"`
}
