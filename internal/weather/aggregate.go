package weather

import (
	"time"

	"github.com/google/uuid"
)

// fieldMean accumulates one field over the readings that carry it.
type fieldMean struct {
	sum float64
	n   int
}

func (f *fieldMean) add(v float64) {
	f.sum += v
	f.n++
}

func (f fieldMean) mean() float64 {
	if f.n == 0 {
		return 0
	}
	return f.sum / float64(f.n)
}

// AggregateReadings combines multiple station readings into a single Snapshot.
// Each numeric field is averaged over the readings whose Fields mask carries
// it, the gust is the maximum seen, and conditions text is selected by
// majority (first wins a tie). Invalid readings are ignored.
func AggregateReadings(location string, readings []Reading) Snapshot {
	valid := readings[:0:0]
	for _, r := range readings {
		if r.Valid {
			valid = append(valid, r)
		}
	}

	if len(valid) == 0 {
		return Snapshot{
			ID:        uuid.NewString(),
			Location:  location,
			Timestamp: time.Now().UTC(),
		}
	}

	var (
		temp     fieldMean
		humidity fieldMean
		pressure fieldMean
		wind     fieldMean
		dir      fieldMean
		vis      fieldMean
		uv       fieldMean
		precip   fieldMean
		maxGust  float64
	)

	conditionCounts := make(map[string]int)
	bestCond := ""
	bestCount := 0

	sources := make([]SourceContribution, 0, len(valid))
	var newestTS time.Time

	for _, r := range valid {
		if r.Fields.Has(FieldTemperature) {
			temp.add(r.Temperature)
		}
		if r.Fields.Has(FieldHumidity) {
			humidity.add(r.Humidity)
		}
		if r.Fields.Has(FieldPressure) {
			pressure.add(r.Pressure)
		}
		if r.Fields.Has(FieldWindSpeed) {
			wind.add(r.WindSpeed)
		}
		if r.Fields.Has(FieldWindDirection) {
			dir.add(float64(r.WindDirection))
		}
		if r.Fields.Has(FieldVisibility) {
			vis.add(r.Visibility)
		}
		if r.Fields.Has(FieldUVIndex) {
			uv.add(r.UVIndex)
		}
		if r.Fields.Has(FieldPrecipitation) {
			precip.add(r.Precipitation)
		}

		var gust float64
		if r.Fields.Has(FieldWindGust) {
			gust = r.WindGust
		}
		if r.Fields.Has(FieldWindSpeed) && r.WindSpeed > gust {
			gust = r.WindSpeed
		}
		if gust > maxGust {
			maxGust = gust
		}

		if r.Conditions != "" {
			conditionCounts[r.Conditions]++
			if conditionCounts[r.Conditions] > bestCount {
				bestCount = conditionCounts[r.Conditions]
				bestCond = r.Conditions
			}
		}

		if r.Timestamp.After(newestTS) {
			newestTS = r.Timestamp
		}

		sources = append(sources, SourceContribution{
			Source:        r.Station,
			Timestamp:     r.Timestamp,
			ParseDuration: r.ParseDuration,
		})
	}

	if newestTS.IsZero() {
		newestTS = time.Now().UTC()
	}

	return Snapshot{
		ID:            uuid.NewString(),
		Location:      location,
		Timestamp:     newestTS,
		Temperature:   temp.mean(),
		Humidity:      humidity.mean(),
		Pressure:      pressure.mean(),
		WindSpeed:     wind.mean(),
		WindGust:      maxGust,
		WindDirection: int(dir.mean()) % 360,
		Visibility:    vis.mean(),
		UVIndex:       uv.mean(),
		Precipitation: precip.mean(),
		Conditions:    bestCond,
		Sources:       sources,
	}
}
