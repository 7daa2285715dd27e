package resstock

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
)

const (
	timeColumn        = "date_time"
	temperaturePrefix = "Dry Bulb Temperature"
	timeLayout        = "2006-01-02 15:04:05"
)

// ParseWeatherCSV reads a ResStock weather file. Rows are stamped at the end
// of their hour in loc wall-clock time; the result is start-stamped, averaged
// per hour and converted from °C to °F.
func ParseWeatherCSV(r io.Reader, loc *time.Location) (hourly.Series, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read weather header: %w", err)
	}
	timeIdx, tempIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case name == timeColumn:
			timeIdx = i
		case strings.HasPrefix(name, temperaturePrefix):
			tempIdx = i
		}
	}
	if timeIdx < 0 || tempIdx < 0 {
		return nil, fmt.Errorf("weather header %q lacks %s or %s column", header, timeColumn, temperaturePrefix)
	}

	var points []hourly.Point
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("weather line %d: %w", line, err)
		}
		t, err := parseStamp(rec[timeIdx], loc)
		if err != nil {
			return nil, fmt.Errorf("weather line %d: %w", line, err)
		}
		raw := strings.TrimSpace(rec[tempIdx])
		if raw == "" {
			continue
		}
		c, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("weather line %d: temperature %q: %w", line, raw, err)
		}
		points = append(points, hourly.Point{Time: t.Add(-time.Hour), Value: c})
	}

	return hourlyMean(points).Map(hourly.CelsiusToFahrenheit), nil
}

func parseStamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{timeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q", s)
}

// hourlyMean averages points by the hour they fall in. Hours without a
// finite value are omitted.
func hourlyMean(points []hourly.Point) hourly.Series {
	type acc struct {
		sum float64
		n   int
	}
	var order []time.Time
	buckets := make(map[int64]*acc)
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		h := p.Time.Truncate(time.Hour)
		a, ok := buckets[h.Unix()]
		if !ok {
			a = &acc{}
			buckets[h.Unix()] = a
			order = append(order, h)
		}
		a.sum += p.Value
		a.n++
	}
	out := make([]hourly.Point, len(order))
	for i, h := range order {
		a := buckets[h.Unix()]
		out[i] = hourly.Point{Time: h, Value: a.sum / float64(a.n)}
	}
	s, _ := hourly.NewSeries(out)
	return s
}
