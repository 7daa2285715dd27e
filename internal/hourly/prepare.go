package hourly

import (
	"fmt"
	"math"
	"time"
)

// DefaultLookbackDays is the baseline length used by DayWindows callers
// that do not pick their own.
const DefaultLookbackDays = 28

// Observation is one hour with both usage and outdoor temperature present.
type Observation struct {
	Time        time.Time
	Usage       float64
	Temperature float64
}

// AlignOptions controls which rows survive alignment.
type AlignOptions struct {
	// DropZeroUsage treats zero usage readings as missing. Set for
	// electricity data, where a zero hour is a metering gap.
	DropZeroUsage bool
}

// Align inner-joins usage and temperature on the instant. Rows present in
// only one series, or carrying NaN, are dropped. The output follows the
// temperature series' order and timestamps.
func Align(usage, temperature Series, opts AlignOptions) ([]Observation, error) {
	byInstant := make(map[int64]float64, len(usage))
	for _, p := range usage {
		byInstant[p.Time.UnixNano()] = p.Value
	}

	obs := make([]Observation, 0, min(len(usage), len(temperature)))
	matched := 0
	for _, p := range temperature {
		u, ok := byInstant[p.Time.UnixNano()]
		if !ok {
			continue
		}
		matched++
		if math.IsNaN(u) || math.IsNaN(p.Value) || math.IsInf(u, 0) || math.IsInf(p.Value, 0) {
			continue
		}
		if opts.DropZeroUsage && u == 0 {
			continue
		}
		obs = append(obs, Observation{Time: p.Time, Usage: u, Temperature: p.Value})
	}
	if matched == 0 {
		return nil, ErrNoOverlap
	}
	return obs, nil
}

// Window is the half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Hours returns the window length in whole hours.
func (w Window) Hours() int {
	return int(w.End.Sub(w.Start) / time.Hour)
}

// WindowSpec pairs the baseline (training) and reporting (prediction) windows.
type WindowSpec struct {
	Baseline  Window
	Reporting Window
}

// DayWindows builds the baseline window of lookbackDays full days before day
// and a reporting window covering day itself. Day boundaries are midnights in
// day's location.
func DayWindows(day time.Time, lookbackDays int) (WindowSpec, error) {
	if lookbackDays <= 0 {
		return WindowSpec{}, fmt.Errorf("%w: lookback days must be positive, got %d", ErrInvalidOptions, lookbackDays)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return WindowSpec{
		Baseline:  Window{Start: start.AddDate(0, 0, -lookbackDays), End: start},
		Reporting: Window{Start: start, End: start.AddDate(0, 0, 1)},
	}, nil
}

// CustomWindows validates a caller-chosen pair of windows. The windows must be
// non-empty and disjoint.
func CustomWindows(baseline, reporting Window) (WindowSpec, error) {
	if !baseline.End.After(baseline.Start) || !reporting.End.After(reporting.Start) {
		return WindowSpec{}, fmt.Errorf("%w: empty window", ErrInvalidOptions)
	}
	if baseline.Start.Before(reporting.End) && reporting.Start.Before(baseline.End) {
		return WindowSpec{}, fmt.Errorf("%w: baseline and reporting windows overlap", ErrInvalidOptions)
	}
	return WindowSpec{Baseline: baseline, Reporting: reporting}, nil
}

// Prepared holds the aligned observations of both windows.
type Prepared struct {
	Windows   WindowSpec
	Baseline  []Observation
	Reporting []Observation
}

// ReportingTemperature returns the reporting temperatures as a series.
func (p Prepared) ReportingTemperature() Series {
	s := make(Series, len(p.Reporting))
	for i, o := range p.Reporting {
		s[i] = Point{Time: o.Time, Value: o.Temperature}
	}
	return s
}

// ReportingUsage returns the reporting usage as a series.
func (p Prepared) ReportingUsage() Series {
	s := make(Series, len(p.Reporting))
	for i, o := range p.Reporting {
		s[i] = Point{Time: o.Time, Value: o.Usage}
	}
	return s
}

// Prepare aligns both series and splits them into the baseline and
// reporting windows. The zero-usage rule only applies to the baseline so that
// zero observed hours still reach the reporting metrics. A baseline window
// with no common timestamps is an alignment failure, as is a reporting window
// that has usage but no matching temperature. A reporting window with
// temperature and no usage yields no reporting observations.
func Prepare(usage, temperature Series, win WindowSpec, opts AlignOptions) (Prepared, error) {
	baseline, err := Align(
		usage.Between(win.Baseline.Start, win.Baseline.End),
		temperature.Between(win.Baseline.Start, win.Baseline.End),
		opts,
	)
	if err != nil {
		return Prepared{}, fmt.Errorf("baseline window: %w", err)
	}

	// A reporting window without meter readings is a forecast: it only
	// needs temperature.
	reportingUsage := usage.Between(win.Reporting.Start, win.Reporting.End)
	reportingTemp := temperature.Between(win.Reporting.Start, win.Reporting.End)
	var reporting []Observation
	if len(reportingUsage) > 0 || len(reportingTemp) == 0 {
		if reporting, err = Align(reportingUsage, reportingTemp, AlignOptions{}); err != nil {
			return Prepared{}, fmt.Errorf("reporting window: %w", err)
		}
	}

	return Prepared{Windows: win, Baseline: baseline, Reporting: reporting}, nil
}

func observationTimes(obs []Observation) []time.Time {
	out := make([]time.Time, len(obs))
	for i, o := range obs {
		out[i] = o.Time
	}
	return out
}
